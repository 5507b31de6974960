package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/nova/internal/gesture"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Hub.Addr != ":8000" || cfg.Hub.MaxAge.D() != 2*time.Second {
		t.Errorf("hub defaults = %+v", cfg.Hub)
	}
	if cfg.Gesture.PushTimeout.D() != 50*time.Millisecond || cfg.Voice.PushTimeout.D() != 200*time.Millisecond {
		t.Errorf("push timeouts = %v/%v", cfg.Gesture.PushTimeout, cfg.Voice.PushTimeout)
	}
	if cfg.Gesture.FrameTimeout.D() != 2*time.Second {
		t.Errorf("frame timeout = %v", cfg.Gesture.FrameTimeout)
	}
	if cfg.Gesture.StreamInterval.D() != 100*time.Millisecond {
		t.Errorf("stream interval = %v", cfg.Gesture.StreamInterval)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Hub.Addr != Default().Hub.Addr {
		t.Errorf("Addr = %q, want default", cfg.Hub.Addr)
	}
}

func TestLoad_PartialOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"hub": {"addr": "127.0.0.1:9000", "max_age": "500ms"},
		"gesture": {"fps": 30, "classifier": {"stable_frames": 4, "swipe_window": "150ms"}},
		"voice": {"wake_phrases": []}
	}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Hub.Addr != "127.0.0.1:9000" || cfg.Hub.MaxAge.D() != 500*time.Millisecond {
		t.Errorf("hub = %+v", cfg.Hub)
	}
	if cfg.Hub.PluginWorkers != 2 {
		t.Errorf("PluginWorkers = %d, want default kept", cfg.Hub.PluginWorkers)
	}
	if cfg.Gesture.FPS != 30 || cfg.Gesture.PushTimeout.D() != 50*time.Millisecond {
		t.Errorf("gesture = fps %d timeout %v", cfg.Gesture.FPS, cfg.Gesture.PushTimeout)
	}
	cl := cfg.Gesture.Classifier
	if cl.StableFrames != 4 || cl.SwipeWindow != 150*time.Millisecond || cl.HistorySize != 5 {
		t.Errorf("classifier = %+v", cl)
	}
	if len(cfg.Voice.WakePhrases) != 0 {
		t.Errorf("WakePhrases = %v, want empty", cfg.Voice.WakePhrases)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"bad json", `{"hub":`, "unmarshal config"},
		{"bad duration", `{"hub":{"max_age":"soon"}}`, "invalid duration"},
		{"zero fps", `{"gesture":{"fps":0}}`, "gesture.fps"},
		{"bad policy", `{"gesture":{"hand_policy":"loudest"}}`, "hand_policy"},
		{"bad classifier", `{"gesture":{"classifier":{"history_size":0}}}`, "gesture.classifier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	cfg := Default()
	cfg.Hub.Addr = ""
	cfg.Voice.MinLength = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"hub.addr", "voice.min_length"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.Gesture.HandPolicy = string(gesture.PolicyUnanimous)
	cfg.Voice.ArmWindow = Duration(5 * time.Second)

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"arm_window": "5s"`) {
		t.Errorf("saved durations should be strings:\n%s", data)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Gesture.HandPolicy != "unanimous" || loaded.Voice.ArmWindow.D() != 5*time.Second {
		t.Errorf("loaded = %+v / %+v", loaded.Gesture.HandPolicy, loaded.Voice.ArmWindow)
	}
}

func TestDuration_Numbers(t *testing.T) {
	var d Duration
	if err := d.UnmarshalJSON([]byte("1500000000")); err != nil || d.D() != 1500*time.Millisecond {
		t.Errorf("UnmarshalJSON(ns) = %v, %v", d, err)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/captures"); got != filepath.Join(home, "captures") {
		t.Errorf("ExpandHome() = %q", got)
	}
	if got := ExpandHome("/tmp/x"); got != "/tmp/x" {
		t.Errorf("ExpandHome() = %q, want unchanged", got)
	}
}
