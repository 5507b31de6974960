// Package config loads the shared Nova configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ayusman/nova/internal/gesture"
)

const (
	appDir         = ".nova"
	configFileName = "config.json"
)

// Config is the content of ~/.nova/config.json.
type Config struct {
	Hub     HubConfig     `json:"hub"`
	Gesture GestureConfig `json:"gesture"`
	Voice   VoiceConfig   `json:"voice"`
}

// HubConfig configures nova-hub.
type HubConfig struct {
	Addr          string   `json:"addr"`
	MaxAge        Duration `json:"max_age"`
	DBPath        string   `json:"db_path"` // empty disables the journal
	JournalQueue  int      `json:"journal_queue"`
	PluginDir     string   `json:"plugin_dir"`
	PluginTimeout Duration `json:"plugin_timeout"`
	PluginWorkers int      `json:"plugin_workers"`
	StaticDir     string   `json:"static_dir"`
	ShutdownGrace Duration `json:"shutdown_grace"`
}

// GestureConfig configures nova-gesture.
type GestureConfig struct {
	HubURL           string         `json:"hub_url"`
	PushTimeout      Duration       `json:"push_timeout"`
	CameraID         int            `json:"camera_id"`
	FPS              int            `json:"fps"`
	StreamInterval   Duration       `json:"stream_interval"`
	HandPolicy       string         `json:"hand_policy"`
	MaxHands         int            `json:"max_hands"`
	MinConfidence    float64        `json:"min_confidence"`
	FrameTimeout     Duration       `json:"frame_timeout"`
	MotionThreshold  float64        `json:"motion_threshold"` // 0 disables motion gating
	IdleAfter        Duration       `json:"idle_after"`
	CaptureDir       string         `json:"capture_dir"`
	CaptureRetention Duration       `json:"capture_retention"`
	CaptureMaxFiles  int            `json:"capture_max_files"`
	Classifier       gesture.Config `json:"classifier"`
}

// VoiceConfig configures nova-voice.
type VoiceConfig struct {
	HubURL      string   `json:"hub_url"`
	PushTimeout Duration `json:"push_timeout"`
	WakePhrases []string `json:"wake_phrases"` // empty disables wake gating
	ArmWindow   Duration `json:"arm_window"`
	MinLength   int      `json:"min_length"`
}

// Dir returns ~/.nova.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, appDir), nil
}

// DefaultPath returns ~/.nova/config.json.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Default returns the built-in configuration. Paths are relative to ~/.nova
// when the home directory is known.
func Default() *Config {
	dir, err := Dir()
	if err != nil {
		dir = appDir
	}
	return &Config{
		Hub: HubConfig{
			Addr:          ":8000",
			MaxAge:        Duration(2 * time.Second),
			DBPath:        filepath.Join(dir, "nova.db"),
			JournalQueue:  256,
			PluginDir:     filepath.Join(dir, "plugins"),
			PluginTimeout: Duration(5 * time.Second),
			PluginWorkers: 2,
			ShutdownGrace: Duration(5 * time.Second),
		},
		Gesture: GestureConfig{
			HubURL:           "http://127.0.0.1:8000",
			PushTimeout:      Duration(50 * time.Millisecond),
			FPS:              15,
			StreamInterval:   Duration(100 * time.Millisecond),
			HandPolicy:       string(gesture.PolicyFirstActive),
			MaxHands:         2,
			MinConfidence:    0.5,
			FrameTimeout:     Duration(2 * time.Second),
			MotionThreshold:  1.0,
			IdleAfter:        Duration(2 * time.Second),
			CaptureDir:       filepath.Join(dir, "captures"),
			CaptureRetention: Duration(7 * 24 * time.Hour),
			CaptureMaxFiles:  500,
			Classifier:       gesture.DefaultConfig(),
		},
		Voice: VoiceConfig{
			HubURL:      "http://127.0.0.1:8000",
			PushTimeout: Duration(200 * time.Millisecond),
			WakePhrases: []string{"nova"},
			ArmWindow:   Duration(3 * time.Second),
			MinLength:   2,
		},
	}
}

// Load reads the file at path over the defaults. A missing file yields the
// defaults. An empty path means DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("get config path: %w", err)
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.expandPaths()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating its directory.
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return fmt.Errorf("get config path: %w", err)
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate reports every unusable setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Hub.Addr == "" {
		errs = append(errs, errors.New("hub.addr is required"))
	}
	if c.Hub.MaxAge <= 0 {
		errs = append(errs, errors.New("hub.max_age must be positive"))
	}
	if c.Hub.PluginTimeout <= 0 {
		errs = append(errs, errors.New("hub.plugin_timeout must be positive"))
	}

	g := c.Gesture
	if g.HubURL == "" {
		errs = append(errs, errors.New("gesture.hub_url is required"))
	}
	if g.PushTimeout <= 0 {
		errs = append(errs, errors.New("gesture.push_timeout must be positive"))
	}
	if g.FPS <= 0 {
		errs = append(errs, errors.New("gesture.fps must be positive"))
	}
	if g.StreamInterval <= 0 {
		errs = append(errs, errors.New("gesture.stream_interval must be positive"))
	}
	if _, err := gesture.ParseHandPolicy(g.HandPolicy); err != nil {
		errs = append(errs, fmt.Errorf("gesture.hand_policy: %w", err))
	}
	if g.MaxHands < 1 {
		errs = append(errs, errors.New("gesture.max_hands must be at least 1"))
	}
	if g.MinConfidence < 0 || g.MinConfidence > 1 {
		errs = append(errs, errors.New("gesture.min_confidence must be within [0, 1]"))
	}
	if g.MotionThreshold < 0 {
		errs = append(errs, errors.New("gesture.motion_threshold must not be negative"))
	}
	if err := g.Classifier.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("gesture.classifier: %w", err))
	}

	if c.Voice.HubURL == "" {
		errs = append(errs, errors.New("voice.hub_url is required"))
	}
	if c.Voice.PushTimeout <= 0 {
		errs = append(errs, errors.New("voice.push_timeout must be positive"))
	}
	if c.Voice.MinLength < 1 {
		errs = append(errs, errors.New("voice.min_length must be at least 1"))
	}
	return errors.Join(errs...)
}

func (c *Config) expandPaths() {
	for _, p := range []*string{&c.Hub.DBPath, &c.Hub.PluginDir, &c.Hub.StaticDir, &c.Gesture.CaptureDir} {
		*p = ExpandHome(*p)
	}
}

// ExpandHome replaces a leading ~/ with the home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
