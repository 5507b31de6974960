package main

import (
	"errors"
	"testing"
	"time"
)

func TestScreenshotName(t *testing.T) {
	at := time.Date(2026, 3, 9, 14, 5, 7, 42_000_000, time.UTC)
	if got, want := screenshotName(at, 12), "nova_screen_20260309_140507.042_12.png"; got != want {
		t.Errorf("screenshotName() = %q, want %q", got, want)
	}
}

func TestCaptureCommand(t *testing.T) {
	tests := []struct {
		goos    string
		want    string
		wantErr error
	}{
		{"darwin", "screencapture", nil},
		{"linux", "import", nil},
		{"windows", "", errUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args, err := captureCommand(tt.goos, "/tmp/shot.png")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if name != tt.want {
				t.Errorf("name = %q, want %q", name, tt.want)
			}
			if err == nil && args[len(args)-1] != "/tmp/shot.png" {
				t.Errorf("args = %v, want the output path last", args)
			}
		})
	}
}

func TestOutputDir_Env(t *testing.T) {
	t.Setenv("NOVA_SCREENSHOT_DIR", "/srv/shots")
	if got := outputDir(); got != "/srv/shots" {
		t.Errorf("outputDir() = %q, want /srv/shots", got)
	}
}
