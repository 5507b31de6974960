package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to report per frame.
	MaxHands int `json:"max_hands"`

	// MinConfidence drops hands whose detection score is below it (0.0-1.0).
	MinConfidence float64 `json:"min_confidence"`

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64 `json:"min_tracking_confidence"`

	// IdleShutdown stops the detector subprocess after this long without frames.
	IdleShutdown time.Duration `json:"idle_shutdown"`

	// FrameTimeout bounds one round trip to the subprocess. Zero waits forever.
	FrameTimeout time.Duration `json:"frame_timeout"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		IdleShutdown:    30 * time.Second,
		FrameTimeout:    2 * time.Second,
	}
}

// filter applies the confidence and hand-count limits to a detection result.
func (c Config) filter(hands []HandLandmarks) []HandLandmarks {
	out := hands[:0]
	for _, h := range hands {
		if h.Score < c.MinConfidence {
			continue
		}
		out = append(out, h)
	}
	if c.MaxHands > 0 && len(out) > c.MaxHands {
		out = out[:c.MaxHands]
	}
	return out
}
