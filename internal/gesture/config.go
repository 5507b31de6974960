// Package gesture turns per-frame hand landmarks into discrete and continuous
// command actions.
package gesture

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Smoothing selects how the trigger history is reduced to a stable value.
type Smoothing string

const (
	// SmoothingMajority emits the plurality value once it holds at least
	// StableFrames votes in the history.
	SmoothingMajority Smoothing = "majority"
	// SmoothingUnanimous emits a value only when the full history agrees.
	SmoothingUnanimous Smoothing = "unanimous"
)

// Config holds the classifier tunables. Distances are in the landmark
// detector's normalized unit.
type Config struct {
	OpenThreshold  float64       `json:"open_threshold"`
	PinchThreshold float64       `json:"pinch_threshold"`
	SelectDistance float64       `json:"select_distance"`
	SwipeVelocity  float64       `json:"swipe_velocity"` // units per second
	SwipeWindow    time.Duration `json:"swipe_window"`
	ScrollDelta    float64       `json:"scroll_delta"`
	ZoomDelta      float64       `json:"zoom_delta"`
	HistorySize    int           `json:"history_size"`
	StableFrames   int           `json:"stable_frames"`
	Smoothing      Smoothing     `json:"smoothing"`
}

// DefaultConfig returns the thresholds tuned for a webcam at arm's length.
func DefaultConfig() Config {
	return Config{
		OpenThreshold:  0.17,
		PinchThreshold: 0.04,
		SelectDistance: 0.10,
		SwipeVelocity:  2.2,
		SwipeWindow:    100 * time.Millisecond,
		ScrollDelta:    0.05,
		ZoomDelta:      0.008,
		HistorySize:    5,
		StableFrames:   3,
		Smoothing:      SmoothingMajority,
	}
}

// Validate checks that every tunable is usable.
func (c Config) Validate() error {
	var errs []error
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"open_threshold", c.OpenThreshold},
		{"pinch_threshold", c.PinchThreshold},
		{"select_distance", c.SelectDistance},
		{"swipe_velocity", c.SwipeVelocity},
		{"scroll_delta", c.ScrollDelta},
		{"zoom_delta", c.ZoomDelta},
	} {
		if f.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", f.name))
		}
	}
	if c.SwipeWindow <= 0 {
		errs = append(errs, errors.New("swipe_window must be positive"))
	}
	if c.StableFrames < 1 {
		errs = append(errs, errors.New("stable_frames must be at least 1"))
	}
	if c.HistorySize < c.StableFrames {
		errs = append(errs, fmt.Errorf("history_size %d is smaller than stable_frames %d", c.HistorySize, c.StableFrames))
	}
	switch c.Smoothing {
	case SmoothingMajority, SmoothingUnanimous:
	default:
		errs = append(errs, fmt.Errorf("unknown smoothing %q", c.Smoothing))
	}
	return errors.Join(errs...)
}

// MarshalJSON writes SwipeWindow as a duration string such as "100ms".
func (c Config) MarshalJSON() ([]byte, error) {
	type plain Config
	return json.Marshal(struct {
		plain
		SwipeWindow string `json:"swipe_window"`
	}{plain(c), c.SwipeWindow.String()})
}

// UnmarshalJSON accepts SwipeWindow as a duration string or as nanoseconds.
// Fields absent from the input keep their current values.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	aux := struct {
		*plain
		SwipeWindow json.RawMessage `json:"swipe_window"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.SwipeWindow) == 0 {
		return nil
	}

	var s string
	if err := json.Unmarshal(aux.SwipeWindow, &s); err == nil {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("swipe_window: %w", err)
		}
		c.SwipeWindow = d
		return nil
	}
	var ns int64
	if err := json.Unmarshal(aux.SwipeWindow, &ns); err != nil {
		return fmt.Errorf("swipe_window: %w", err)
	}
	c.SwipeWindow = time.Duration(ns)
	return nil
}
