package gesture

import (
	"time"

	"github.com/ayusman/nova/internal/command"
	"github.com/ayusman/nova/internal/detector"
)

// State is the per-hand memory carried between frames.
type State struct {
	LastX     float64
	LastXTime time.Time
	HasLastX  bool

	LastY    float64
	HasLastY bool

	LastPinch    float64
	HasLastPinch bool

	// History holds the most recent raw trigger candidates, oldest first.
	History []command.Action
	// Latched is the last stable trigger value; it is emitted only on change.
	Latched command.Action
}

// Classifier maps successive frames of one hand to actions.
// It is not safe for concurrent use.
type Classifier struct {
	cfg   Config
	state State
}

// New creates a classifier. Invalid configs fall back to DefaultConfig.
func New(cfg Config) *Classifier {
	if cfg.Validate() != nil {
		cfg = DefaultConfig()
	}
	c := &Classifier{cfg: cfg}
	c.Reset()
	return c
}

// Config returns the tunables in use.
func (c *Classifier) Config() Config { return c.cfg }

// State returns a copy of the classifier memory.
func (c *Classifier) State() State {
	s := c.state
	s.History = append([]command.Action(nil), c.state.History...)
	return s
}

// Reset clears all memory.
func (c *Classifier) Reset() {
	c.state = State{
		History: make([]command.Action, 0, c.cfg.HistorySize),
		Latched: command.Idle,
	}
}

// Classify returns the action for one frame observed at now.
// Rules are evaluated in priority order: swipe, scroll, zoom/rotate, then
// smoothed discrete triggers.
func (c *Classifier) Classify(hand detector.HandLandmarks, now time.Time) command.Action {
	pts := &hand.Points
	pinch := hand.PinchDistance()
	up, upCount := c.fingersUp(hand)

	if a := c.swipe(pts[detector.MiddleMCP].X, now); a != command.Idle {
		return a
	}

	if upCount == 2 && up[0] && up[1] {
		if a := c.scroll(pts[detector.IndexTip].Y); a != command.Idle {
			return a
		}
	}

	if upCount <= 1 {
		if a := c.pinch(pinch); a != command.Idle {
			return a
		}
	}

	return c.smooth(c.trigger(up, upCount, pinch))
}

func (c *Classifier) fingersUp(hand detector.HandLandmarks) ([4]bool, int) {
	var up [4]bool
	n := 0
	wrist := hand.Points[detector.Wrist]
	for i, tip := range detector.FingerTips {
		if detector.Distance(hand.Points[tip], wrist) > c.cfg.OpenThreshold {
			up[i] = true
			n++
		}
	}
	return up, n
}

// swipe always records the sample, whichever branch ends up deciding.
func (c *Classifier) swipe(x float64, now time.Time) command.Action {
	s := &c.state
	action := command.Idle
	if s.HasLastX {
		dt := now.Sub(s.LastXTime)
		if dt > 0 && dt < c.cfg.SwipeWindow {
			v := (x - s.LastX) / dt.Seconds()
			switch {
			case v > c.cfg.SwipeVelocity:
				action = command.SwipeRight
			case v < -c.cfg.SwipeVelocity:
				action = command.SwipeLeft
			}
		}
	}
	s.LastX, s.LastXTime, s.HasLastX = x, now, true
	return action
}

// scroll compares the index tip height; y grows downward so a rising hand scrolls up.
func (c *Classifier) scroll(y float64) command.Action {
	s := &c.state
	action := command.Idle
	if s.HasLastY {
		dy := s.LastY - y
		switch {
		case dy > c.cfg.ScrollDelta:
			action = command.ScrollUp
		case dy < -c.cfg.ScrollDelta:
			action = command.ScrollDown
		}
	}
	s.LastY, s.HasLastY = y, true
	return action
}

func (c *Classifier) pinch(d float64) command.Action {
	s := &c.state
	action := command.Idle
	if s.HasLastPinch {
		diff := d - s.LastPinch
		switch {
		case diff > c.cfg.ZoomDelta:
			action = command.ZoomIn
		case diff < -c.cfg.ZoomDelta:
			action = command.ZoomOut
		}
	}
	s.LastPinch, s.HasLastPinch = d, true
	if action == command.Idle && d < c.cfg.PinchThreshold {
		action = command.Rotate
	}
	return action
}

func (c *Classifier) trigger(up [4]bool, upCount int, pinch float64) command.Action {
	switch {
	case upCount >= 3:
		return command.Reset
	case upCount == 1 && up[3]:
		return command.Capture
	case upCount == 1 && up[0] && pinch > c.cfg.SelectDistance:
		return command.Select
	}
	return command.Idle
}

// smooth records the raw candidate and emits the stable value once per change.
func (c *Classifier) smooth(raw command.Action) command.Action {
	s := &c.state
	if len(s.History) == c.cfg.HistorySize {
		copy(s.History, s.History[1:])
		s.History = s.History[:len(s.History)-1]
	}
	s.History = append(s.History, raw)

	stable := c.stable()
	if stable == s.Latched {
		return command.Idle
	}
	s.Latched = stable
	return stable
}

func (c *Classifier) stable() command.Action {
	h := c.state.History
	switch c.cfg.Smoothing {
	case SmoothingUnanimous:
		if len(h) < c.cfg.HistorySize {
			return command.Idle
		}
		for _, a := range h[1:] {
			if a != h[0] {
				return command.Idle
			}
		}
		return h[0]
	default:
		votes := make(map[command.Action]int, len(h))
		for _, a := range h {
			votes[a]++
		}
		best, bestVotes, tied := command.Idle, 0, false
		for a, n := range votes {
			switch {
			case n > bestVotes:
				best, bestVotes, tied = a, n, false
			case n == bestVotes:
				tied = true
			}
		}
		if tied || bestVotes < c.cfg.StableFrames {
			return command.Idle
		}
		return best
	}
}
