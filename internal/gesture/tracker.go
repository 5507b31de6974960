package gesture

import (
	"fmt"
	"time"

	"github.com/ayusman/nova/internal/command"
	"github.com/ayusman/nova/internal/detector"
)

// HandPolicy decides how per-hand actions combine into one frame action.
type HandPolicy string

const (
	// PolicyFirstActive takes the first hand, in detection order, that has a non-IDLE action.
	PolicyFirstActive HandPolicy = "first-active"
	// PolicyUnanimous requires every hand to report the same non-IDLE action.
	PolicyUnanimous HandPolicy = "unanimous"
)

// ParseHandPolicy maps a config value to a policy; empty means first-active.
func ParseHandPolicy(s string) (HandPolicy, error) {
	switch HandPolicy(s) {
	case "", PolicyFirstActive:
		return PolicyFirstActive, nil
	case PolicyUnanimous:
		return PolicyUnanimous, nil
	}
	return "", fmt.Errorf("unknown hand policy %q", s)
}

// Tracker keeps one Classifier per visible hand.
type Tracker struct {
	cfg    Config
	policy HandPolicy
	hands  map[string]*Classifier
}

// NewTracker creates a tracker that builds classifiers from cfg.
func NewTracker(cfg Config, policy HandPolicy) *Tracker {
	if policy == "" {
		policy = PolicyFirstActive
	}
	return &Tracker{
		cfg:    cfg,
		policy: policy,
		hands:  make(map[string]*Classifier),
	}
}

// Tracked returns the number of hands with live classifier state.
func (t *Tracker) Tracked() int { return len(t.hands) }

// Observe classifies every hand of one frame and combines the results.
// It returns the combined action and the per-hand actions in detection order.
// Hands missing from the frame lose their state.
func (t *Tracker) Observe(hands []detector.HandLandmarks, now time.Time) (command.Action, []command.Action) {
	if len(hands) == 0 {
		clear(t.hands)
		return command.Idle, nil
	}

	seen := make(map[string]struct{}, len(hands))
	actions := make([]command.Action, len(hands))
	for i, h := range hands {
		key := handKey(h, i, seen)
		seen[key] = struct{}{}

		c, ok := t.hands[key]
		if !ok {
			c = New(t.cfg)
			t.hands[key] = c
		}
		actions[i] = c.Classify(h, now)
	}

	for key := range t.hands {
		if _, ok := seen[key]; !ok {
			delete(t.hands, key)
		}
	}

	return t.combine(actions), actions
}

func (t *Tracker) combine(actions []command.Action) command.Action {
	switch t.policy {
	case PolicyUnanimous:
		first := actions[0]
		if first == command.Idle {
			return command.Idle
		}
		for _, a := range actions[1:] {
			if a != first {
				return command.Idle
			}
		}
		return first
	default:
		for _, a := range actions {
			if a != command.Idle {
				return a
			}
		}
		return command.Idle
	}
}

// handKey identifies a hand across frames by handedness, falling back to
// its detection index. Duplicate labels in one frame get the index appended.
func handKey(h detector.HandLandmarks, i int, seen map[string]struct{}) string {
	key := h.Handedness
	if key == "" {
		return fmt.Sprintf("hand-%d", i)
	}
	if _, dup := seen[key]; dup {
		return fmt.Sprintf("%s-%d", key, i)
	}
	return key
}
