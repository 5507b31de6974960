// Package command defines the actions, sources and events exchanged between
// the gesture and voice producers and the Nova hub.
package command

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
)

// ErrUnknownAction is returned when an action name is not part of the vocabulary.
var ErrUnknownAction = errors.New("unknown action")

// ErrUnknownSource is returned when a source name is not recognized.
var ErrUnknownSource = errors.New("unknown source")

// Action is a named UI command.
type Action string

const (
	Idle       Action = "IDLE"
	SwipeLeft  Action = "SWIPE_LEFT"
	SwipeRight Action = "SWIPE_RIGHT"
	ZoomIn     Action = "ZOOM_IN"
	ZoomOut    Action = "ZOOM_OUT"
	Rotate     Action = "ROTATE"
	ScrollUp   Action = "SCROLL_UP"
	ScrollDown Action = "SCROLL_DOWN"
	Reset      Action = "RESET"
	Capture    Action = "CAPTURE"
	Select     Action = "SELECT"
)

// legacyPrefix is carried by action names from older producers ("ACTION_ZOOM_IN").
const legacyPrefix = "ACTION_"

// Actions lists the whole vocabulary in a stable order.
var Actions = []Action{
	Idle, SwipeLeft, SwipeRight, ZoomIn, ZoomOut, Rotate,
	ScrollUp, ScrollDown, Reset, Capture, Select,
}

// ParseAction resolves a case-insensitive action name. The legacy "ACTION_"
// prefix is accepted.
func ParseAction(s string) (Action, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, legacyPrefix)
	for _, a := range Actions {
		if string(a) == name {
			return a, nil
		}
	}
	return Idle, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// IsContinuous reports whether the action reflects ongoing motion and may be
// re-asserted every cycle.
func (a Action) IsContinuous() bool {
	switch a {
	case SwipeLeft, SwipeRight, ZoomIn, ZoomOut, Rotate, ScrollUp, ScrollDown:
		return true
	}
	return false
}

// IsTrigger reports whether the action is a discrete trigger that fires at
// most once per physical gesture.
func (a Action) IsTrigger() bool {
	switch a {
	case Reset, Capture, Select:
		return true
	}
	return false
}

// IsOneShot reports whether the hub consumes the action after one pull.
// Swipes are continuous for the classifier but one-shot for the consumer.
func (a Action) IsOneShot() bool {
	return a.IsTrigger() || a == SwipeLeft || a == SwipeRight
}

// Valid reports whether a is part of the vocabulary.
func (a Action) Valid() bool {
	for _, v := range Actions {
		if v == a {
			return true
		}
	}
	return false
}

func (a Action) String() string { return string(a) }

// Source identifies the producer of an event.
type Source string

const (
	SourceVoice   Source = "voice"
	SourceGesture Source = "gesture"
	SourceUnknown Source = "unknown"
)

// ParseSource resolves a source name. An empty name means unknown.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case "", SourceUnknown:
		return SourceUnknown, nil
	case SourceVoice:
		return SourceVoice, nil
	case SourceGesture:
		return SourceGesture, nil
	}
	return SourceUnknown, fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// Event is one command as exchanged between producers and the hub.
// Events are values; a committed event is never modified.
type Event struct {
	Action    Action    `json:"action"`
	Text      string    `json:"text"`
	Source    Source    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	// Seq is the commit sequence number assigned by the hub. Zero means the
	// event has not been committed.
	Seq uint64 `json:"seq"`
}

// Validate checks that the event uses a known action and source.
func (e Event) Validate() error {
	if !e.Action.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownAction, string(e.Action))
	}
	switch e.Source {
	case SourceVoice, SourceGesture, SourceUnknown:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSource, string(e.Source))
	}
	return nil
}

// Digest returns the hex SHA-256 of the RFC 8785 canonical form of the
// event's action, text and source. Timestamps and sequence numbers are not
// part of the digest, so repeated identical commands share one.
func (e Event) Digest() (string, error) {
	raw, err := json.Marshal(struct {
		Action Action `json:"action"`
		Text   string `json:"text"`
		Source Source `json:"source"`
	}{e.Action, e.Text, e.Source})
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize event: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
