// Package plugin runs external hook executables when the hub commits a
// command they subscribe to.
package plugin

import (
	"encoding/json"
	"time"

	"github.com/ayusman/nova/internal/command"
)

// Manifest describes a plugin's metadata and the actions it hooks.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Actions     []string `json:"actions"`
}

// Handles reports whether the manifest subscribes to action. Legacy
// ACTION_-prefixed names are accepted.
func (m Manifest) Handles(action command.Action) bool {
	for _, name := range m.Actions {
		if a, err := command.ParseAction(name); err == nil && a == action {
			return true
		}
	}
	return false
}

// Request is written to the plugin's stdin as JSON.
type Request struct {
	Action    command.Action `json:"action"`
	Source    command.Source `json:"source"`
	Text      string         `json:"text,omitempty"`
	Seq       uint64         `json:"seq"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewRequest builds the request for a committed event.
func NewRequest(ev command.Event) *Request {
	return &Request{
		Action:    ev.Action,
		Source:    ev.Source,
		Text:      ev.Text,
		Seq:       ev.Seq,
		Timestamp: ev.Timestamp,
	}
}

// Response is read from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
