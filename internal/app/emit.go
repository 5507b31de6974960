package app

import (
	"time"

	"github.com/ayusman/nova/internal/command"
)

// emitter decides which classified frames reach the hub. One-shot actions go
// out once when they first appear; continuous actions are streamed at most
// once per interval; IDLE is never sent.
type emitter struct {
	interval   time.Duration
	last       command.Action
	lastStream time.Time
}

func newEmitter(interval time.Duration) *emitter {
	return &emitter{interval: interval, last: command.Idle}
}

// next records action as the frame's action and reports whether to push it.
func (e *emitter) next(action command.Action, now time.Time) bool {
	prev := e.last
	e.last = action

	switch {
	case action == command.Idle:
		return false
	case action.IsOneShot():
		return action != prev
	default:
		if !e.lastStream.IsZero() && now.Sub(e.lastStream) < e.interval {
			return false
		}
		e.lastStream = now
		return true
	}
}
