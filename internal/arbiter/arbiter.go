// Package arbiter owns the single shared command slot that producers push
// into and the UI pulls from.
package arbiter

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/nova/internal/command"
)

// DefaultMaxAge is how long a pushed event stays visible to pulls.
const DefaultMaxAge = 2 * time.Second

// ErrBadRequest wraps validation failures of a pushed event.
var ErrBadRequest = errors.New("bad request")

// Observer is notified of state transitions. Calls happen outside the
// arbiter's lock, one at a time, in the order the transitions took place.
// They must not block for long and must not call Push or Pull.
type Observer interface {
	// Committed is called after a push replaced the current event.
	Committed(ev command.Event)
	// Consumed is called after a pull reset a one-shot event to IDLE.
	Consumed(ev command.Event)
}

// Snapshot is the result of a pull or peek.
type Snapshot struct {
	command.Event
	// Age is the time since the last push.
	Age time.Duration
	// Stale reports that the stored event outlived MaxAge and IDLE was returned.
	Stale bool
	// Consumed reports that this pull reset a one-shot event.
	Consumed bool
	// Transcript is the most recent non-empty text ever pushed.
	Transcript string
}

// Option configures an Arbiter.
type Option func(*Arbiter)

// WithMaxAge sets the staleness window.
func WithMaxAge(d time.Duration) Option {
	return func(a *Arbiter) {
		if d > 0 {
			a.maxAge = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Arbiter) {
		if now != nil {
			a.now = now
		}
	}
}

// WithObserver registers an observer. It may be given more than once.
func WithObserver(o Observer) Option {
	return func(a *Arbiter) {
		if o != nil {
			a.observers = append(a.observers, o)
		}
	}
}

// Arbiter holds the shared command state. Pushes are last-write-wins by
// arrival; one-shot actions are reset to IDLE by the pull that observes them.
type Arbiter struct {
	mu         sync.Mutex
	current    command.Event
	seq        uint64
	transcript string

	maxAge    time.Duration
	now       func() time.Time
	observers []Observer

	// Tickets are taken under mu; observer rounds run in ticket order.
	notifyMu sync.Mutex
	notified *sync.Cond
	tickets  uint64
	serving  uint64
}

// New creates an arbiter holding IDLE.
func New(opts ...Option) *Arbiter {
	a := &Arbiter{
		maxAge: DefaultMaxAge,
		now:    time.Now,
	}
	a.notified = sync.NewCond(&a.notifyMu)
	for _, opt := range opts {
		opt(a)
	}
	a.current = command.Event{
		Action:    command.Idle,
		Source:    command.SourceUnknown,
		Timestamp: a.now(),
	}
	return a
}

// MaxAge returns the staleness window.
func (a *Arbiter) MaxAge() time.Duration { return a.maxAge }

// Push validates ev and makes it the current event. The timestamp is always
// the arbiter's receipt time; producer clocks are not trusted.
// The committed event is returned.
func (a *Arbiter) Push(ev command.Event) (command.Event, error) {
	if ev.Source == "" {
		ev.Source = command.SourceUnknown
	}
	if err := ev.Validate(); err != nil {
		return command.Event{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	a.mu.Lock()
	a.seq++
	ev.Seq = a.seq
	ev.Timestamp = a.now()
	a.current = ev
	if ev.Text != "" {
		a.transcript = ev.Text
	}
	ticket := a.takeTicketLocked()
	a.mu.Unlock()

	a.notify(ticket, func(o Observer) { o.Committed(ev) })
	return ev, nil
}

// Pull returns the current event and consumes it if it is a one-shot action.
func (a *Arbiter) Pull() Snapshot {
	a.mu.Lock()
	snap := a.snapshotLocked()
	consumed := a.current
	if !snap.Stale && a.current.Action.IsOneShot() {
		a.current = command.Event{
			Action:    command.Idle,
			Source:    command.SourceUnknown,
			Timestamp: a.current.Timestamp,
			Seq:       a.current.Seq,
		}
		snap.Consumed = true
	}
	var ticket uint64
	if snap.Consumed {
		ticket = a.takeTicketLocked()
	}
	a.mu.Unlock()

	if snap.Consumed {
		a.notify(ticket, func(o Observer) { o.Consumed(consumed) })
	}
	return snap
}

func (a *Arbiter) takeTicketLocked() uint64 {
	t := a.tickets
	a.tickets++
	return t
}

// notify waits for every earlier ticket to finish, then calls fn on each
// observer. It never holds mu, so observers may Peek.
func (a *Arbiter) notify(ticket uint64, fn func(Observer)) {
	a.notifyMu.Lock()
	for a.serving != ticket {
		a.notified.Wait()
	}
	a.notifyMu.Unlock()

	for _, o := range a.observers {
		fn(o)
	}

	a.notifyMu.Lock()
	a.serving++
	a.notified.Broadcast()
	a.notifyMu.Unlock()
}

// Peek returns the current event without consuming it.
func (a *Arbiter) Peek() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Arbiter) snapshotLocked() Snapshot {
	age := a.now().Sub(a.current.Timestamp)
	if age < 0 {
		age = 0
	}
	snap := Snapshot{
		Event:      a.current,
		Age:        age,
		Transcript: a.transcript,
	}
	if age > a.maxAge {
		snap.Stale = true
		snap.Event = command.Event{
			Action:    command.Idle,
			Source:    command.SourceUnknown,
			Timestamp: a.current.Timestamp,
			Seq:       a.current.Seq,
		}
	}
	return snap
}
