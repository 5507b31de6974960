package arbiter

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/nova/internal/command"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu        sync.Mutex
	committed []command.Event
	consumed  []command.Event
}

func (r *recorder) Committed(ev command.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, ev)
}

func (r *recorder) Consumed(ev command.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consumed = append(r.consumed, ev)
}

func push(t *testing.T, a *Arbiter, action command.Action, source command.Source) command.Event {
	t.Helper()
	ev, err := a.Push(command.Event{Action: action, Source: source})
	if err != nil {
		t.Fatalf("Push(%s) error = %v", action, err)
	}
	return ev
}

func TestNew_StartsIdle(t *testing.T) {
	a := New()
	snap := a.Pull()
	if snap.Action != command.Idle || snap.Source != command.SourceUnknown || snap.Text != "" {
		t.Errorf("initial state = %+v, want IDLE/unknown", snap.Event)
	}
	if snap.Seq != 0 {
		t.Errorf("initial Seq = %d, want 0", snap.Seq)
	}
	if a.MaxAge() != DefaultMaxAge {
		t.Errorf("MaxAge() = %v, want %v", a.MaxAge(), DefaultMaxAge)
	}
}

func TestPull_OneShotConsumedOnce(t *testing.T) {
	oneShots := []command.Action{command.Reset, command.Capture, command.Select, command.SwipeLeft, command.SwipeRight}

	for _, action := range oneShots {
		t.Run(string(action), func(t *testing.T) {
			a := New()
			push(t, a, action, command.SourceGesture)

			first := a.Pull()
			if first.Action != action || !first.Consumed {
				t.Fatalf("first pull = %s (consumed=%v), want %s consumed", first.Action, first.Consumed, action)
			}
			second := a.Pull()
			if second.Action != command.Idle || second.Consumed {
				t.Errorf("second pull = %s (consumed=%v), want IDLE", second.Action, second.Consumed)
			}
		})
	}
}

func TestPull_ContinuousPersists(t *testing.T) {
	continuous := []command.Action{command.ZoomIn, command.ZoomOut, command.Rotate, command.ScrollUp, command.ScrollDown}

	for _, action := range continuous {
		t.Run(string(action), func(t *testing.T) {
			a := New()
			push(t, a, action, command.SourceGesture)

			for i := 0; i < 3; i++ {
				if got := a.Pull(); got.Action != action || got.Consumed {
					t.Fatalf("pull %d = %s, want %s unconsumed", i, got.Action, action)
				}
			}
		})
	}
}

func TestPull_Staleness(t *testing.T) {
	clock := newFakeClock()
	a := New(WithClock(clock.Now))

	push(t, a, command.Capture, command.SourceGesture)
	clock.Advance(DefaultMaxAge + time.Millisecond)

	snap := a.Pull()
	if snap.Action != command.Idle || !snap.Stale {
		t.Errorf("pull after max age = %s (stale=%v), want stale IDLE", snap.Action, snap.Stale)
	}
	if snap.Age < DefaultMaxAge {
		t.Errorf("Age = %v, want >= %v", snap.Age, DefaultMaxAge)
	}
	if snap.Consumed {
		t.Error("stale event must not be reported as consumed")
	}
}

func TestPull_ExactlyMaxAgeIsFresh(t *testing.T) {
	clock := newFakeClock()
	a := New(WithClock(clock.Now), WithMaxAge(time.Second))

	push(t, a, command.Rotate, command.SourceGesture)
	clock.Advance(time.Second)

	if got := a.Pull(); got.Action != command.Rotate {
		t.Errorf("pull at exactly max age = %s, want ROTATE", got.Action)
	}
}

func TestPull_EndToEndTiming(t *testing.T) {
	clock := newFakeClock()
	a := New(WithClock(clock.Now))

	push(t, a, command.Select, command.SourceVoice)

	clock.Advance(50 * time.Millisecond)
	first := a.Pull()
	if first.Action != command.Select || first.Source != command.SourceVoice {
		t.Errorf("pull at 50ms = %s/%s, want SELECT/voice", first.Action, first.Source)
	}
	if first.Age != 50*time.Millisecond {
		t.Errorf("Age = %v, want 50ms", first.Age)
	}

	clock.Advance(50 * time.Millisecond)
	second := a.Pull()
	if second.Action != command.Idle {
		t.Errorf("pull at 100ms = %s, want IDLE", second.Action)
	}
	if second.Age != 100*time.Millisecond {
		t.Errorf("Age after consumption = %v, want time since last push (100ms)", second.Age)
	}
}

func TestPush_ServerTimestampWins(t *testing.T) {
	clock := newFakeClock()
	a := New(WithClock(clock.Now))

	ev, err := a.Push(command.Event{
		Action:    command.ZoomIn,
		Source:    command.SourceGesture,
		Timestamp: clock.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if !ev.Timestamp.Equal(clock.Now()) {
		t.Errorf("Timestamp = %v, want receipt time %v", ev.Timestamp, clock.Now())
	}
	if got := a.Pull(); got.Action != command.ZoomIn {
		t.Errorf("pull = %s, producer clock skew must not make the event stale", got.Action)
	}
}

func TestPush_BadRequestLeavesStateUntouched(t *testing.T) {
	a := New()
	push(t, a, command.Rotate, command.SourceVoice)

	tests := []command.Event{
		{Action: "JUMP", Source: command.SourceVoice},
		{Action: command.Reset, Source: "keyboard"},
		{Action: ""},
	}
	for _, ev := range tests {
		_, err := a.Push(ev)
		if !errors.Is(err, ErrBadRequest) {
			t.Errorf("Push(%+v) error = %v, want ErrBadRequest", ev, err)
		}
	}

	snap := a.Peek()
	if snap.Action != command.Rotate || snap.Seq != 1 {
		t.Errorf("state after bad pushes = %s seq %d, want ROTATE seq 1", snap.Action, snap.Seq)
	}
}

func TestPush_EmptySourceIsUnknown(t *testing.T) {
	a := New()
	ev, err := a.Push(command.Event{Action: command.Reset})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if ev.Source != command.SourceUnknown {
		t.Errorf("Source = %q, want unknown", ev.Source)
	}
}

func TestPush_LastWriteWins(t *testing.T) {
	a := New()
	push(t, a, command.Select, command.SourceVoice)
	push(t, a, command.ZoomOut, command.SourceGesture)

	snap := a.Pull()
	if snap.Action != command.ZoomOut || snap.Source != command.SourceGesture || snap.Seq != 2 {
		t.Errorf("pull = %+v, want second push", snap.Event)
	}
}

func TestPushBetweenPullsIsNotLost(t *testing.T) {
	a := New()
	push(t, a, command.Capture, command.SourceGesture)
	a.Pull()
	push(t, a, command.Select, command.SourceVoice)

	if got := a.Pull(); got.Action != command.Select {
		t.Errorf("pull = %s, want SELECT pushed after consumption", got.Action)
	}
}

func TestTranscript(t *testing.T) {
	a := New()
	a.Push(command.Event{Action: command.ZoomIn, Text: "zoom in", Source: command.SourceVoice})
	a.Push(command.Event{Action: command.Rotate, Source: command.SourceGesture})

	snap := a.Peek()
	if snap.Text != "" {
		t.Errorf("Text = %q, want empty for the gesture event", snap.Text)
	}
	if snap.Transcript != "zoom in" {
		t.Errorf("Transcript = %q, want last non-empty text", snap.Transcript)
	}
}

func TestPeek_DoesNotConsume(t *testing.T) {
	a := New()
	push(t, a, command.Reset, command.SourceVoice)

	for i := 0; i < 3; i++ {
		if got := a.Peek(); got.Action != command.Reset || got.Consumed {
			t.Fatalf("peek %d = %s, want RESET", i, got.Action)
		}
	}
	if got := a.Pull(); got.Action != command.Reset {
		t.Errorf("pull after peeks = %s, want RESET", got.Action)
	}
}

func TestObserver(t *testing.T) {
	rec := &recorder{}
	a := New(WithObserver(rec))

	push(t, a, command.Capture, command.SourceGesture)
	push(t, a, command.Rotate, command.SourceGesture)
	a.Pull() // continuous, not consumed
	push(t, a, command.Select, command.SourceVoice)
	a.Pull()
	a.Pull()

	if len(rec.committed) != 3 {
		t.Fatalf("committed = %d, want 3", len(rec.committed))
	}
	for i, ev := range rec.committed {
		if ev.Seq != uint64(i+1) {
			t.Errorf("committed[%d].Seq = %d, want %d", i, ev.Seq, i+1)
		}
	}
	if len(rec.consumed) != 1 || rec.consumed[0].Action != command.Select || rec.consumed[0].Seq != 3 {
		t.Errorf("consumed = %+v, want only SELECT seq 3", rec.consumed)
	}
}

// observerThatPeeks deadlocks if observers run under the arbiter lock.
type observerThatPeeks struct{ a *Arbiter }

func (o *observerThatPeeks) Committed(command.Event) { o.a.Peek() }
func (o *observerThatPeeks) Consumed(command.Event)  { o.a.Peek() }

func TestObserver_RunsOutsideLock(t *testing.T) {
	obs := &observerThatPeeks{}
	a := New(WithObserver(obs))
	obs.a = a

	done := make(chan struct{})
	go func() {
		a.Push(command.Event{Action: command.Reset, Source: command.SourceVoice})
		a.Pull()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("observer call blocked on the arbiter lock")
	}
}

func TestConcurrentPushes(t *testing.T) {
	a := New()
	const perSource = 200

	var wg sync.WaitGroup
	for _, src := range []command.Source{command.SourceVoice, command.SourceGesture} {
		wg.Add(1)
		go func(src command.Source) {
			defer wg.Done()
			for i := 0; i < perSource; i++ {
				a.Push(command.Event{
					Action: command.Select,
					Text:   fmt.Sprintf("%s-%d", src, i),
					Source: src,
				})
			}
		}(src)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < perSource; i++ {
			a.Pull()
		}
	}()
	wg.Wait()

	snap := a.Peek()
	if snap.Seq != 2*perSource {
		t.Errorf("Seq = %d, want %d", snap.Seq, 2*perSource)
	}
	if snap.Action == command.Select && !strings.HasPrefix(snap.Text, string(snap.Source)+"-") {
		t.Errorf("event mixes fields: text %q from source %q", snap.Text, snap.Source)
	}
}

type blockingObserver struct {
	entered chan struct{}
	release chan struct{}
}

func (o *blockingObserver) Committed(command.Event) {
	close(o.entered)
	<-o.release
}

func (o *blockingObserver) Consumed(command.Event) {}

type orderLog struct {
	mu     sync.Mutex
	events []string
}

func (l *orderLog) add(kind string, ev command.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf("%s:%d", kind, ev.Seq))
}

func (l *orderLog) Committed(ev command.Event) { l.add("committed", ev) }
func (l *orderLog) Consumed(ev command.Event)  { l.add("consumed", ev) }

func TestObserver_ConsumedNeverPrecedesCommitted(t *testing.T) {
	slow := &blockingObserver{entered: make(chan struct{}), release: make(chan struct{})}
	log := &orderLog{}
	a := New(WithObserver(slow), WithObserver(log))

	pushed := make(chan struct{})
	go func() {
		a.Push(command.Event{Action: command.Select, Source: command.SourceVoice})
		close(pushed)
	}()
	<-slow.entered

	pulled := make(chan Snapshot, 1)
	go func() { pulled <- a.Pull() }()

	// The pull has already consumed SELECT in state; its notification must wait.
	time.Sleep(10 * time.Millisecond)
	close(slow.release)

	var snap Snapshot
	select {
	case snap = <-pulled:
	case <-time.After(2 * time.Second):
		t.Fatal("pull blocked")
	}
	<-pushed

	if !snap.Consumed || snap.Action != command.Select {
		t.Fatalf("pull = %+v, want consumed SELECT", snap)
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	want := []string{"committed:1", "consumed:1"}
	if strings.Join(log.events, ",") != strings.Join(want, ",") {
		t.Errorf("observer order = %v, want %v", log.events, want)
	}
}

func TestObserver_ConcurrentPushesInSeqOrder(t *testing.T) {
	log := &orderLog{}
	a := New(WithObserver(log))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				a.Push(command.Event{Action: command.Capture, Source: command.SourceGesture})
				a.Pull()
			}
		}()
	}
	wg.Wait()

	log.mu.Lock()
	defer log.mu.Unlock()
	var last uint64
	for _, e := range log.events {
		var kind string
		var seq uint64
		if _, err := fmt.Sscanf(strings.Replace(e, ":", " ", 1), "%s %d", &kind, &seq); err != nil {
			t.Fatalf("parse %q: %v", e, err)
		}
		if seq < last {
			t.Fatalf("%s arrived after seq %d", e, last)
		}
		last = seq
	}
}
