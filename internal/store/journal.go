package store

import (
	"errors"
	"sync"
	"time"

	"github.com/ayusman/nova/internal/command"
	"github.com/ayusman/nova/internal/logging"
)

// DefaultJournalQueue is the number of pending writes a Journal buffers.
const DefaultJournalQueue = 256

type journalOp struct {
	ev       command.Event
	consumed bool
	at       time.Time
}

// Journal records arbiter transitions in the commands table. Writes happen
// on one background goroutine; when the queue is full entries are dropped
// so the caller never waits on disk.
type Journal struct {
	repo    *CommandRepository
	session string
	now     func() time.Time

	ops  chan journalOp
	done chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped int
}

// NewJournal starts a journal writing into s under a fresh session.
func NewJournal(s *Store, maxAge time.Duration, queue int) (*Journal, error) {
	sess, err := s.CreateSession(maxAge)
	if err != nil {
		return nil, err
	}
	if queue <= 0 {
		queue = DefaultJournalQueue
	}

	j := &Journal{
		repo:    s.Commands(),
		session: sess.ID,
		now:     time.Now,
		ops:     make(chan journalOp, queue),
		done:    make(chan struct{}),
	}
	go j.run()
	return j, nil
}

// SessionID identifies the session this journal writes under.
func (j *Journal) SessionID() string { return j.session }

// Committed enqueues a new journal record.
func (j *Journal) Committed(ev command.Event) {
	j.enqueue(journalOp{ev: ev})
}

// Consumed enqueues a consumption mark for a journaled event.
func (j *Journal) Consumed(ev command.Event) {
	j.enqueue(journalOp{ev: ev, consumed: true, at: j.now()})
}

// Dropped returns how many writes were discarded because the queue was full.
func (j *Journal) Dropped() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.dropped
}

func (j *Journal) enqueue(op journalOp) {
	j.mu.RLock()
	sent := false
	if !j.closed {
		select {
		case j.ops <- op:
			sent = true
		default:
		}
	}
	j.mu.RUnlock()

	if !sent {
		j.mu.Lock()
		j.dropped++
		j.mu.Unlock()
		logging.Warnw("journal write dropped", "seq", op.ev.Seq, "action", op.ev.Action)
	}
}

func (j *Journal) run() {
	defer close(j.done)

	// A pull can be observed before the push that it consumed has been
	// enqueued; such marks wait here for their insert.
	early := make(map[uint64]time.Time)

	for op := range j.ops {
		if op.consumed {
			err := j.repo.MarkConsumed(j.session, op.ev.Seq, op.at)
			switch {
			case errors.Is(err, ErrNotFound):
				early[op.ev.Seq] = op.at
			case err != nil:
				logging.Warnw("journal mark consumed", "seq", op.ev.Seq, "err", err)
			}
			continue
		}

		digest, err := op.ev.Digest()
		if err != nil {
			logging.Warnw("journal digest", "seq", op.ev.Seq, "err", err)
			continue
		}
		rec := &Command{
			SessionID:  j.session,
			Seq:        op.ev.Seq,
			Action:     op.ev.Action,
			Text:       op.ev.Text,
			Source:     op.ev.Source,
			Digest:     digest,
			ReceivedAt: op.ev.Timestamp,
		}
		if err := j.repo.Create(rec); err != nil {
			logging.Warnw("journal insert", "seq", op.ev.Seq, "err", err)
			continue
		}
		if at, ok := early[rec.Seq]; ok {
			delete(early, rec.Seq)
			if err := j.repo.MarkConsumed(j.session, rec.Seq, at); err != nil {
				logging.Warnw("journal mark consumed", "seq", rec.Seq, "err", err)
			}
		}
	}
}

// Close stops accepting writes and waits for queued ones to finish.
func (j *Journal) Close() error {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.ops)
	}
	j.mu.Unlock()
	<-j.done
	return nil
}
