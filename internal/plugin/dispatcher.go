package plugin

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ayusman/nova/internal/command"
	"github.com/ayusman/nova/internal/logging"
)

const (
	DefaultWorkers = 2
	DefaultQueue   = 32
)

type dispatchJob struct {
	plugin *Plugin
	req    *Request
}

// Dispatcher runs subscribed plugins for every committed command. It
// implements arbiter.Observer. Runs happen on a small worker pool; when the
// queue is full the run is dropped and logged.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	jobs     chan dispatchJob
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	ran     atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// NewDispatcher starts workers goroutines draining a queue of the given size.
// Non-positive values select DefaultWorkers and DefaultQueue.
func NewDispatcher(m *Manager, e *Executor, workers, queue int) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queue <= 0 {
		queue = DefaultQueue
	}
	d := &Dispatcher{
		manager:  m,
		executor: e,
		jobs:     make(chan dispatchJob, queue),
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Committed queues a run of every plugin subscribed to ev.Action.
func (d *Dispatcher) Committed(ev command.Event) {
	plugins := d.manager.ForAction(ev.Action)
	if len(plugins) == 0 {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	req := NewRequest(ev)
	for _, p := range plugins {
		select {
		case d.jobs <- dispatchJob{plugin: p, req: req}:
		default:
			d.dropped.Add(1)
			logging.Warnw("plugin queue full, dropping run",
				"plugin", p.Manifest.Name, "action", ev.Action, "seq", ev.Seq)
		}
	}
}

// Consumed is a no-op; hooks fire on commit only.
func (d *Dispatcher) Consumed(command.Event) {}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		resp, err := d.executor.Execute(context.Background(), job.plugin, job.req)
		d.ran.Add(1)
		switch {
		case err != nil:
			d.failed.Add(1)
			logging.Warnw("plugin run failed", "plugin", job.plugin.Manifest.Name,
				"action", job.req.Action, "seq", job.req.Seq, "err", err)
		case !resp.Success:
			d.failed.Add(1)
			logging.Warnw("plugin reported failure", "plugin", job.plugin.Manifest.Name,
				"action", job.req.Action, "seq", job.req.Seq, "error", resp.Error)
		default:
			logging.Debugw("plugin ran", "plugin", job.plugin.Manifest.Name,
				"action", job.req.Action, "seq", job.req.Seq)
		}
	}
}

// Stats returns the number of finished, failed and dropped runs.
func (d *Dispatcher) Stats() (ran, failed, dropped int64) {
	return d.ran.Load(), d.failed.Load(), d.dropped.Load()
}

// Close stops accepting runs and waits for queued ones to finish.
// It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}
