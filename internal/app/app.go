// Package app runs the gesture producer: camera frames in, hub commands out.
package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/nova/internal/capture"
	"github.com/ayusman/nova/internal/command"
	"github.com/ayusman/nova/internal/detector"
	"github.com/ayusman/nova/internal/gesture"
	"github.com/ayusman/nova/internal/logging"
)

const DefaultStreamInterval = 100 * time.Millisecond

// PushFunc delivers one gesture command to the hub. It must not block longer
// than the producer timeout.
type PushFunc func(ctx context.Context, action command.Action)

// Config wires the producer.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector
	Push     PushFunc
	// Saver stores the frame for CAPTURE; nil disables saving.
	Saver *capture.Saver

	Classifier gesture.Config
	HandPolicy gesture.HandPolicy

	FPS            int
	IdleFPS        int
	StreamInterval time.Duration
	// MotionThreshold is the percentage of changed pixels that counts as
	// motion. Zero disables gating and every frame is classified.
	MotionThreshold float64
	IdleAfter       time.Duration
}

// Stats counts what the producer has done since it was created.
type Stats struct {
	Frames   int64
	Pushes   int64
	Captures int64
}

// App is the gesture producer.
type App struct {
	cfg     Config
	tracker *gesture.Tracker
	emitter *emitter
	motion  *capture.MotionDetector
	gate    *capture.ActivityGate

	mu      sync.Mutex
	enabled bool
	stopCh  chan struct{}
	done    chan struct{}

	fps      atomic.Int64
	frames   atomic.Int64
	pushes   atomic.Int64
	captures atomic.Int64
}

// New validates cfg and builds an enabled producer.
func New(cfg Config) (*App, error) {
	if cfg.Camera == nil || cfg.Detector == nil || cfg.Push == nil {
		return nil, errors.New("app: camera, detector and push are required")
	}
	if err := cfg.Classifier.Validate(); err != nil {
		return nil, err
	}
	if cfg.FPS <= 0 {
		cfg.FPS = capture.DefaultFPS
	}
	if cfg.IdleFPS <= 0 || cfg.IdleFPS > cfg.FPS {
		cfg.IdleFPS = min(capture.IdleFPS, cfg.FPS)
	}
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = DefaultStreamInterval
	}

	a := &App{
		cfg:     cfg,
		tracker: gesture.NewTracker(cfg.Classifier, cfg.HandPolicy),
		emitter: newEmitter(cfg.StreamInterval),
		enabled: true,
	}
	a.fps.Store(int64(cfg.FPS))
	if cfg.MotionThreshold > 0 {
		a.motion = capture.NewMotionDetector(cfg.MotionThreshold)
		a.gate = capture.NewActivityGate(cfg.IdleAfter)
		a.fps.Store(int64(cfg.IdleFPS))
	}
	return a, nil
}

// SetEnabled pauses or resumes classification. Paused frames are not read.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled reports whether classification is running.
func (a *App) IsEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// FPS returns the current frame rate of the loop.
func (a *App) FPS() int { return int(a.fps.Load()) }

// Stats returns the producer counters.
func (a *App) Stats() Stats {
	return Stats{
		Frames:   a.frames.Load(),
		Pushes:   a.pushes.Load(),
		Captures: a.captures.Load(),
	}
}

// Start opens the camera and begins the frame loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if err := a.cfg.Camera.Open(); err != nil {
		return err
	}
	a.cfg.Camera.SetFPS(a.FPS())

	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.runPipeline(a.stopCh, a.done)

	logging.Infow("gesture pipeline started", "fps", a.FPS(), "motion_gating", a.motion != nil)
	return nil
}

// Stop halts the loop and releases the camera, detector and motion state.
func (a *App) Stop() {
	a.mu.Lock()
	stop, done := a.stopCh, a.done
	a.stopCh, a.done = nil, nil
	a.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done

	if err := a.cfg.Camera.Close(); err != nil {
		logging.Warnw("close camera", "err", err)
	}
	if a.motion != nil {
		a.motion.Close()
	}
	if err := a.cfg.Detector.Close(); err != nil {
		logging.Warnw("close detector", "err", err)
	}

	s := a.Stats()
	logging.Infow("gesture pipeline stopped", "frames", s.Frames, "pushes", s.Pushes, "captures", s.Captures)
}
