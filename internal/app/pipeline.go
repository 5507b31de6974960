package app

import (
	"context"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/nova/internal/command"
	"github.com/ayusman/nova/internal/detector"
	"github.com/ayusman/nova/internal/logging"
)

// runPipeline reads one frame per tick until stop is closed. With motion
// gating the tick rate drops to IdleFPS while the scene is still.
func (a *App) runPipeline(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	fps := a.FPS()
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}
			a.step(time.Now())

			if next := a.FPS(); next != fps {
				fps = next
				a.cfg.Camera.SetFPS(fps)
				ticker.Reset(time.Second / time.Duration(fps))
			}
		}
	}
}

// step handles one tick. A failed read counts as a frame without hands.
func (a *App) step(now time.Time) command.Action {
	frame, err := a.cfg.Camera.ReadFrame()
	if err != nil {
		logging.Debugw("frame read failed", "err", err)
		return a.ProcessHands(nil, nil, now)
	}
	defer frame.Close()
	return a.ProcessFrame(frame, now)
}

// ProcessFrame mirrors frame so movement matches the user's view, applies
// motion gating and runs detection on it.
func (a *App) ProcessFrame(frame *gocv.Mat, now time.Time) command.Action {
	if frame == nil || frame.Empty() {
		return a.ProcessHands(nil, nil, now)
	}
	mirrored := gocv.NewMat()
	defer mirrored.Close()
	gocv.Flip(*frame, &mirrored, 1)

	if a.motion != nil {
		moved, _ := a.motion.Detect(&mirrored)
		active, switched := a.gate.Update(moved, now)
		if switched {
			a.switchMode(active)
		}
		if !active {
			return a.ProcessHands(nil, nil, now)
		}
	}

	hands, err := a.cfg.Detector.Detect(&mirrored)
	if err != nil {
		logging.Debugw("hand detection failed", "err", err)
		hands = nil
	}
	return a.ProcessHands(hands, &mirrored, now)
}

func (a *App) switchMode(active bool) {
	if active {
		a.fps.Store(int64(a.cfg.FPS))
		logging.Debugw("motion detected, switching to active mode", "fps", a.cfg.FPS)
		return
	}
	a.fps.Store(int64(a.cfg.IdleFPS))
	logging.Debugw("no motion, switching to idle mode", "fps", a.cfg.IdleFPS)
}

// ProcessHands classifies one frame's hands and pushes the result when the
// emit policy allows. frame is the image the hands were found in; it is saved
// on CAPTURE before the push and may be nil.
func (a *App) ProcessHands(hands []detector.HandLandmarks, frame *gocv.Mat, now time.Time) command.Action {
	a.frames.Add(1)

	action, _ := a.tracker.Observe(hands, now)
	if !a.emitter.next(action, now) {
		return action
	}

	if action == command.Capture && a.cfg.Saver != nil {
		if path, err := a.cfg.Saver.Save(frame, now); err != nil {
			logging.Warnw("capture not saved", "err", err)
		} else {
			a.captures.Add(1)
			logging.Infow("gesture capture", "path", path)
		}
	}

	logging.Debugw("gesture command", "action", action)
	a.cfg.Push(context.Background(), action)
	a.pushes.Add(1)
	return action
}
