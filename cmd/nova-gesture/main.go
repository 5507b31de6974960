// Command nova-gesture reads the webcam, classifies hand gestures and pushes
// the resulting commands to the hub.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ayusman/nova/internal/app"
	"github.com/ayusman/nova/internal/capture"
	"github.com/ayusman/nova/internal/command"
	"github.com/ayusman/nova/internal/config"
	"github.com/ayusman/nova/internal/detector"
	"github.com/ayusman/nova/internal/gesture"
	"github.com/ayusman/nova/internal/hubclient"
	"github.com/ayusman/nova/internal/logging"
)

const cleanInterval = 10 * time.Minute

func main() {
	configPath := flag.String("config", "", "config file (default ~/.nova/config.json)")
	hubURL := flag.String("hub", "", "hub base URL, overrides gesture.hub_url")
	cameraID := flag.Int("camera", -1, "camera device id, overrides gesture.camera_id")
	noCapture := flag.Bool("no-capture", false, "do not save frames on CAPTURE")
	flag.Parse()

	logging.Init("nova-gesture")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Errorw("load config", "err", err)
		logging.Sync()
		os.Exit(1)
	}
	g := cfg.Gesture
	if *hubURL != "" {
		g.HubURL = *hubURL
	}
	if *cameraID >= 0 {
		g.CameraID = *cameraID
	}
	if *noCapture {
		g.CaptureDir = ""
	}

	if err := run(g); err != nil {
		logging.Errorw("gesture producer stopped", "err", err)
		logging.Sync()
		os.Exit(1)
	}
	logging.Sync()
}

func run(g config.GestureConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dcfg := detector.DefaultConfig()
	dcfg.MaxHands = g.MaxHands
	dcfg.MinConfidence = g.MinConfidence
	dcfg.FrameTimeout = g.FrameTimeout.D()
	det, err := detector.NewMediaPipeDetector(dcfg)
	if err != nil {
		return err
	}

	policy, err := gesture.ParseHandPolicy(g.HandPolicy)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	var saver *capture.Saver
	if g.CaptureDir != "" {
		saver, err = capture.NewSaver(g.CaptureDir)
		if err != nil {
			return err
		}
		if g.CaptureRetention > 0 || g.CaptureMaxFiles > 0 {
			wg.Add(1)
			capture.StartCleaner(ctx, &wg, g.CaptureDir, g.CaptureRetention.D(), cleanInterval, g.CaptureMaxFiles)
		}
	}

	client := hubclient.New(g.HubURL, g.PushTimeout.D())
	producer, err := app.New(app.Config{
		Camera:   capture.NewCamera(g.CameraID),
		Detector: det,
		Saver:    saver,
		Push: func(ctx context.Context, action command.Action) {
			client.Send(ctx, action, "", command.SourceGesture)
		},
		Classifier:      g.Classifier,
		HandPolicy:      policy,
		FPS:             g.FPS,
		StreamInterval:  g.StreamInterval.D(),
		MotionThreshold: g.MotionThreshold,
		IdleAfter:       g.IdleAfter.D(),
	})
	if err != nil {
		return err
	}
	if err := producer.Start(); err != nil {
		return err
	}
	logging.Infow("gesture producer running", "hub", client.BaseURL, "camera", g.CameraID, "captures", g.CaptureDir)

	<-ctx.Done()
	producer.Stop()
	wg.Wait()
	return nil
}
