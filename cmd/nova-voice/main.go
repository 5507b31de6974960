// Command nova-voice maps transcript lines from a speech engine to commands
// and pushes them to the hub. Transcripts are read from stdin, one per line:
//
//	my-transcriber | nova-voice
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ayusman/nova/internal/command"
	"github.com/ayusman/nova/internal/config"
	"github.com/ayusman/nova/internal/hubclient"
	"github.com/ayusman/nova/internal/logging"
	"github.com/ayusman/nova/internal/speech"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.nova/config.json)")
	hubURL := flag.String("hub", "", "hub base URL, overrides voice.hub_url")
	wake := flag.String("wake", "", "comma-separated wake phrases, overrides voice.wake_phrases")
	noWake := flag.Bool("no-wake", false, "map every line without waiting for a wake phrase")
	flag.Parse()

	logging.Init("nova-voice")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Errorw("load config", "err", err)
		logging.Sync()
		os.Exit(1)
	}
	v := cfg.Voice
	if *hubURL != "" {
		v.HubURL = *hubURL
	}
	if *wake != "" {
		v.WakePhrases = strings.Split(*wake, ",")
	}
	if *noWake {
		v.WakePhrases = nil
	}

	if err := run(v); err != nil {
		logging.Errorw("voice producer stopped", "err", err)
		logging.Sync()
		os.Exit(1)
	}
	logging.Sync()
}

func run(v config.VoiceConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mapper := speech.NewKeywordMapper()
	mapper.MinLength = v.MinLength

	var wake *speech.WakeDetector
	if len(v.WakePhrases) > 0 {
		wake = speech.NewWakeDetector(v.WakePhrases...)
		wake.ArmWindow = v.ArmWindow.D()
	}

	client := hubclient.New(v.HubURL, v.PushTimeout.D())
	push := func(ctx context.Context, action command.Action, text string) {
		client.Send(ctx, action, text, command.SourceVoice)
	}

	logging.Infow("voice producer running", "hub", client.BaseURL, "wake", v.WakePhrases)
	return speech.Run(ctx, speech.NewLineSource(os.Stdin), mapper, wake, push)
}
