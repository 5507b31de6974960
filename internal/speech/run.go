package speech

import (
	"context"
	"errors"
	"io"

	"github.com/ayusman/nova/internal/command"
	"github.com/ayusman/nova/internal/logging"
)

// PushFunc delivers one voice command. It must not block for long.
type PushFunc func(ctx context.Context, action command.Action, text string)

// Run is the voice producer loop: each transcript from src is gated by wake
// (nil disables gating), mapped, and pushed unless it maps to IDLE. Run
// returns nil when src is exhausted or ctx is cancelled.
func Run(ctx context.Context, src Source, mapper Mapper, wake *WakeDetector, push PushFunc) error {
	for {
		text, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		if wake != nil {
			cmd, ok := wake.Accept(text)
			if !ok {
				if wake.Armed() {
					logging.Infow("wake phrase detected")
				} else {
					logging.Debugw("transcript ignored without wake phrase", "text", text)
				}
				continue
			}
			text = cmd
		}

		action := mapper.Map(text)
		if action == command.Idle {
			logging.Debugw("transcript not mapped", "text", text)
			continue
		}

		logging.Infow("voice command", "text", text, "action", action)
		push(ctx, action, text)
	}
}
