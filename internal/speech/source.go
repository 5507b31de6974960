package speech

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/ayusman/nova/internal/logging"
)

// MaxLineBytes bounds a single transcript. Longer lines are dropped.
const MaxLineBytes = 64 << 10

// Source yields transcripts, one per call.
type Source interface {
	Next(ctx context.Context) (string, error)
}

type lineResult struct {
	text string
	err  error
}

// LineSource reads one transcript per line, for a transcription engine piped
// into stdin. Blank lines are skipped. Next returns io.EOF at the end.
type LineSource struct {
	lines chan lineResult
}

// NewLineSource starts reading r in the background.
func NewLineSource(r io.Reader) *LineSource {
	s := &LineSource{lines: make(chan lineResult)}
	go s.read(r)
	return s
}

func (s *LineSource) read(r io.Reader) {
	defer close(s.lines)
	br := bufio.NewReader(r)
	var buf []byte
	overlong := false
	for {
		chunk, more, err := br.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.lines <- lineResult{err: err}
			}
			return
		}
		if !overlong {
			if len(buf)+len(chunk) > MaxLineBytes {
				overlong = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if more {
			continue
		}
		if overlong {
			logging.Warnw("transcript line too long, dropped", "limit", MaxLineBytes)
		} else if line := strings.TrimSpace(string(buf)); line != "" {
			s.lines <- lineResult{text: line}
		}
		buf = buf[:0]
		overlong = false
	}
}

// Next blocks until a transcript is available or ctx is done.
func (s *LineSource) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return res.text, res.err
	}
}
