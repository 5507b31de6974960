package speech

import (
	"strings"
	"sync"
	"time"
)

const (
	DefaultWakePhrase = "nova"
	// DefaultArmWindow is how long a bare wake phrase waits for the command.
	DefaultArmWindow = 3 * time.Second
)

// WakeDetector gates transcripts on a wake phrase. The phrase must appear
// within the first SearchWords words; zero means it must lead the transcript.
// A transcript that is only the wake phrase arms the detector so the next
// transcript within ArmWindow is accepted without it.
type WakeDetector struct {
	Phrases     []string
	SearchWords int
	ArmWindow   time.Duration

	mu         sync.Mutex
	armedUntil time.Time
	now        func() time.Time
}

// NewWakeDetector creates a detector for phrases, or DefaultWakePhrase.
func NewWakeDetector(phrases ...string) *WakeDetector {
	var normalized []string
	for _, p := range phrases {
		if p = normalize(p); p != "" {
			normalized = append(normalized, p)
		}
	}
	if len(normalized) == 0 {
		normalized = []string{DefaultWakePhrase}
	}
	return &WakeDetector{
		Phrases:   normalized,
		ArmWindow: DefaultArmWindow,
		now:       time.Now,
	}
}

// Detect reports whether text carries a wake phrase and returns the text
// that follows it.
func (w *WakeDetector) Detect(text string) (bool, string) {
	words := strings.Fields(normalize(text))
	if len(words) == 0 {
		return false, ""
	}

	for _, phrase := range w.Phrases {
		pw := strings.Fields(phrase)
		last := 0
		if w.SearchWords > 0 {
			last = w.SearchWords - 1
		}
		for i := 0; i <= last && i+len(pw) <= len(words); i++ {
			if equalWords(words[i:i+len(pw)], pw) {
				return true, strings.Join(words[i+len(pw):], " ")
			}
		}
	}
	return false, ""
}

// Accept applies the gate to one transcript. It returns the command text to
// map and whether the transcript passes.
func (w *WakeDetector) Accept(text string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock()
	matched, rest := w.Detect(text)
	switch {
	case matched && rest == "":
		w.armedUntil = now.Add(w.ArmWindow)
		return "", false
	case matched:
		w.armedUntil = time.Time{}
		return rest, true
	case now.Before(w.armedUntil):
		w.armedUntil = time.Time{}
		return text, true
	}
	return "", false
}

// Armed reports whether a bare wake phrase is waiting for its command.
func (w *WakeDetector) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.clock().Before(w.armedUntil)
}

func (w *WakeDetector) clock() time.Time {
	if w.now == nil {
		return time.Now()
	}
	return w.now()
}

func equalWords(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
