// Package speech turns transcribed utterances into hub commands.
package speech

import (
	"strings"
	"unicode"

	"github.com/ayusman/nova/internal/command"
)

// DefaultMinLength is the shortest trimmed transcript that is mapped at all.
const DefaultMinLength = 2

// Mapper maps a transcript to an action. IDLE means nothing should be pushed.
type Mapper interface {
	Map(text string) command.Action
}

// Rule binds a spoken phrase to an action.
type Rule struct {
	Phrase string
	Action command.Action
}

// DefaultRules is the built-in vocabulary.
var DefaultRules = []Rule{
	{"zoom in", command.ZoomIn},
	{"enlarge", command.ZoomIn},
	{"magnify", command.ZoomIn},
	{"bigger", command.ZoomIn},
	{"zoom out", command.ZoomOut},
	{"shrink", command.ZoomOut},
	{"smaller", command.ZoomOut},
	{"rotate", command.Rotate},
	{"turn", command.Rotate},
	{"spin", command.Rotate},
	{"scroll up", command.ScrollUp},
	{"scroll down", command.ScrollDown},
	{"swipe left", command.SwipeLeft},
	{"previous", command.SwipeLeft},
	{"go back", command.SwipeLeft},
	{"swipe right", command.SwipeRight},
	{"next", command.SwipeRight},
	{"reset", command.Reset},
	{"clear", command.Reset},
	{"start over", command.Reset},
	{"capture", command.Capture},
	{"screenshot", command.Capture},
	{"take a picture", command.Capture},
	{"snapshot", command.Capture},
	{"select", command.Select},
	{"choose", command.Select},
	{"pick", command.Select},
	{"open", command.Select},
}

// KeywordMapper matches whole-word phrases. When several phrases occur the
// longest wins; among equally long ones the earliest in the transcript wins,
// then the earliest rule.
type KeywordMapper struct {
	rules     []Rule
	MinLength int
}

// NewKeywordMapper creates a mapper over rules, or DefaultRules when none
// are given.
func NewKeywordMapper(rules ...Rule) *KeywordMapper {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	normalized := make([]Rule, 0, len(rules))
	for _, r := range rules {
		phrase := normalize(r.Phrase)
		if phrase == "" || !r.Action.Valid() || r.Action == command.Idle {
			continue
		}
		normalized = append(normalized, Rule{Phrase: phrase, Action: r.Action})
	}
	return &KeywordMapper{rules: normalized, MinLength: DefaultMinLength}
}

// Rules returns the normalized rule table.
func (m *KeywordMapper) Rules() []Rule {
	return append([]Rule(nil), m.rules...)
}

// Map implements Mapper.
func (m *KeywordMapper) Map(text string) command.Action {
	if len([]rune(strings.TrimSpace(text))) < m.MinLength {
		return command.Idle
	}

	padded := " " + normalize(text) + " "
	best := command.Idle
	bestLen, bestPos := 0, 0
	for _, r := range m.rules {
		pos := strings.Index(padded, " "+r.Phrase+" ")
		if pos < 0 {
			continue
		}
		n := len(r.Phrase)
		if n > bestLen || (n == bestLen && pos < bestPos) {
			best, bestLen, bestPos = r.Action, n, pos
		}
	}
	return best
}

// normalize lowercases s, turns punctuation into spaces and collapses runs
// of whitespace.
func normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
