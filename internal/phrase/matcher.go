// Package phrase implements machine-greeting phrase detection over
// transcribed speech. Matching is intentionally loose: primary matching is
// case-insensitive substring search over a configurable phrase list, with an
// optional Jaro-Winkler fuzzy pass that catches recognizer misspellings of
// multi-word phrases ("deje su mensahe" still hits "deje su mensaje").
//
// A Matcher is read-only after construction and safe for concurrent use.
package phrase

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// DefaultPhrases is the built-in voicemail marker list: a Spanish core set
// plus common English fallbacks. Deployments override it through
// configuration.
var DefaultPhrases = []string{
	// Spanish
	"mensaje", "buzón", "buzon", "tono", "ocupado", "disponible",
	"después del", "despues del", "deje su", "deja tu", "no se encuentra",
	"fuera de servicio", "no está disponible", "no esta disponible",
	"vuelva a llamar", "intentelo más tarde", "intentelo mas tarde",
	"número que usted marcó", "numero que usted marco",
	"en este momento", "por favor", "gracias por llamar",
	"horario de atención", "horario de atencion",
	"marque la extensión", "marque la extension",
	"bienvenido", "ha comunicado con", "ha llamado a",
	// English
	"voicemail", "leave a message", "after the tone", "beep",
	"not available", "please call back",
}

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithFuzzyThreshold enables the Jaro-Winkler fuzzy pass with the given
// minimum similarity in (0, 1]. A threshold of 0 (the default) disables
// fuzzy matching entirely.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher checks transcripts against a fixed phrase list.
type Matcher struct {
	phrases        []string
	fuzzyThreshold float64
}

// New returns a Matcher over the given phrase list. Phrases are matched
// case-insensitively; empty entries are dropped. A nil or empty list yields
// a matcher that never matches.
func New(phrases []string, opts ...Option) *Matcher {
	m := &Matcher{}
	for _, o := range opts {
		o(m)
	}
	m.phrases = make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			m.phrases = append(m.phrases, p)
		}
	}
	return m
}

// Match returns the phrases found in text, in phrase-list order. The result
// is nil when nothing matches.
func (m *Matcher) Match(text string) []string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" || len(m.phrases) == 0 {
		return nil
	}

	var hits []string
	for _, p := range m.phrases {
		if strings.Contains(text, p) {
			hits = append(hits, p)
			continue
		}
		if m.fuzzyThreshold > 0 && m.fuzzyMatch(text, p) {
			hits = append(hits, p)
		}
	}
	return hits
}

// Matches reports whether text contains at least one configured phrase.
func (m *Matcher) Matches(text string) bool {
	return len(m.Match(text)) > 0
}

// fuzzyMatch slides a window of len(words(phrase)) words across text and
// accepts when any window's Jaro-Winkler similarity reaches the threshold.
func (m *Matcher) fuzzyMatch(text, phrase string) bool {
	pw := strings.Fields(phrase)
	tw := strings.Fields(text)
	if len(pw) == 0 || len(tw) < len(pw) {
		return false
	}

	for i := 0; i+len(pw) <= len(tw); i++ {
		window := strings.Join(tw[i:i+len(pw)], " ")
		if matchr.JaroWinkler(window, phrase, false) >= m.fuzzyThreshold {
			return true
		}
	}
	return false
}
