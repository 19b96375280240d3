package detect

import (
	"strings"
	"time"

	"github.com/centinelalabs/centinela/internal/phrase"
)

// Snapshot is an immutable view of the running feature aggregates, produced
// on every event. The Machine consumes Snapshots and nothing else.
type Snapshot struct {
	// TotalSpeech is the summed duration of finalized segments.
	TotalSpeech time.Duration

	// FirstSegment is the duration of the first finalized segment. Short
	// first utterances indicate a human; long ones indicate a machine.
	FirstSegment time.Duration

	// LongestSilence is the largest silence gap observed so far, whether
	// derived from segment offsets or from the trailing-silence timer.
	LongestSilence time.Duration

	// PhraseMatched reports whether any segment matched a voicemail marker.
	PhraseMatched bool

	// MatchedPhrases lists the distinct markers matched, in first-hit order.
	MatchedPhrases []string

	// SegmentCount is the number of finalized segments so far.
	SegmentCount int

	// Transcript is the accumulated finalized text.
	Transcript string
}

// ExtractorConfig configures feature extraction for one call.
type ExtractorConfig struct {
	// Matcher is the voicemail phrase matcher. Required.
	Matcher *phrase.Matcher

	// MatchPartials additionally runs the matcher over non-final
	// hypotheses, trading a little precision for earlier machine detection.
	MatchPartials bool
}

// Extractor maintains the per-call feature aggregates. Updates are O(1)
// amortized per event: aggregates are never recomputed from history.
//
// An Extractor belongs to one call and is not safe for concurrent use.
type Extractor struct {
	cfg     ExtractorConfig
	snap    Snapshot
	text    strings.Builder
	matched map[string]struct{}
}

// NewExtractor returns an Extractor with zeroed aggregates.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	return &Extractor{
		cfg:     cfg,
		matched: make(map[string]struct{}),
	}
}

// Update folds one normalized event into the aggregates and returns the
// resulting snapshot. Events that carry no feature information (stream end)
// return the current snapshot unchanged.
func (e *Extractor) Update(ev Event) Snapshot {
	switch ev.Type {
	case EventSegment:
		if ev.Segment.Final {
			e.updateFinal(ev.Segment)
		} else if e.cfg.MatchPartials {
			e.matchText(ev.Segment.Text)
		}
	case EventSilence:
		if ev.Gap > e.snap.LongestSilence {
			e.snap.LongestSilence = ev.Gap
		}
	}
	return e.Snapshot()
}

// updateFinal folds a finalized segment into the aggregates.
func (e *Extractor) updateFinal(seg Segment) {
	dur := seg.Duration()
	e.snap.TotalSpeech += dur
	e.snap.SegmentCount++
	if e.snap.SegmentCount == 1 {
		e.snap.FirstSegment = dur
	}
	if seg.PrecedingSilence > e.snap.LongestSilence {
		e.snap.LongestSilence = seg.PrecedingSilence
	}

	if e.text.Len() > 0 {
		e.text.WriteByte(' ')
	}
	e.text.WriteString(strings.TrimSpace(seg.Text))

	e.matchText(seg.Text)
}

// matchText records phrase hits for the given text, deduplicated.
func (e *Extractor) matchText(text string) {
	if e.cfg.Matcher == nil {
		return
	}
	for _, hit := range e.cfg.Matcher.Match(text) {
		if _, seen := e.matched[hit]; seen {
			continue
		}
		e.matched[hit] = struct{}{}
		e.snap.MatchedPhrases = append(e.snap.MatchedPhrases, hit)
		e.snap.PhraseMatched = true
	}
}

// Snapshot returns a copy of the current aggregates. The MatchedPhrases
// slice is copied so callers can hold snapshots across further updates.
func (e *Extractor) Snapshot() Snapshot {
	s := e.snap
	s.Transcript = e.text.String()
	if len(e.snap.MatchedPhrases) > 0 {
		s.MatchedPhrases = append([]string(nil), e.snap.MatchedPhrases...)
	}
	return s
}
