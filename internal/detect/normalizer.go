package detect

import (
	"time"

	"github.com/centinelalabs/centinela/pkg/recognizer"
)

// Normalizer converts raw recognizer results into the canonical event
// stream. It tracks the end of the last committed segment so that
// PrecedingSilence can be derived from segment offsets alone, and it stops
// producing segment events once the stream has ended or failed.
//
// A Normalizer belongs to one call and is not safe for concurrent use.
type Normalizer struct {
	lastFinalEnd time.Duration
	sawFinal     bool
	ended        bool
}

// NewNormalizer returns a Normalizer ready to consume results.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize converts one recognizer result into a segment event. It returns
// false for results that should be dropped: empty hypotheses, and anything
// arriving after the stream ended.
func (n *Normalizer) Normalize(res recognizer.Result) (Event, bool) {
	if n.ended || res.Text == "" {
		return Event{}, false
	}

	seg := Segment{
		Text:  res.Text,
		Final: res.Final,
		Start: res.Start,
		End:   res.End,
	}
	if res.Final {
		if n.sawFinal && seg.Start > n.lastFinalEnd {
			seg.PrecedingSilence = seg.Start - n.lastFinalEnd
		}
		if seg.End > n.lastFinalEnd {
			n.lastFinalEnd = seg.End
		}
		n.sawFinal = true
	}
	return Event{Type: EventSegment, Segment: seg}, true
}

// EndStream terminates the normalized stream. A non-nil err yields a
// recognition failure event; nil yields a clean stream end. Either way the
// Normalizer drops all subsequent results.
func (n *Normalizer) EndStream(err error) Event {
	n.ended = true
	if err != nil {
		return Event{Type: EventRecognitionFailed, Err: err}
	}
	return Event{Type: EventStreamEnded}
}

// Silence builds a trailing-silence event for the given gap. Used by the
// session's silence timer; offset-derived gaps between segments are already
// carried on the segments themselves.
func (n *Normalizer) Silence(gap time.Duration) Event {
	return Event{Type: EventSilence, Gap: gap}
}

// LastSpeechEnd returns the media offset where committed speech last ended.
func (n *Normalizer) LastSpeechEnd() time.Duration {
	return n.lastFinalEnd
}
