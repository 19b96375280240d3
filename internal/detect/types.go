// Package detect implements the streaming answering-machine detection core:
// normalization of recognizer output into a canonical event stream, O(1)
// incremental feature extraction, and the per-call classification state
// machine that turns features into a HUMAN/MACHINE/UNKNOWN decision.
//
// The types here are deliberately transport-free. One set of Normalizer,
// Extractor, and Machine instances belongs to exactly one call and is driven
// by a single goroutine; none of them lock.
package detect

import (
	"time"
)

// Label is the terminal classification of a call's answering party.
type Label string

const (
	// LabelHuman means a person answered.
	LabelHuman Label = "HUMAN"

	// LabelMachine means an answering machine or voicemail greeting answered.
	LabelMachine Label = "MACHINE"

	// LabelUnknown means no reliable classification was possible in time.
	LabelUnknown Label = "UNKNOWN"
)

// Reason is the enumerated cause of a decision, for observability.
type Reason string

const (
	// ReasonPhraseMatched fires when transcribed speech contains a
	// configured voicemail marker phrase.
	ReasonPhraseMatched Reason = "phrase_matched"

	// ReasonLongGreeting fires when the first utterance runs past the
	// long-greeting threshold without a meaningful pause.
	ReasonLongGreeting Reason = "long_uninterrupted_greeting"

	// ReasonEarlyPause fires when the answering party pauses to listen
	// shortly after a first short utterance.
	ReasonEarlyPause Reason = "early_pause_detected"

	// ReasonNoSpeechTimeout fires when the deadline passes with no speech.
	ReasonNoSpeechTimeout Reason = "no_speech_timeout"

	// ReasonEvaluationTimeout fires when the deadline passes without a firm
	// match while speech was observed.
	ReasonEvaluationTimeout Reason = "evaluation_timeout"

	// ReasonRecognitionError fires when the recognizer stream failed.
	ReasonRecognitionError Reason = "recognition_error"
)

// Decision is the terminal output for one call. Once produced it is
// immutable; a call decides exactly once.
type Decision struct {
	// Label is the classification.
	Label Label

	// Confidence is the score in [0, 1].
	Confidence float64

	// Reason is the transition that produced the decision.
	Reason Reason

	// DecidedAt is the offset from session start when the decision was
	// reached.
	DecidedAt time.Duration

	// Transcript is the accumulated finalized text at decision time.
	Transcript string

	// MatchedPhrases lists the voicemail markers that matched, if any.
	MatchedPhrases []string
}

// Segment is one contiguous span of detected speech.
type Segment struct {
	// Text is the best hypothesis for the span.
	Text string

	// Final reports whether the recognizer has committed the span.
	Final bool

	// Start and End are the span boundaries relative to session start.
	Start time.Duration
	End   time.Duration

	// PrecedingSilence is the silence immediately before this span; zero
	// for the first span of a call.
	PrecedingSilence time.Duration
}

// Duration returns the span length, or zero when timing is absent.
func (s Segment) Duration() time.Duration {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// EventType discriminates normalized pipeline events.
type EventType int

const (
	// EventSegment carries a partial or final speech segment.
	EventSegment EventType = iota

	// EventSilence marks a trailing silence gap after the last speech.
	EventSilence

	// EventStreamEnded marks clean end of recognizer output.
	EventStreamEnded

	// EventRecognitionFailed marks a terminal recognizer failure.
	EventRecognitionFailed
)

// String returns the event type name used in logs.
func (t EventType) String() string {
	switch t {
	case EventSegment:
		return "segment"
	case EventSilence:
		return "silence"
	case EventStreamEnded:
		return "stream_ended"
	case EventRecognitionFailed:
		return "recognition_failed"
	}
	return "unknown"
}

// Event is one element of the canonical per-call event stream.
type Event struct {
	// Type discriminates which of the remaining fields are meaningful.
	Type EventType

	// Segment is set for EventSegment.
	Segment Segment

	// Gap is the silence duration for EventSilence.
	Gap time.Duration

	// Err is set for EventRecognitionFailed.
	Err error
}
