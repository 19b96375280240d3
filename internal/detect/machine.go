package detect

import (
	"log/slog"
	"time"
)

// State is the classification phase of one call.
type State string

const (
	// StateAwaitingSpeech is the initial state: no finalized speech yet.
	StateAwaitingSpeech State = "awaiting_speech"

	// StateEvaluating means at least one finalized segment has arrived and
	// the call is being classified.
	StateEvaluating State = "evaluating"

	// StateHuman, StateMachine, and StateUnknown are terminal. Each is
	// entered at most once; after that all further input is discarded.
	StateHuman   State = "human"
	StateMachine State = "machine"
	StateUnknown State = "unknown"
)

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool {
	switch s {
	case StateHuman, StateMachine, StateUnknown:
		return true
	}
	return false
}

// Confidence constants for deterministic transitions. Duration- and
// silence-based transitions instead scale with threshold exceedance.
const (
	confPhraseMatch      = 0.90
	confMultiPhraseMatch = 0.95
	confNoSpeechTimeout  = 0.20
	confEvalTimeout      = 0.30
)

// Thresholds are the tunable decision boundaries for one call.
type Thresholds struct {
	// ShortPause is the silence gap that marks a human listening pause.
	ShortPause time.Duration

	// LongGreeting is the first-utterance duration past which a greeting is
	// considered machine-generated.
	LongGreeting time.Duration
}

// Machine is the detection state machine for one call. It consumes feature
// snapshots and timer expiries and produces at most one Decision.
//
// A Machine belongs to one call and is not safe for concurrent use.
type Machine struct {
	th       Thresholds
	state    State
	last     Snapshot
	decision *Decision
}

// NewMachine returns a Machine in StateAwaitingSpeech.
func NewMachine(th Thresholds) *Machine {
	return &Machine{th: th, state: StateAwaitingSpeech}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Decision returns the terminal decision, if one has been reached.
func (m *Machine) Decision() (Decision, bool) {
	if m.decision == nil {
		return Decision{}, false
	}
	return *m.decision, true
}

// Observe evaluates a feature snapshot taken at offset `at` from session
// start. It returns the decision and true when the snapshot triggers a
// terminal transition. Snapshots arriving after a terminal transition are
// discarded.
func (m *Machine) Observe(s Snapshot, at time.Duration) (Decision, bool) {
	if m.state.Terminal() {
		slog.Debug("detect: snapshot after terminal state discarded", "state", m.state)
		return Decision{}, false
	}
	m.last = s

	if m.state == StateAwaitingSpeech {
		if s.SegmentCount == 0 {
			// A partial hypothesis can hit the phrase list before any
			// final commits when partial matching is enabled.
			if s.PhraseMatched {
				return m.decide(LabelMachine, ReasonPhraseMatched, phraseConfidence(s), at), true
			}
			return Decision{}, false
		}
		m.state = StateEvaluating
	}

	switch {
	case s.PhraseMatched:
		return m.decide(LabelMachine, ReasonPhraseMatched, phraseConfidence(s), at), true

	case s.LongestSilence > m.th.ShortPause && s.SegmentCount >= 1 && s.FirstSegment <= m.th.LongGreeting:
		return m.decide(LabelHuman, ReasonEarlyPause, scaledConfidence(s.LongestSilence, m.th.ShortPause), at), true

	case s.FirstSegment > m.th.LongGreeting && s.LongestSilence <= m.th.ShortPause:
		return m.decide(LabelMachine, ReasonLongGreeting, scaledConfidence(s.FirstSegment, m.th.LongGreeting), at), true
	}

	return Decision{}, false
}

// Expire forces the timeout transition at the decision deadline. It is a
// no-op after a terminal transition.
func (m *Machine) Expire(at time.Duration) (Decision, bool) {
	if m.state.Terminal() {
		return Decision{}, false
	}
	if m.state == StateAwaitingSpeech {
		return m.decide(LabelUnknown, ReasonNoSpeechTimeout, confNoSpeechTimeout, at), true
	}
	return m.decide(LabelUnknown, ReasonEvaluationTimeout, confEvalTimeout, at), true
}

// Fail resolves a recognizer failure to UNKNOWN. It is a no-op after a
// terminal transition.
func (m *Machine) Fail(at time.Duration) (Decision, bool) {
	if m.state.Terminal() {
		return Decision{}, false
	}
	return m.decide(LabelUnknown, ReasonRecognitionError, 0, at), true
}

// decide performs the terminal transition.
func (m *Machine) decide(label Label, reason Reason, confidence float64, at time.Duration) Decision {
	switch label {
	case LabelHuman:
		m.state = StateHuman
	case LabelMachine:
		m.state = StateMachine
	default:
		m.state = StateUnknown
	}
	m.decision = &Decision{
		Label:          label,
		Confidence:     confidence,
		Reason:         reason,
		DecidedAt:      at,
		Transcript:     m.last.Transcript,
		MatchedPhrases: m.last.MatchedPhrases,
	}
	return *m.decision
}

// phraseConfidence yields a deterministic score for phrase transitions:
// one marker hit is strong evidence, two or more is near-certain.
func phraseConfidence(s Snapshot) float64 {
	if len(s.MatchedPhrases) >= 2 {
		return confMultiPhraseMatch
	}
	return confPhraseMatch
}

// scaledConfidence scores duration/silence transitions by how far the
// observation exceeds its threshold, clamped to [0, 1]. Meeting the
// threshold exactly scores 0.6; a 2x overshoot saturates near 0.95.
func scaledConfidence(observed, threshold time.Duration) float64 {
	if threshold <= 0 {
		return 1
	}
	excess := float64(observed-threshold) / float64(threshold)
	c := 0.6 + 0.35*excess
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
