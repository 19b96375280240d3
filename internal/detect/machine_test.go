package detect

import (
	"testing"
	"time"

	"github.com/centinelalabs/centinela/internal/phrase"
)

// testThresholds mirror the tuning used throughout the scenario tests:
// a 700ms listening pause, a 4s long-greeting boundary.
func testThresholds() Thresholds {
	return Thresholds{
		ShortPause:   700 * time.Millisecond,
		LongGreeting: 4000 * time.Millisecond,
	}
}

func newTestExtractor(phrases []string, matchPartials bool) *Extractor {
	return NewExtractor(ExtractorConfig{
		Matcher:       phrase.New(phrases),
		MatchPartials: matchPartials,
	})
}

func finalSegment(text string, start, end time.Duration) Event {
	return Event{Type: EventSegment, Segment: Segment{
		Text:  text,
		Final: true,
		Start: start,
		End:   end,
	}}
}

func TestMachine_ShortGreetingThenPauseIsHuman(t *testing.T) {
	t.Parallel()

	ex := newTestExtractor(nil, false)
	m := NewMachine(testThresholds())

	// "Hello?" finalized at 0–900ms.
	snap := ex.Update(finalSegment("hello", 0, 900*time.Millisecond))
	if _, ok := m.Observe(snap, 900*time.Millisecond); ok {
		t.Fatal("no decision expected after a short first segment")
	}
	if m.State() != StateEvaluating {
		t.Fatalf("State = %v, want evaluating", m.State())
	}

	// 1200ms of trailing silence.
	snap = ex.Update(Event{Type: EventSilence, Gap: 1200 * time.Millisecond})
	d, ok := m.Observe(snap, 2100*time.Millisecond)
	if !ok {
		t.Fatal("expected a decision after the listening pause")
	}
	if d.Label != LabelHuman {
		t.Errorf("Label = %v, want HUMAN", d.Label)
	}
	if d.Reason != ReasonEarlyPause {
		t.Errorf("Reason = %v, want %v", d.Reason, ReasonEarlyPause)
	}
	if d.Confidence <= 0 || d.Confidence > 1 {
		t.Errorf("Confidence = %v, want in (0, 1]", d.Confidence)
	}
	if d.DecidedAt != 2100*time.Millisecond {
		t.Errorf("DecidedAt = %v, want 2.1s", d.DecidedAt)
	}
}

func TestMachine_PhraseMatchBeatsDuration(t *testing.T) {
	t.Parallel()

	ex := newTestExtractor([]string{"leave a message"}, false)
	m := NewMachine(testThresholds())

	// A single 5s greeting that also contains a marker phrase: the phrase
	// transition must win over the long-greeting one.
	snap := ex.Update(finalSegment(
		"hi this is john please leave a message after the tone",
		0, 5000*time.Millisecond,
	))
	d, ok := m.Observe(snap, 5000*time.Millisecond)
	if !ok {
		t.Fatal("expected a decision")
	}
	if d.Label != LabelMachine {
		t.Errorf("Label = %v, want MACHINE", d.Label)
	}
	if d.Reason != ReasonPhraseMatched {
		t.Errorf("Reason = %v, want %v", d.Reason, ReasonPhraseMatched)
	}
	if d.Confidence != confPhraseMatch {
		t.Errorf("Confidence = %v, want %v", d.Confidence, confPhraseMatch)
	}
	if len(d.MatchedPhrases) != 1 || d.MatchedPhrases[0] != "leave a message" {
		t.Errorf("MatchedPhrases = %v", d.MatchedPhrases)
	}
}

func TestMachine_MultiPhraseConfidence(t *testing.T) {
	t.Parallel()

	ex := newTestExtractor([]string{"deje su", "tono"}, false)
	m := NewMachine(testThresholds())

	snap := ex.Update(finalSegment("deje su mensaje despues del tono", 0, 2000*time.Millisecond))
	d, ok := m.Observe(snap, 2*time.Second)
	if !ok {
		t.Fatal("expected a decision")
	}
	if d.Confidence != confMultiPhraseMatch {
		t.Errorf("Confidence = %v, want %v", d.Confidence, confMultiPhraseMatch)
	}
}

func TestMachine_LongUninterruptedGreetingIsMachine(t *testing.T) {
	t.Parallel()

	ex := newTestExtractor([]string{"leave a message"}, false)
	m := NewMachine(testThresholds())

	// 4.5s continuous greeting, no phrase hit, no silence gap.
	snap := ex.Update(finalSegment(
		"you have reached the sales department of acme incorporated our offices are currently closed",
		0, 4500*time.Millisecond,
	))
	d, ok := m.Observe(snap, 4500*time.Millisecond)
	if !ok {
		t.Fatal("expected a decision")
	}
	if d.Label != LabelMachine {
		t.Errorf("Label = %v, want MACHINE", d.Label)
	}
	if d.Reason != ReasonLongGreeting {
		t.Errorf("Reason = %v, want %v", d.Reason, ReasonLongGreeting)
	}
}

func TestMachine_NoSpeechTimeoutIsUnknown(t *testing.T) {
	t.Parallel()

	m := NewMachine(testThresholds())

	d, ok := m.Expire(3 * time.Second)
	if !ok {
		t.Fatal("expected a decision at deadline")
	}
	if d.Label != LabelUnknown {
		t.Errorf("Label = %v, want UNKNOWN", d.Label)
	}
	if d.Reason != ReasonNoSpeechTimeout {
		t.Errorf("Reason = %v, want %v", d.Reason, ReasonNoSpeechTimeout)
	}
	if d.Confidence > 0.3 {
		t.Errorf("Confidence = %v, want <= 0.3", d.Confidence)
	}
}

func TestMachine_EvaluationTimeoutIsUnknown(t *testing.T) {
	t.Parallel()

	ex := newTestExtractor(nil, false)
	m := NewMachine(testThresholds())

	// Some speech, but nothing decisive before the deadline.
	snap := ex.Update(finalSegment("eh si un momento", 0, 1500*time.Millisecond))
	if _, ok := m.Observe(snap, 1500*time.Millisecond); ok {
		t.Fatal("no decision expected")
	}

	d, ok := m.Expire(3500 * time.Millisecond)
	if !ok {
		t.Fatal("expected a decision at deadline")
	}
	if d.Reason != ReasonEvaluationTimeout {
		t.Errorf("Reason = %v, want %v", d.Reason, ReasonEvaluationTimeout)
	}
	if d.Transcript != "eh si un momento" {
		t.Errorf("Transcript = %q", d.Transcript)
	}
}

func TestMachine_RecognitionFailureIsUnknown(t *testing.T) {
	t.Parallel()

	m := NewMachine(testThresholds())

	d, ok := m.Fail(800 * time.Millisecond)
	if !ok {
		t.Fatal("expected a decision on failure")
	}
	if d.Label != LabelUnknown || d.Reason != ReasonRecognitionError {
		t.Errorf("got %v/%v, want UNKNOWN/%v", d.Label, d.Reason, ReasonRecognitionError)
	}
	if d.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", d.Confidence)
	}
}

func TestMachine_TerminalExactlyOnce(t *testing.T) {
	t.Parallel()

	ex := newTestExtractor(nil, false)
	m := NewMachine(testThresholds())

	snap := ex.Update(finalSegment("greeting", 0, 4500*time.Millisecond))
	if _, ok := m.Observe(snap, 4500*time.Millisecond); !ok {
		t.Fatal("expected first decision")
	}
	first, _ := m.Decision()

	// All further input must be discarded without altering the decision.
	if _, ok := m.Observe(ex.Update(Event{Type: EventSilence, Gap: 2 * time.Second}), 5*time.Second); ok {
		t.Error("Observe after terminal state must not decide again")
	}
	if _, ok := m.Expire(6 * time.Second); ok {
		t.Error("Expire after terminal state must not decide again")
	}
	if _, ok := m.Fail(6 * time.Second); ok {
		t.Error("Fail after terminal state must not decide again")
	}

	after, present := m.Decision()
	if !present || after.Label != first.Label || after.Reason != first.Reason || after.DecidedAt != first.DecidedAt {
		t.Error("decision changed after terminal state")
	}
	if !m.State().Terminal() {
		t.Error("state should remain terminal")
	}
}

func TestMachine_TerminalIffDecisionPresent(t *testing.T) {
	t.Parallel()

	m := NewMachine(testThresholds())
	if _, ok := m.Decision(); ok {
		t.Fatal("no decision should exist before a terminal transition")
	}
	if m.State().Terminal() {
		t.Fatal("initial state must not be terminal")
	}

	m.Expire(time.Second)
	if _, ok := m.Decision(); !ok {
		t.Fatal("decision must exist once terminal")
	}
	if !m.State().Terminal() {
		t.Fatal("state must be terminal once decided")
	}
}

func TestMachine_PartialPhraseFastPath(t *testing.T) {
	t.Parallel()

	ex := newTestExtractor([]string{"buzon"}, true)
	m := NewMachine(testThresholds())

	// Partial hypothesis hits the phrase list before any final commits.
	snap := ex.Update(Event{Type: EventSegment, Segment: Segment{
		Text: "el buzon de", Final: false,
	}})
	d, ok := m.Observe(snap, 600*time.Millisecond)
	if !ok {
		t.Fatal("expected an early decision from the partial hypothesis")
	}
	if d.Label != LabelMachine || d.Reason != ReasonPhraseMatched {
		t.Errorf("got %v/%v, want MACHINE/%v", d.Label, d.Reason, ReasonPhraseMatched)
	}
}

func TestMachine_PauseAfterLongGreetingDoesNotFlipHuman(t *testing.T) {
	t.Parallel()

	ex := newTestExtractor(nil, false)
	th := testThresholds()

	// First segment is already past the long-greeting boundary when it
	// finalizes, so the machine transition fires on that snapshot; a later
	// pause must not matter.
	m := NewMachine(th)
	snap := ex.Update(finalSegment("very long greeting", 0, 4200*time.Millisecond))
	d, ok := m.Observe(snap, 4200*time.Millisecond)
	if !ok || d.Label != LabelMachine {
		t.Fatalf("got %v (ok=%v), want MACHINE", d.Label, ok)
	}
}

func TestScaledConfidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		observed  time.Duration
		threshold time.Duration
		want      float64
	}{
		{"at threshold", 700 * time.Millisecond, 700 * time.Millisecond, 0.6},
		{"double", 1400 * time.Millisecond, 700 * time.Millisecond, 0.95},
		{"far past clamps", 10 * time.Second, 700 * time.Millisecond, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := scaledConfidence(tt.observed, tt.threshold)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("scaledConfidence(%v, %v) = %v, want %v", tt.observed, tt.threshold, got, tt.want)
			}
		})
	}
}
