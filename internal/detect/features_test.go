package detect

import (
	"testing"
	"time"

	"github.com/centinelalabs/centinela/internal/phrase"
)

func TestExtractor_AggregatesFinals(t *testing.T) {
	t.Parallel()

	ex := NewExtractor(ExtractorConfig{Matcher: phrase.New(nil)})

	ex.Update(finalSegment("hola", 0, 800*time.Millisecond))
	snap := ex.Update(Event{Type: EventSegment, Segment: Segment{
		Text: "buenas tardes", Final: true,
		Start: 2 * time.Second, End: 3 * time.Second,
		PrecedingSilence: 1200 * time.Millisecond,
	}})

	if snap.SegmentCount != 2 {
		t.Errorf("SegmentCount = %d, want 2", snap.SegmentCount)
	}
	if snap.FirstSegment != 800*time.Millisecond {
		t.Errorf("FirstSegment = %v, want 800ms", snap.FirstSegment)
	}
	if snap.TotalSpeech != 1800*time.Millisecond {
		t.Errorf("TotalSpeech = %v, want 1.8s", snap.TotalSpeech)
	}
	if snap.LongestSilence != 1200*time.Millisecond {
		t.Errorf("LongestSilence = %v, want 1.2s", snap.LongestSilence)
	}
	if snap.Transcript != "hola buenas tardes" {
		t.Errorf("Transcript = %q", snap.Transcript)
	}
}

func TestExtractor_SilenceKeepsMaximum(t *testing.T) {
	t.Parallel()

	ex := NewExtractor(ExtractorConfig{Matcher: phrase.New(nil)})

	snap := ex.Update(Event{Type: EventSilence, Gap: 900 * time.Millisecond})
	if snap.LongestSilence != 900*time.Millisecond {
		t.Fatalf("LongestSilence = %v, want 900ms", snap.LongestSilence)
	}
	snap = ex.Update(Event{Type: EventSilence, Gap: 400 * time.Millisecond})
	if snap.LongestSilence != 900*time.Millisecond {
		t.Errorf("shorter gap lowered LongestSilence to %v", snap.LongestSilence)
	}
}

func TestExtractor_PartialsIgnoredByDefault(t *testing.T) {
	t.Parallel()

	ex := NewExtractor(ExtractorConfig{Matcher: phrase.New([]string{"buzon"})})

	snap := ex.Update(Event{Type: EventSegment, Segment: Segment{Text: "el buzon de voz"}})
	if snap.PhraseMatched {
		t.Error("partial matched with MatchPartials disabled")
	}
	if snap.SegmentCount != 0 || snap.Transcript != "" {
		t.Error("partial altered final-only aggregates")
	}
}

func TestExtractor_PartialsMatchedWhenEnabled(t *testing.T) {
	t.Parallel()

	ex := NewExtractor(ExtractorConfig{
		Matcher:       phrase.New([]string{"buzon"}),
		MatchPartials: true,
	})

	snap := ex.Update(Event{Type: EventSegment, Segment: Segment{Text: "el buzon de voz"}})
	if !snap.PhraseMatched {
		t.Fatal("partial did not match with MatchPartials enabled")
	}
	if snap.SegmentCount != 0 {
		t.Error("partial counted as a finalized segment")
	}
}

func TestExtractor_DeduplicatesPhraseHits(t *testing.T) {
	t.Parallel()

	ex := NewExtractor(ExtractorConfig{Matcher: phrase.New([]string{"tono", "deje su mensaje"})})

	ex.Update(finalSegment("despues del tono", 0, time.Second))
	snap := ex.Update(finalSegment("deje su mensaje despues del tono", time.Second, 3*time.Second))

	if got := len(snap.MatchedPhrases); got != 2 {
		t.Fatalf("MatchedPhrases = %v, want 2 distinct hits", snap.MatchedPhrases)
	}
	if snap.MatchedPhrases[0] != "tono" || snap.MatchedPhrases[1] != "deje su mensaje" {
		t.Errorf("MatchedPhrases = %v, want first-hit order", snap.MatchedPhrases)
	}
}

func TestExtractor_SnapshotIsolation(t *testing.T) {
	t.Parallel()

	ex := NewExtractor(ExtractorConfig{Matcher: phrase.New([]string{"tono", "buzon"})})

	first := ex.Update(finalSegment("el tono", 0, time.Second))
	ex.Update(finalSegment("el buzon", time.Second, 2*time.Second))

	if len(first.MatchedPhrases) != 1 {
		t.Errorf("earlier snapshot mutated by later update: %v", first.MatchedPhrases)
	}
}

func TestExtractor_StreamEndIsNeutral(t *testing.T) {
	t.Parallel()

	ex := NewExtractor(ExtractorConfig{Matcher: phrase.New(nil)})
	before := ex.Update(finalSegment("hola", 0, time.Second))
	after := ex.Update(Event{Type: EventStreamEnded})

	if after.SegmentCount != before.SegmentCount || after.TotalSpeech != before.TotalSpeech {
		t.Error("stream end altered aggregates")
	}
}
