// Package recognizer defines the Provider interface for streaming
// speech-to-text backends consumed by the detection engine.
//
// A recognizer provider wraps a real-time transcription service (e.g. a Vosk
// server) and exposes a uniform streaming interface. The central abstraction
// is StreamHandle: once opened, a stream accepts raw PCM audio chunks and
// emits Result values (partial hypotheses and committed finals) on a single
// ordered channel. Arrival order on that channel is the order the backend
// produced the results; the detection pipeline depends on this.
//
// Implementations must be safe for concurrent use. Multiple streams may be
// open simultaneously, one per call under evaluation.
package recognizer

import (
	"context"
	"time"
)

// StreamConfig describes the audio format and recognition hints for a new
// transcription stream.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Telephony audio is
	// typically 8000; wideband streams use 16000.
	SampleRate int

	// Language is the BCP-47 language tag for recognition (e.g. "es",
	// "en-US"). An empty string uses the backend's loaded model as-is.
	Language string

	// Phrases is an optional vocabulary hint list passed to backends that
	// support grammar restriction or keyword boosting (Vosk phrase lists).
	Phrases []string
}

// Result is a single transcription hypothesis from the backend.
type Result struct {
	// Text is the transcribed speech content.
	Text string

	// Final indicates whether the backend has committed this result (true)
	// or may still revise it (false).
	Final bool

	// Start and End are the hypothesis boundaries relative to the start of
	// the audio stream.
	Start time.Duration
	End   time.Duration

	// Confidence is the backend's overall confidence in [0, 1]. Zero when
	// the backend does not report one.
	Confidence float64

	// Words holds per-word detail when the backend supplies it. May be nil.
	Words []Word
}

// Word is per-word timing detail for backends that report it.
type Word struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// Duration returns the span covered by the result, or zero when the backend
// supplied no timing.
func (r Result) Duration() time.Duration {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// StreamHandle represents an open transcription stream. It is an interface so
// test code can provide mock implementations without a live backend.
//
// Callers must call Close when the stream is no longer needed; failing to do
// so may leak goroutines and network connections inside the implementation.
// All methods must be safe for concurrent use.
type StreamHandle interface {
	// SendAudio delivers a chunk of raw little-endian PCM16 audio to the
	// backend. The chunk must match the SampleRate agreed in StreamConfig.
	// Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Flush signals that no more audio will be sent. The backend commits
	// any pending hypothesis as a final result and ends the stream; Results
	// stays open until those results have been delivered. Calling Flush
	// more than once is safe.
	Flush() error

	// Results returns the ordered stream of partial and final hypotheses.
	// The channel is closed when the backend ends the stream, fails, or the
	// handle is closed. After the channel closes, Err reports why.
	Results() <-chan Result

	// Err returns the terminal stream error, or nil if the stream ended
	// cleanly. Only meaningful after Results has been closed.
	Err() error

	// Close flushes pending audio, terminates the stream, and releases all
	// resources. Calling Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any streaming transcription backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// StartStream opens a new transcription stream. The returned handle is
	// ready to accept audio immediately. The caller owns the handle and
	// must call Close when done.
	StartStream(ctx context.Context, cfg StreamConfig) (StreamHandle, error)
}
