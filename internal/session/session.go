package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/centinelalabs/centinela/internal/detect"
	"github.com/centinelalabs/centinela/internal/phrase"
	"github.com/centinelalabs/centinela/pkg/audio"
	"github.com/centinelalabs/centinela/pkg/recognizer"
)

// Config carries the per-call detection and recognition parameters.
type Config struct {
	// ShortPause is the silence gap that marks a human listening pause.
	ShortPause time.Duration

	// LongGreeting is the first-utterance duration past which a greeting
	// is considered machine-generated.
	LongGreeting time.Duration

	// Deadline is the total time budget before the call resolves UNKNOWN.
	Deadline time.Duration

	// Phrases is the voicemail marker list. Empty means phrase matching
	// is disabled.
	Phrases []string

	// FuzzyThreshold enables fuzzy phrase matching when > 0.
	FuzzyThreshold float64

	// MatchPartials runs the phrase matcher over non-final hypotheses too.
	MatchPartials bool

	// SampleRate is the PCM sample rate of the inbound audio in Hz.
	SampleRate int

	// Language hints the recognizer model selection.
	Language string

	// Encoding is the wire encoding of inbound audio chunks.
	Encoding audio.Encoding

	// OnDecision, when set, is invoked exactly once from the session
	// goroutine when the call reaches a terminal decision.
	OnDecision func(detect.Decision)
}

// Session is the lifecycle of one call being classified. It owns the
// recognizer stream and a single goroutine that folds recognition events
// into the detection state machine.
//
// All exported methods are safe for concurrent use.
type Session struct {
	id         string
	cfg        Config
	stream     recognizer.StreamHandle
	createdAt  time.Time
	deadlineAt time.Time

	mu       sync.Mutex
	decision *detect.Decision

	done      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// New opens a recognizer stream for the call and starts the event loop.
// The stream dial happens synchronously so callers learn about recognizer
// connectivity problems before the session exists.
func New(ctx context.Context, id string, provider recognizer.Provider, cfg Config) (*Session, error) {
	matcher := phrase.New(cfg.Phrases, phrase.WithFuzzyThreshold(cfg.FuzzyThreshold))

	stream, err := provider.StartStream(ctx, recognizer.StreamConfig{
		SampleRate: cfg.SampleRate,
		Language:   cfg.Language,
		Phrases:    cfg.Phrases,
	})
	if err != nil {
		return nil, fmt.Errorf("start recognizer stream: %w", err)
	}

	now := time.Now()
	s := &Session{
		id:         id,
		cfg:        cfg,
		stream:     stream,
		createdAt:  now,
		deadlineAt: now.Add(cfg.Deadline),
		done:       make(chan struct{}),
		closed:     make(chan struct{}),
	}

	go s.run(detect.NewExtractor(detect.ExtractorConfig{
		Matcher:       matcher,
		MatchPartials: cfg.MatchPartials,
	}))
	return s, nil
}

// ID returns the caller-supplied call identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was opened.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// DeadlineAt returns the wall-clock instant of the decision deadline.
func (s *Session) DeadlineAt() time.Time { return s.deadlineAt }

// PushAudio decodes one audio chunk and forwards it to the recognizer.
// Chunks arriving after the terminal decision are acknowledged and dropped.
func (s *Session) PushAudio(chunk []byte) error {
	if _, decided := s.Decision(); decided {
		return nil
	}
	select {
	case <-s.closed:
		return nil
	default:
	}

	pcm, err := audio.Decode(s.cfg.Encoding, chunk)
	if err != nil {
		return fmt.Errorf("decode audio: %w", err)
	}
	if err := s.stream.SendAudio(pcm); err != nil {
		// A send race against stream teardown is not an error for the
		// caller; the decision is already resolving.
		if _, decided := s.Decision(); decided {
			return nil
		}
		return fmt.Errorf("forward audio: %w", err)
	}
	return nil
}

// EndAudio signals that the complete recording has been delivered. The
// recognizer commits any buffered speech as a final hypothesis, letting the
// call classify on its content instead of idling until the deadline.
func (s *Session) EndAudio() error {
	if _, decided := s.Decision(); decided {
		return nil
	}
	select {
	case <-s.closed:
		return nil
	default:
	}
	if err := s.stream.Flush(); err != nil {
		return fmt.Errorf("flush recognizer: %w", err)
	}
	return nil
}

// Decision returns the terminal decision, if one has been reached.
func (s *Session) Decision() (detect.Decision, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decision == nil {
		return detect.Decision{}, false
	}
	return *s.decision, true
}

// Done is closed once the session has a terminal decision.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close cancels the session. A call cancelled before a terminal decision
// produces no Decision: the recognizer stream and timers are released and
// the OnDecision callback is never invoked. Safe to call multiple times.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	return nil
}

// run is the session event loop. It owns the normalizer, extractor, and
// state machine exclusively; nothing else touches them.
func (s *Session) run(ex *detect.Extractor) {
	norm := detect.NewNormalizer()
	machine := detect.NewMachine(detect.Thresholds{
		ShortPause:   s.cfg.ShortPause,
		LongGreeting: s.cfg.LongGreeting,
	})

	deadline := time.NewTimer(s.cfg.Deadline)
	defer deadline.Stop()

	// The trailing-silence timer is re-armed after every finalized
	// segment. It stays nil until the first final arrives.
	var (
		silence  *time.Timer
		silenceC <-chan time.Time
		lastTalk time.Time
	)
	defer func() {
		if silence != nil {
			silence.Stop()
		}
	}()

	finish := func(d detect.Decision) {
		s.mu.Lock()
		s.decision = &d
		s.mu.Unlock()

		if err := s.stream.Close(); err != nil {
			slog.Debug("recognizer stream close", "session_id", s.id, "error", err)
		}
		slog.Info("call classified",
			"session_id", s.id,
			"result", d.Label,
			"reason", d.Reason,
			"confidence", d.Confidence,
			"decided_at", d.DecidedAt,
		)
		if s.cfg.OnDecision != nil {
			s.cfg.OnDecision(d)
		}
		close(s.done)
	}

	results := s.stream.Results()
	for {
		select {
		case res, ok := <-results:
			if !ok {
				ev := norm.EndStream(s.stream.Err())
				if ev.Type == detect.EventRecognitionFailed {
					slog.Warn("recognizer stream failed",
						"session_id", s.id,
						"error", ev.Err,
					)
					if d, decided := machine.Fail(time.Since(s.createdAt)); decided {
						finish(d)
						return
					}
				}
				// A clean stream end leaves the pending silence timer and
				// the deadline to resolve the call.
				results = nil
				continue
			}

			ev, keep := norm.Normalize(res)
			if !keep {
				continue
			}
			snap := ex.Update(ev)
			if d, decided := machine.Observe(snap, time.Since(s.createdAt)); decided {
				finish(d)
				return
			}
			if ev.Segment.Final {
				lastTalk = time.Now()
				if silence == nil {
					silence = time.NewTimer(s.cfg.ShortPause + time.Millisecond)
				} else {
					if !silence.Stop() {
						select {
						case <-silence.C:
						default:
						}
					}
					silence.Reset(s.cfg.ShortPause + time.Millisecond)
				}
				silenceC = silence.C
			}

		case <-silenceC:
			snap := ex.Update(detect.Event{
				Type: detect.EventSilence,
				Gap:  time.Since(lastTalk),
			})
			if d, decided := machine.Observe(snap, time.Since(s.createdAt)); decided {
				finish(d)
				return
			}
			silenceC = nil

		case <-deadline.C:
			if d, decided := machine.Expire(time.Since(s.createdAt)); decided {
				finish(d)
				return
			}

		case <-s.closed:
			// Explicit cancellation: release the stream without driving
			// the state machine, so no decision is synthesized.
			if err := s.stream.Close(); err != nil {
				slog.Debug("recognizer stream close", "session_id", s.id, "error", err)
			}
			slog.Debug("session cancelled", "session_id", s.id)
			return
		}
	}
}
