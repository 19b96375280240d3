// Package vosk provides a recognizer.Provider backed by a Vosk server
// speaking its WebSocket protocol: a JSON config message, binary PCM chunks,
// and JSON replies carrying either a partial hypothesis or a committed
// result with word timings.
package vosk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/centinelalabs/centinela/pkg/recognizer"
)

const defaultSampleRate = 8000

// Option is a functional option for configuring the Vosk Provider.
type Option func(*Provider)

// WithSampleRate sets the provider-level default sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// Provider implements recognizer.Provider against a Vosk server endpoint
// (e.g. "ws://localhost:2700").
type Provider struct {
	url        string
	sampleRate int
}

// New creates a Vosk Provider. url must be non-empty.
func New(url string, opts ...Option) (*Provider, error) {
	if url == "" {
		return nil, errors.New("vosk: url must not be empty")
	}
	p := &Provider{
		url:        url,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream dials the Vosk server and sends the stream configuration.
// It respects cfg.SampleRate and cfg.Phrases; Vosk selects the language by
// loaded model, so cfg.Language is informational only.
func (p *Provider) StartStream(ctx context.Context, cfg recognizer.StreamConfig) (recognizer.StreamHandle, error) {
	conn, _, err := websocket.Dial(ctx, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("vosk: dial %s: %w", p.url, err)
	}

	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}
	confMsg, err := json.Marshal(configMessage{Config: streamConfig{
		SampleRate: sr,
		Words:      true,
		PhraseList: cfg.Phrases,
	}})
	if err != nil {
		conn.Close(websocket.StatusInternalError, "config encode failed")
		return nil, fmt.Errorf("vosk: encode config: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, confMsg); err != nil {
		conn.Close(websocket.StatusInternalError, "config write failed")
		return nil, fmt.Errorf("vosk: send config: %w", err)
	}

	st := &stream{
		conn:    conn,
		results: make(chan recognizer.Result, 64),
		audio:   make(chan []byte, 256),
		done:    make(chan struct{}),
	}

	st.wg.Add(2)
	go st.readLoop(ctx)
	go st.writeLoop(ctx)

	return st, nil
}

// configMessage is the first message sent on a Vosk WebSocket stream.
type configMessage struct {
	Config streamConfig `json:"config"`
}

type streamConfig struct {
	SampleRate int      `json:"sample_rate"`
	Words      bool     `json:"words"`
	PhraseList []string `json:"phrase_list,omitempty"`
}

// voskResponse covers both reply shapes the server produces. A message with
// a non-empty Partial field is an interim hypothesis; one with Text set (or
// a Result word list) is a committed recognition.
type voskResponse struct {
	Partial string `json:"partial"`
	Text    string `json:"text"`
	Result  []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Conf  float64 `json:"conf"`
	} `json:"result"`
}

// stream is a live Vosk stream. It implements recognizer.StreamHandle.
type stream struct {
	conn    *websocket.Conn
	results chan recognizer.Result
	audio   chan []byte

	done    chan struct{}
	once    sync.Once
	flush   sync.Once
	flushed atomic.Bool
	wg      sync.WaitGroup

	errMu sync.Mutex
	err   error
}

// SendAudio queues a PCM chunk for delivery to the server.
func (s *stream) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("vosk: stream is closed")
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return errors.New("vosk: stream is closed")
	}
}

// Flush tells the server no more audio is coming. Vosk replies with the
// final hypothesis for any buffered speech and closes the stream; the
// results channel drains normally afterwards.
func (s *stream) Flush() error {
	var err error
	s.flush.Do(func() {
		s.flushed.Store(true)
		err = s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"eof" : 1}`))
	})
	if err != nil {
		return fmt.Errorf("vosk: send eof: %w", err)
	}
	return nil
}

// Results returns the ordered hypothesis channel.
func (s *stream) Results() <-chan recognizer.Result { return s.results }

// Err reports the terminal stream error, if any.
func (s *stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *stream) setErr(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

// Close terminates the stream cleanly, asking the server to flush first.
func (s *stream) Close() error {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"eof" : 1}`))
		s.wg.Wait()
		s.conn.Close(websocket.StatusNormalClosure, "stream closed")
	})
	return nil
}

// writeLoop drains the audio channel into binary WebSocket messages.
func (s *stream) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				return
			}
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				s.setErr(fmt.Errorf("vosk: write audio: %w", err))
				return
			}
		case <-s.done:
			// Flush whatever is already queued before exiting.
			for {
				select {
				case chunk, ok := <-s.audio:
					if !ok {
						return
					}
					_ = s.conn.Write(ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

// readLoop receives JSON replies and converts them into Results.
func (s *stream) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.results)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			select {
			case <-s.done:
				// Expected close initiated by us.
			default:
				// After a flush the server finalizes and hangs up; that
				// is a clean end of stream, not a failure.
				if !s.flushed.Load() {
					s.setErr(fmt.Errorf("vosk: read: %w", err))
				}
			}
			return
		}

		res, ok := parseResponse(msg)
		if !ok {
			continue
		}

		select {
		case s.results <- res:
		case <-s.done:
			return
		}
	}
}

// parseResponse converts a raw Vosk reply into a Result. Returns false for
// replies that carry no hypothesis (empty partials, keepalives).
func parseResponse(data []byte) (recognizer.Result, bool) {
	var resp voskResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return recognizer.Result{}, false
	}

	if resp.Partial != "" {
		return recognizer.Result{Text: resp.Partial, Final: false}, true
	}
	if resp.Text == "" && len(resp.Result) == 0 {
		return recognizer.Result{}, false
	}

	res := recognizer.Result{Text: resp.Text, Final: true}
	if n := len(resp.Result); n > 0 {
		res.Start = time.Duration(resp.Result[0].Start * float64(time.Second))
		res.End = time.Duration(resp.Result[n-1].End * float64(time.Second))
		var confSum float64
		words := make([]recognizer.Word, 0, n)
		for _, w := range resp.Result {
			words = append(words, recognizer.Word{
				Word:       w.Word,
				Start:      time.Duration(w.Start * float64(time.Second)),
				End:        time.Duration(w.End * float64(time.Second)),
				Confidence: w.Conf,
			})
			confSum += w.Conf
		}
		res.Words = words
		res.Confidence = confSum / float64(n)
	}
	return res, true
}
