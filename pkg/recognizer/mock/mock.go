// Package mock provides test doubles for the recognizer package interfaces.
//
// Use Provider to verify that the caller starts streams with the expected
// StreamConfig. Use Stream to feed controlled Result values and inspect which
// audio chunks were delivered.
//
// Example:
//
//	st := mock.NewStream()
//	p := &mock.Provider{Stream: st}
//	handle, _ := p.StartStream(ctx, cfg)
//	st.ResultsCh <- recognizer.Result{Text: "hola", Final: true}
//	close(st.ResultsCh)
package mock

import (
	"context"
	"sync"

	"github.com/centinelalabs/centinela/pkg/recognizer"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	// Ctx is the context passed to StartStream.
	Ctx context.Context
	// Cfg is the StreamConfig passed to StartStream.
	Cfg recognizer.StreamConfig
}

// Provider is a mock implementation of recognizer.Provider.
type Provider struct {
	mu sync.Mutex

	// Stream is the StreamHandle returned by StartStream. If nil,
	// StartStream returns a fresh Stream with a buffered results channel.
	Stream recognizer.StreamHandle

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream.
	StartStreamCalls []StartStreamCall
}

// StartStream records the call and returns Stream, StartStreamErr.
func (p *Provider) StartStream(ctx context.Context, cfg recognizer.StreamConfig) (recognizer.StreamHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	if p.Stream != nil {
		return p.Stream, nil
	}
	return NewStream(), nil
}

// Calls returns the number of StartStream invocations so far. Thread-safe.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.StartStreamCalls)
}

// Ensure Provider implements recognizer.Provider at compile time.
var _ recognizer.Provider = (*Provider)(nil)

// Stream is a mock implementation of recognizer.StreamHandle. Tests own
// ResultsCh: send the Result values the consumer should receive, then close
// it to signal end of stream.
type Stream struct {
	mu sync.Mutex

	// ResultsCh is the channel returned by Results().
	ResultsCh chan recognizer.Result

	// StreamErr is returned by Err after ResultsCh is closed. Set it before
	// closing ResultsCh to simulate a backend failure.
	StreamErr error

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// FlushErr, if non-nil, is returned by every Flush call.
	FlushErr error

	// FlushCallCount is the number of times Flush was called.
	FlushCallCount int

	// SendAudioCalls records a copy of every chunk passed to SendAudio.
	SendAudioCalls [][]byte

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewStream returns a Stream with a buffered results channel ready for use.
func NewStream() *Stream {
	return &Stream{ResultsCh: make(chan recognizer.Result, 16)}
}

// SendAudio records the chunk and returns SendAudioErr.
func (s *Stream) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, cp)
	return s.SendAudioErr
}

// Flush records the call and returns FlushErr. The test owns ResultsCh and
// decides when finals arrive and when the channel closes.
func (s *Stream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FlushCallCount++
	return s.FlushErr
}

// Flushes returns the number of Flush calls. Thread-safe.
func (s *Stream) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FlushCallCount
}

// Results returns ResultsCh.
func (s *Stream) Results() <-chan recognizer.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ResultsCh
}

// Err returns StreamErr.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.StreamErr
}

// SetErr sets the terminal stream error. Call before closing ResultsCh.
func (s *Stream) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StreamErr = err
}

// Close records the call.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return nil
}

// Closes returns the number of Close calls. Thread-safe.
func (s *Stream) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CloseCallCount
}

// SendAudioCallCount returns the number of SendAudio calls. Thread-safe.
func (s *Stream) SendAudioCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SendAudioCalls)
}

// Ensure Stream implements recognizer.StreamHandle at compile time.
var _ recognizer.StreamHandle = (*Stream)(nil)
