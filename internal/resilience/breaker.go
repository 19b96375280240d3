// Package resilience protects the recognizer backend from cascading failures.
//
// The central type is [Breaker], a three-state circuit breaker
// (closed, open, half-open). [GuardedProvider] wraps a recognizer provider
// with a breaker so that session creation fails fast while the backend is
// down instead of piling up dial timeouts.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Do] while the breaker is open and the
// cooldown has not yet elapsed.
var ErrBreakerOpen = errors.New("recognizer breaker open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrBreakerOpen] until the cooldown
	// elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through. A probe
	// failure re-opens the breaker; enough probe successes close it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. The zero value of each field selects its
// default.
type BreakerConfig struct {
	// Name labels the breaker in log output.
	Name string

	// FailureLimit is how many consecutive failures open the breaker.
	// Default 5.
	FailureLimit int

	// Cooldown is how long the breaker stays open before allowing probe
	// calls. Default 30s.
	Cooldown time.Duration

	// ProbeLimit bounds the probe calls admitted while half-open; that many
	// consecutive probe successes close the breaker. Default 3.
	ProbeLimit int
}

func (c *BreakerConfig) applyDefaults() {
	if c.FailureLimit <= 0 {
		c.FailureLimit = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.ProbeLimit <= 0 {
		c.ProbeLimit = 3
	}
}

// Breaker trips after a run of consecutive failures and recovers through a
// probing phase once the cooldown passes.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    State
	failures int       // consecutive failures while closed
	openedAt time.Time // when the breaker last tripped
	probes   int       // probe calls admitted this half-open phase
	probeOK  int       // probe successes this half-open phase
}

// NewBreaker returns a closed [Breaker] configured by cfg.
func NewBreaker(cfg BreakerConfig) *Breaker {
	cfg.applyDefaults()
	return &Breaker{cfg: cfg}
}

// Do runs fn unless the breaker rejects the call. The returned error is
// [ErrBreakerOpen] on rejection, otherwise whatever fn returned.
func (b *Breaker) Do(fn func() error) error {
	probe, ok := b.admit()
	if !ok {
		return ErrBreakerOpen
	}
	err := fn()
	b.observe(probe, err)
	return err
}

// admit decides whether a call may proceed. The first return value reports
// whether the call counts as a half-open probe.
func (b *Breaker) admit() (probe, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, true

	case StateOpen:
		if time.Since(b.openedAt) < b.cfg.Cooldown {
			return false, false
		}
		b.state = StateHalfOpen
		b.probes = 0
		b.probeOK = 0
		slog.Info("recognizer breaker probing", "name", b.cfg.Name)
		fallthrough

	default: // StateHalfOpen
		if b.probes >= b.cfg.ProbeLimit {
			return false, false
		}
		b.probes++
		return true, true
	}
}

// observe records the outcome of an admitted call.
func (b *Breaker) observe(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if !probe {
			b.failures = 0
			return
		}
		b.probeOK++
		if b.probeOK >= b.cfg.ProbeLimit {
			b.state = StateClosed
			b.failures = 0
			slog.Info("recognizer breaker closed", "name", b.cfg.Name)
		}
		return
	}

	if probe {
		// One failed probe sends the breaker straight back to open.
		b.trip()
		return
	}
	b.failures++
	if b.failures >= b.cfg.FailureLimit {
		b.trip()
	}
}

// trip moves the breaker to open. Must be called with b.mu held.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = time.Now()
	b.failures = 0
	slog.Warn("recognizer breaker opened",
		"name", b.cfg.Name,
		"cooldown", b.cfg.Cooldown)
}

// State reports the breaker's mode. An open breaker whose cooldown has elapsed
// reports [StateHalfOpen]; the stored state changes on the next [Breaker.Do].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && time.Since(b.openedAt) >= b.cfg.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.probes = 0
	b.probeOK = 0
}
