package resilience

import (
	"context"

	"github.com/centinelalabs/centinela/pkg/recognizer"
)

// GuardedProvider wraps a [recognizer.Provider] with a [Breaker]. While the
// breaker is open, StartStream fails immediately with [ErrBreakerOpen] instead
// of dialing a backend that is known to be down.
type GuardedProvider struct {
	inner   recognizer.Provider
	breaker *Breaker
}

// NewGuardedProvider wraps inner with a breaker built from cfg.
func NewGuardedProvider(inner recognizer.Provider, cfg BreakerConfig) *GuardedProvider {
	return &GuardedProvider{
		inner:   inner,
		breaker: NewBreaker(cfg),
	}
}

// StartStream opens a recognizer stream through the breaker. Only the dial is
// guarded; failures on an established stream resolve the owning session and do
// not trip the breaker.
func (g *GuardedProvider) StartStream(ctx context.Context, cfg recognizer.StreamConfig) (recognizer.StreamHandle, error) {
	var handle recognizer.StreamHandle
	err := g.breaker.Do(func() error {
		var err error
		handle, err = g.inner.StartStream(ctx, cfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// BreakerState exposes the breaker state for readiness checks.
func (g *GuardedProvider) BreakerState() State {
	return g.breaker.State()
}

var _ recognizer.Provider = (*GuardedProvider)(nil)
