package resilience

import (
	"context"

	"go.uber.org/zap"
)

// Policy combines retries and a circuit breaker for one remote service.
type Policy struct {
	Service string
	Backoff Backoff
	Breaker *Breaker
}

// NewPolicy builds a policy for the named service.
func NewPolicy(service string, backoff Backoff, breaker *Breaker) *Policy {
	return &Policy{Service: service, Backoff: backoff, Breaker: breaker}
}

// Call runs fn under p. Each attempt passes through the breaker, so a breaker
// that opens mid-retry stops the remaining attempts.
func Call[T any](ctx context.Context, p *Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	if p == nil {
		return fn(ctx)
	}

	attempt := func(ctx context.Context) (T, error) {
		if p.Breaker != nil {
			if err := p.Breaker.Allow(); err != nil {
				var zero T
				return zero, err
			}
		}
		v, err := fn(ctx)
		if p.Breaker != nil {
			p.Breaker.Record(err)
		}
		return v, err
	}

	return Retry(ctx, p.Backoff, attempt, func(n int, err error) {
		zap.L().Warn("retrying remote call",
			zap.String("service", p.Service),
			zap.String("operation", op),
			zap.Int("attempt", n),
			zap.Error(err),
		)
	})
}
