package ai

import (
	"context"
	"time"

	"tabletop-chat/backend/pkg/resilience"
)

// GuardedEngine bounds every call of the inner engine with a timeout and
// stops calling it while the breaker is open
type GuardedEngine struct {
	inner   Engine
	timeout time.Duration
	breaker *resilience.CircuitBreaker
}

// NewGuardedEngine wraps inner. A zero timeout leaves calls bounded by the
// caller's context only; a nil breaker disables short-circuiting.
func NewGuardedEngine(inner Engine, timeout time.Duration, breaker *resilience.CircuitBreaker) *GuardedEngine {
	return &GuardedEngine{inner: inner, timeout: timeout, breaker: breaker}
}

// Breaker exposes the breaker for health reporting
func (e *GuardedEngine) Breaker() *resilience.CircuitBreaker {
	return e.breaker
}

func (e *GuardedEngine) Generate(ctx context.Context, prompt string) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if e.breaker == nil {
		return e.inner.Generate(ctx, prompt)
	}

	var out string
	err := e.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = e.inner.Generate(ctx, prompt)
		return err
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
