// Package retryx runs an operation under a per-attempt timeout and retries
// transient failures (timeouts and transport errors) with capped exponential
// backoff. It knows nothing about authentication; callers decide what an
// operation is and which failures are worth another attempt.
package retryx

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy describes how an operation is retried. It is a value object: pass
// it by value and treat it as immutable for the duration of a call.
type Policy struct {
	MaxRetries          int
	Timeout             time.Duration
	BaseDelay           time.Duration
	MaxDelay            time.Duration
	RetryOnTimeout      bool
	RetryOnNetworkError bool
}

// DefaultPolicy is applied to every data call unless configuration overrides it.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:          3,
		Timeout:             30 * time.Second,
		BaseDelay:           time.Second,
		MaxDelay:            5 * time.Second,
		RetryOnTimeout:      true,
		RetryOnNetworkError: true,
	}
}

// shouldRetry reports whether a failure of class c on the given zero-based
// attempt earns another attempt.
func (p Policy) shouldRetry(attempt int, c Class) bool {
	if attempt >= p.MaxRetries {
		return false
	}
	switch c {
	case ClassTimeout:
		return p.RetryOnTimeout
	case ClassNetwork:
		return p.RetryOnNetworkError
	default:
		return false
	}
}

// schedule returns a fresh backoff whose n-th NextBackOff call yields
// min(BaseDelay*2^n, MaxDelay).
func (p Policy) schedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.MaxDelay
	if p.MaxDelay <= 0 {
		b.MaxInterval = time.Duration(math.MaxInt64)
	}
	b.Reset()
	return b
}

// Delay returns the pause taken after the given zero-based failed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	b := p.schedule()
	var d time.Duration
	for i := 0; i <= attempt; i++ {
		d = b.NextBackOff()
	}
	return p.capDelay(d)
}

func (p Policy) capDelay(d time.Duration) time.Duration {
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}
