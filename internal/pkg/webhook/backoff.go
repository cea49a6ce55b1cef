package webhook

import (
	"math/rand"
	"time"
)

// Backoff defaults. 30s, 60s, 120s, 240s before the final attempt, each plus
// up to 25% jitter, capped at one hour for deliveries configured with more
// generous attempt budgets.
const (
	DefaultBackoffBase    = 30 * time.Second
	DefaultBackoffMax     = time.Hour
	DefaultJitterFraction = 0.25
)

// BackoffPolicy computes the wait before the next delivery attempt:
// exponential in the attempt count, capped, with positive-only jitter so the
// scheduled delay never shrinks between consecutive attempts and a burst of
// failures does not re-hit the endpoint in lockstep.
type BackoffPolicy struct {
	Base           time.Duration
	Max            time.Duration
	JitterFraction float64
}

// DefaultBackoff returns the policy used by the delivery worker.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{
		Base:           DefaultBackoffBase,
		Max:            DefaultBackoffMax,
		JitterFraction: DefaultJitterFraction,
	}
}

// Delay returns the wait after the given failed attempt (1-based).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	base := p.BaseDelay(attempt)
	if p.JitterFraction <= 0 {
		return base
	}
	jitter := time.Duration(rand.Float64() * p.JitterFraction * float64(base))
	return base + jitter
}

// BaseDelay returns the deterministic component of the delay: base doubled
// per attempt, capped at Max.
func (p BackoffPolicy) BaseDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.Max {
			return p.Max
		}
	}
	if delay > p.Max {
		return p.Max
	}
	return delay
}
