package resilience

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy retries transient failures with exponential backoff plus jitter.
// Attempt k (1-indexed) waits min(cap, base*2^(k-1)) + U(0, jitterWindow)
// before the next try, up to MaxRetries retries after the initial attempt.
type RetryPolicy struct {
	MaxRetries   int
	Base         time.Duration
	Cap          time.Duration
	JitterWindow time.Duration
	// rand returns U(0,1); swapped out by tests for determinism.
	rand func() float64
}

// NewRetryPolicy creates a retry policy with a seeded jitter source.
func NewRetryPolicy(maxRetries int, base, cap, jitterWindow time.Duration) RetryPolicy {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return RetryPolicy{
		MaxRetries:   maxRetries,
		Base:         base,
		Cap:          cap,
		JitterWindow: jitterWindow,
		rand:         rng.Float64,
	}
}

// BackoffDelay computes the wait before retrying after attempt k (1-indexed).
func (p RetryPolicy) BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.Cap > 0 && d >= p.Cap {
			d = p.Cap
			break
		}
	}
	if p.Cap > 0 && d > p.Cap {
		d = p.Cap
	}
	jitter := time.Duration(0)
	if p.JitterWindow > 0 {
		r := 0.0
		if p.rand != nil {
			r = p.rand()
		}
		jitter = time.Duration(r * float64(p.JitterWindow))
	}
	return d + jitter
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
