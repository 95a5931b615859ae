package resilience

import (
	"context"

	"github.com/pkg/errors"
	"github.com/siphon-data/siphon/errkind"
	"github.com/siphon-data/siphon/logger"
)

// Policy composes the three failure-isolation mechanisms around one external
// dependency key: bulkhead admission, circuit breaker, and retry with backoff.
// The bulkhead is acquired once for the whole call including its retries, so
// a retrying caller still only occupies one slot.
type Policy struct {
	Log      logger.Logger
	Key      string
	Retry    RetryPolicy
	Breaker  *Breaker
	Bulkhead *Bulkhead
	Metrics  *Collector
}

// Execute runs fn under the policy. Only errors classified as transient are
// retried; a breaker that opens (or is already open) fails fast. The last
// error is returned once retries are exhausted.
func (p *Policy) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Bulkhead != nil {
		if err := p.Bulkhead.Acquire(ctx); err != nil {
			p.Metrics.IncBulkheadRejections(p.Key)
			return errors.Wrapf(err, "bulkhead admission for %v", p.Key)
		}
		p.Metrics.AddBulkheadInFlight(p.Key, 1)
		defer func() {
			p.Bulkhead.Release()
			p.Metrics.AddBulkheadInFlight(p.Key, -1)
		}()
	}
	var lastErr error
	maxAttempts := p.Retry.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// No new call once cancellation has been triggered.
		select {
		case <-ctx.Done():
			return errkind.Wrap(errkind.KindCancelled, ctx.Err())
		default:
		}
		if p.Breaker != nil {
			if err := p.Breaker.Allow(); err != nil {
				p.Metrics.SetBreakerState(p.Key, p.Breaker.CurrentState())
				return errors.Wrapf(err, "call to %v rejected", p.Key)
			}
		}
		p.Metrics.IncCalls(p.Key)
		err := fn(ctx)
		if err == nil {
			if p.Breaker != nil {
				p.Breaker.Success()
				p.Metrics.SetBreakerState(p.Key, p.Breaker.CurrentState())
			}
			return nil
		}
		lastErr = err
		p.Metrics.IncFailures(p.Key)
		if !errkind.IsTransient(err) { // persistent errors fail immediately and don't trip the breaker...
			return err
		}
		if p.Breaker != nil {
			before := p.Breaker.CurrentState()
			p.Breaker.Failure()
			after := p.Breaker.CurrentState()
			p.Metrics.SetBreakerState(p.Key, after)
			if before != StateOpen && after == StateOpen {
				p.Metrics.IncBreakerOpens(p.Key)
				if p.Log != nil {
					p.Log.Warn("circuit breaker opened for key ", p.Key)
				}
			}
		}
		if attempt == maxAttempts { // retries exhausted...
			break
		}
		delay := p.Retry.BackoffDelay(attempt)
		if p.Log != nil {
			p.Log.Debug("transient failure on ", p.Key, " attempt ", attempt, ", backing off ", delay, ": ", err)
		}
		p.Metrics.IncRetries(p.Key)
		if err := sleep(ctx, delay); err != nil {
			return errkind.Wrap(errkind.KindCancelled, err)
		}
	}
	return errors.Wrapf(lastErr, "retries exhausted for %v", p.Key)
}
