package resilience

import (
	"context"

	"github.com/siphon-data/siphon/errkind"
	"golang.org/x/sync/semaphore"
)

// Bulkhead bounds the number of concurrent in-flight operations for one
// (erpType, resource class) key so a slow dependency cannot starve others.
// The default behaviour is a bounded blocking wait; failFast rejects instead.
type Bulkhead struct {
	sem      *semaphore.Weighted
	limit    int64
	failFast bool
}

// NewBulkhead creates a bulkhead admitting up to limit concurrent calls.
func NewBulkhead(limit int, failFast bool) *Bulkhead {
	if limit <= 0 {
		limit = 1
	}
	return &Bulkhead{sem: semaphore.NewWeighted(int64(limit)), limit: int64(limit), failFast: failFast}
}

// Acquire admits one call, blocking until a slot frees or ctx is done.
// In failFast mode a full bulkhead rejects immediately with a transient error.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	if b.failFast {
		if !b.sem.TryAcquire(1) {
			return errkind.New(errkind.KindTransient, "bulkhead limit reached")
		}
		return nil
	}
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return errkind.Wrap(errkind.KindCancelled, err)
	}
	return nil
}

// Release frees one slot.
func (b *Bulkhead) Release() {
	b.sem.Release(1)
}

// Limit returns the configured concurrency limit.
func (b *Bulkhead) Limit() int {
	return int(b.limit)
}
