package resilience

import (
	"sort"
	"sync"
	"time"
)

// Registry holds the process-wide circuit breaker and bulkhead state per key.
// This state must survive across sequential runs within the process lifetime;
// it is reset only on process restart or via the admin reset endpoint.
type Registry struct {
	mu        sync.Mutex
	breakers  map[string]*Breaker
	bulkheads map[string]*Bulkhead
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		breakers:  make(map[string]*Breaker),
		bulkheads: make(map[string]*Bulkhead),
	}
}

// Key builds the shared-state key for an ERP type and operation/resource class.
func Key(erpType string, operation string) string {
	return erpType + ":" + operation
}

// Breaker returns the breaker for key, creating it with the given settings on
// first use. Settings of an existing breaker are not changed mid-flight.
func (r *Registry) Breaker(key string, threshold int, breakDuration time.Duration) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[key]
	if !ok {
		b = NewBreaker(threshold, breakDuration)
		r.breakers[key] = b
	}
	return b
}

// Bulkhead returns the bulkhead for key, creating it on first use.
func (r *Registry) Bulkhead(key string, limit int, failFast bool) *Bulkhead {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bulkheads[key]
	if !ok {
		b = NewBulkhead(limit, failFast)
		r.bulkheads[key] = b
	}
	return b
}

// BreakerStatus is one row of the admin status report.
type BreakerStatus struct {
	Key                 string `json:"key"`
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
}

// Snapshot reports all breaker states sorted by key.
func (r *Registry) Snapshot() []BreakerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]BreakerStatus, 0, len(r.breakers))
	for k, b := range r.breakers {
		out = append(out, BreakerStatus{
			Key:                 k,
			State:               b.CurrentState().String(),
			ConsecutiveFailures: b.ConsecutiveFailures(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// ResetBreaker forces the breaker for key closed. It reports whether the key
// was known.
func (r *Registry) ResetBreaker(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[key]
	if !ok {
		return false
	}
	b.Reset()
	return true
}
