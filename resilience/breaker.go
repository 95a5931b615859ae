package resilience

import (
	"sync"
	"time"

	"github.com/siphon-data/siphon/errkind"
)

// State is the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Allow while the circuit is open. It is never
// retried locally: the whole point of the breaker is to stop calling. It is
// tagged transient so callers surface it as a (temporary) extraction failure.
var ErrCircuitOpen = errkind.New(errkind.KindTransient, "circuit breaker is open")

// Breaker is a per-key circuit breaker. It opens after threshold consecutive
// failures, fails fast while open, and after breakDuration admits a single
// trial call (half-open): success closes the circuit, failure reopens it and
// resets the break timer.
type Breaker struct {
	threshold     int
	breakDuration time.Duration
	now           func() time.Time

	mu           sync.Mutex
	state        State
	failures     int // consecutive failures while closed.
	openedAt     time.Time
	trialPending bool // a half-open trial call is in flight.
}

// NewBreaker creates a closed breaker.
func NewBreaker(threshold int, breakDuration time.Duration) *Breaker {
	return &Breaker{
		threshold:     threshold,
		breakDuration: breakDuration,
		now:           time.Now,
	}
}

// Allow reports whether a call may proceed. While open it returns
// ErrCircuitOpen without any underlying call being attempted. When the break
// duration has elapsed it admits exactly one trial call and moves to half-open.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.breakDuration {
			b.state = StateHalfOpen
			b.trialPending = true
			return nil
		}
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.trialPending { // only one trial call at a time...
			return ErrCircuitOpen
		}
		b.trialPending = true
		return nil
	}
	return nil
}

// Success records a successful call. In half-open state it closes the circuit.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.trialPending = false
	b.state = StateClosed
}

// Failure records a failed call. It opens the circuit after threshold
// consecutive failures, or immediately when a half-open trial fails, in which
// case the break timer is reset.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = b.now()
		b.trialPending = false
	case StateClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	}
}

// CurrentState returns the state, honouring break expiry for reporting.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed. Used by the admin reset endpoint.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.trialPending = false
}

// ConsecutiveFailures reports the current closed-state failure count.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
