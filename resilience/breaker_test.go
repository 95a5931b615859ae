package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThresholdConsecutiveFailures(t *testing.T) {
	n := 5
	b := NewBreaker(n, time.Minute)
	// Exactly N consecutive failures open the circuit.
	for i := 0; i < n; i++ {
		require.NoError(t, b.Allow(), "call %d should be admitted", i+1)
		b.Failure()
	}
	require.Equal(t, StateOpen, b.CurrentState())
	// The (N+1)-th call fails fast without touching the dependency.
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	b.Failure()
	b.Failure()
	b.Success()
	b.Failure()
	b.Failure()
	require.Equal(t, StateClosed, b.CurrentState(), "non-consecutive failures must not open the circuit")
}

func TestBreakerHalfOpenTrial(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	clock := time.Now()
	b.now = func() time.Time { return clock }

	b.Failure()
	require.Equal(t, StateOpen, b.CurrentState())
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	// After the break duration one trial call is admitted.
	clock = clock.Add(time.Minute)
	require.NoError(t, b.Allow())
	require.Equal(t, StateHalfOpen, b.CurrentState())
	// A second concurrent call is still rejected while the trial is pending.
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	// Trial failure reopens the circuit and resets the break timer.
	b.Failure()
	require.Equal(t, StateOpen, b.CurrentState())
	clock = clock.Add(30 * time.Second)
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen, "break timer must be reset by a failed trial")
	clock = clock.Add(31 * time.Second)
	require.NoError(t, b.Allow())

	// Trial success closes the circuit.
	b.Success()
	require.Equal(t, StateClosed, b.CurrentState())
	require.NoError(t, b.Allow())
}

func TestBreakerAdminReset(t *testing.T) {
	r := NewRegistry()
	key := Key("dynamics", "extract")
	b := r.Breaker(key, 1, time.Hour)
	b.Failure()
	require.Equal(t, StateOpen, b.CurrentState())
	require.True(t, r.ResetBreaker(key))
	require.Equal(t, StateClosed, b.CurrentState())
	require.False(t, r.ResetBreaker("unknown:key"))
}

func TestRegistrySharesStateAcrossRuns(t *testing.T) {
	r := NewRegistry()
	key := Key("netsuite", "extract")
	b1 := r.Breaker(key, 2, time.Minute)
	b2 := r.Breaker(key, 99, time.Hour) // settings of an existing breaker are not changed.
	require.Same(t, b1, b2)
	b1.Failure()
	b1.Failure()
	require.Equal(t, StateOpen, b2.CurrentState())
	snap := r.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "open", snap[0].State)
}
