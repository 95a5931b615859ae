package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/siphon-data/siphon/errkind"
	"github.com/siphon-data/siphon/logger"
)

func testPolicy(maxRetries int, breaker *Breaker, bulkhead *Bulkhead) *Policy {
	retry := NewRetryPolicy(maxRetries, time.Millisecond, 10*time.Millisecond, time.Millisecond)
	return &Policy{
		Log:      logger.NewLogger("siphon-test", "error", false),
		Key:      Key("testerp", "extract"),
		Retry:    retry,
		Breaker:  breaker,
		Bulkhead: bulkhead,
		Metrics:  NewCollector(prometheus.NewRegistry()),
	}
}

func TestBackoffDelayBounds(t *testing.T) {
	base := 100 * time.Millisecond
	jitter := 50 * time.Millisecond
	p := NewRetryPolicy(5, base, time.Hour, jitter)
	// Delay for attempt k is within [base*2^(k-1), base*2^(k-1)+jitterWindow].
	for k := 1; k <= 5; k++ {
		lower := base * time.Duration(1<<uint(k-1))
		upper := lower + jitter
		for i := 0; i < 50; i++ {
			d := p.BackoffDelay(k)
			require.GreaterOrEqual(t, d, lower, "attempt %d", k)
			require.LessOrEqual(t, d, upper, "attempt %d", k)
		}
	}
}

func TestBackoffDelayIsCapped(t *testing.T) {
	p := NewRetryPolicy(10, time.Second, 4*time.Second, 0)
	require.Equal(t, 4*time.Second, p.BackoffDelay(10))
}

func TestPolicyRetriesTransientUntilSuccess(t *testing.T) {
	p := testPolicy(3, nil, nil)
	calls := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errkind.New(errkind.KindTransient, "http 503")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestPolicyDoesNotRetryPersistent(t *testing.T) {
	p := testPolicy(3, nil, nil)
	calls := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return errkind.New(errkind.KindPersistent, "sql syntax error")
	})
	require.Error(t, err)
	require.Equal(t, errkind.KindPersistent, errkind.KindOf(err))
	require.Equal(t, 1, calls, "persistent errors must fail immediately")
}

func TestPolicyExhaustsRetries(t *testing.T) {
	p := testPolicy(2, nil, nil)
	calls := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return errkind.New(errkind.KindTransient, "timeout")
	})
	require.Error(t, err)
	require.Equal(t, 3, calls, "initial attempt plus two retries")
	require.Equal(t, errkind.KindTransient, errkind.KindOf(err))
}

// Scenario: five consecutive 500 responses with circuitBreakerThreshold=5 mean
// the sixth call fails immediately with a circuit-open error and the underlying
// call is never attempted.
func TestPolicyBreakerFailsFastWithoutCalling(t *testing.T) {
	breaker := NewBreaker(5, time.Hour)
	p := testPolicy(0, breaker, nil)
	calls := 0
	fail := func(ctx context.Context) error {
		calls++
		return errkind.New(errkind.KindTransient, "http 500")
	}
	for i := 0; i < 5; i++ {
		require.Error(t, p.Execute(context.Background(), fail))
	}
	require.Equal(t, 5, calls)
	err := p.Execute(context.Background(), fail)
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.Equal(t, 5, calls, "no HTTP call may be attempted while the circuit is open")
}

func TestPolicyBulkheadFailFast(t *testing.T) {
	bulkhead := NewBulkhead(1, true)
	p := testPolicy(0, nil, bulkhead)
	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = p.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	err := p.Execute(context.Background(), func(ctx context.Context) error { return nil })
	require.Error(t, err, "second concurrent call must be rejected at the bulkhead")
	require.Equal(t, errkind.KindTransient, errkind.KindOf(err))
	close(release)
}

func TestPolicyBulkheadBoundedWait(t *testing.T) {
	bulkhead := NewBulkhead(1, false)
	p := testPolicy(0, nil, bulkhead)
	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = p.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	done := make(chan error, 1)
	go func() {
		done <- p.Execute(context.Background(), func(ctx context.Context) error { return nil })
	}()
	select {
	case <-done:
		t.Fatal("second call should be waiting on the bulkhead")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-done, "waiting call proceeds once the slot frees")
}

func TestPolicyCancellationStopsNewCalls(t *testing.T) {
	p := testPolicy(5, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := p.Execute(ctx, func(ctx context.Context) error {
		calls++
		cancel() // cancel during the first (in-flight) call.
		return errkind.New(errkind.KindTransient, "timeout")
	})
	require.Error(t, err)
	require.Equal(t, errkind.KindCancelled, errkind.KindOf(err))
	require.Equal(t, 1, calls, "no new call may start after cancellation")
}
