package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes resilience events as Prometheus metrics. All methods are
// nil-safe so callers can run without metrics wired.
type Collector struct {
	callsTotal         *prometheus.CounterVec
	callFailures       *prometheus.CounterVec
	retriesTotal       *prometheus.CounterVec
	breakerOpens       *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
	bulkheadRejections *prometheus.CounterVec
	bulkheadInFlight   *prometheus.GaugeVec
}

// NewCollector creates and registers the resilience metrics with reg.
// A nil reg builds the metrics unregistered, for callers with no scrape
// endpoint.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siphon_resilience_calls_total",
			Help: "Total number of protected external calls attempted",
		}, []string{"key"}),
		callFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siphon_resilience_call_failures_total",
			Help: "Total number of protected external calls that failed",
		}, []string{"key"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siphon_resilience_retries_total",
			Help: "Total number of retry attempts after transient failures",
		}, []string{"key"}),
		breakerOpens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siphon_resilience_breaker_opens_total",
			Help: "Total number of circuit breaker open transitions",
		}, []string{"key"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "siphon_resilience_breaker_state",
			Help: "Circuit breaker state per key (0 closed, 1 half-open, 2 open)",
		}, []string{"key"}),
		bulkheadRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siphon_resilience_bulkhead_rejections_total",
			Help: "Total number of calls rejected or aborted at the bulkhead",
		}, []string{"key"}),
		bulkheadInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "siphon_resilience_bulkhead_in_flight",
			Help: "Current number of in-flight calls per bulkhead key",
		}, []string{"key"}),
	}
	if reg == nil {
		return c
	}
	reg.MustRegister(
		c.callsTotal,
		c.callFailures,
		c.retriesTotal,
		c.breakerOpens,
		c.breakerState,
		c.bulkheadRejections,
		c.bulkheadInFlight,
	)
	return c
}

func (c *Collector) IncCalls(key string) {
	if c != nil {
		c.callsTotal.WithLabelValues(key).Inc()
	}
}

func (c *Collector) IncFailures(key string) {
	if c != nil {
		c.callFailures.WithLabelValues(key).Inc()
	}
}

func (c *Collector) IncRetries(key string) {
	if c != nil {
		c.retriesTotal.WithLabelValues(key).Inc()
	}
}

func (c *Collector) IncBreakerOpens(key string) {
	if c != nil {
		c.breakerOpens.WithLabelValues(key).Inc()
	}
}

func (c *Collector) SetBreakerState(key string, state State) {
	if c != nil {
		c.breakerState.WithLabelValues(key).Set(float64(state))
	}
}

func (c *Collector) IncBulkheadRejections(key string) {
	if c != nil {
		c.bulkheadRejections.WithLabelValues(key).Inc()
	}
}

func (c *Collector) AddBulkheadInFlight(key string, delta float64) {
	if c != nil {
		c.bulkheadInFlight.WithLabelValues(key).Add(delta)
	}
}
