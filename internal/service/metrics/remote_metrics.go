package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// RemoteMetrics tracks calls to remote agents and their circuit breakers.
type RemoteMetrics struct {
	latency *prometheus.HistogramVec
	errors  *prometheus.CounterVec
	breaker *prometheus.GaugeVec
}

func NewRemoteMetrics(reg prometheus.Registerer) *RemoteMetrics {
	f := promauto.With(reg)
	return &RemoteMetrics{
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "areopagus",
				Subsystem: "remote_agent",
				Name:      "latency_seconds",
				Help:      "Latency of remote agent calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"agent", "endpoint"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "areopagus",
				Subsystem: "remote_agent",
				Name:      "errors_total",
				Help:      "Failed remote agent calls by reason",
			},
			[]string{"agent", "endpoint", "reason"},
		),
		breaker: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "areopagus",
				Subsystem: "remote_agent",
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"agent"},
		),
	}
}

// ObserveCall matches analytics.WithCallObserver.
func (m *RemoteMetrics) ObserveCall(agent, endpoint string, d time.Duration, err error) {
	switch {
	case err == nil:
		m.latency.WithLabelValues(agent, endpoint).Observe(d.Seconds())
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		m.errors.WithLabelValues(agent, endpoint, "breaker_open").Inc()
	default:
		m.latency.WithLabelValues(agent, endpoint).Observe(d.Seconds())
		m.errors.WithLabelValues(agent, endpoint, "request").Inc()
	}
}

// BreakerStateChanged matches analytics.WithBreakerStateHook.
func (m *RemoteMetrics) BreakerStateChanged(agent string, _, to gobreaker.State) {
	m.breaker.WithLabelValues(agent).Set(float64(to))
}
