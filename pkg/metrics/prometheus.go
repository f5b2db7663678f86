package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"Areopagus/internal/domain/models"
	"Areopagus/internal/domain/repository"
)

const namespace = "areopagus"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	decisions   *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	intents     *prometheus.CounterVec
	agentErrors *prometheus.CounterVec
	agentWeight *prometheus.GaugeVec
	regime      *prometheus.GaugeVec
	volatility  *prometheus.GaugeVec
	killSwitch  prometheus.Gauge
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New creates a recorder registered on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Council decisions emitted",
			},
			[]string{"symbol", "side", "method"},
		),
		rejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejections_total",
				Help:      "Decisions that did not become an order intent, by stage",
			},
			[]string{"symbol", "stage"},
		),
		intents: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_intents_total",
				Help:      "Order intents handed to the executor",
			},
			[]string{"symbol", "side"},
		),
		agentErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "agent",
				Name:      "errors_total",
				Help:      "Agent calls excluded from a tick because they failed",
			},
			[]string{"agent"},
		),
		agentWeight: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "agent",
				Name:      "trust_weight",
				Help:      "Current trust weight per agent",
			},
			[]string{"agent"},
		),
		regime: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "regime_war",
				Help:      "1 when the symbol is in the WAR regime",
			},
			[]string{"symbol"},
		),
		volatility: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "regime_volatility",
				Help:      "Rolling coefficient of variation of closes",
			},
			[]string{"symbol"},
		),
		killSwitch: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "kill_switch_active",
				Help:      "1 once the drawdown kill switch has fired",
			},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordDecision(symbol string, side models.Outcome, method models.VotingMethod) {
	r.decisions.WithLabelValues(symbol, string(side), string(method)).Inc()
}

func (r *Recorder) RecordRejection(symbol, stage string) {
	r.rejections.WithLabelValues(symbol, stage).Inc()
}

func (r *Recorder) RecordIntent(symbol string, side models.Outcome) {
	r.intents.WithLabelValues(symbol, string(side)).Inc()
}

func (r *Recorder) RecordAgentError(agent string) {
	r.agentErrors.WithLabelValues(agent).Inc()
}

func (r *Recorder) RecordAgentWeight(agent string, weight float64) {
	r.agentWeight.WithLabelValues(agent).Set(weight)
}

func (r *Recorder) RecordRegime(symbol string, regime models.Regime, volatility float64) {
	war := 0.0
	if regime == models.RegimeWar {
		war = 1
	}
	r.regime.WithLabelValues(symbol).Set(war)
	r.volatility.WithLabelValues(symbol).Set(volatility)
}

func (r *Recorder) RecordKillSwitch(killed bool) {
	if killed {
		r.killSwitch.Set(1)
		return
	}
	r.killSwitch.Set(0)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

var _ repository.Metrics = (*Recorder)(nil)

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordDecision(string, models.Outcome, models.VotingMethod) {}
func (Nop) RecordRejection(string, string)                            {}
func (Nop) RecordIntent(string, models.Outcome)                       {}
func (Nop) RecordAgentError(string)                                   {}
func (Nop) RecordAgentWeight(string, float64)                         {}
func (Nop) RecordRegime(string, models.Regime, float64)               {}
func (Nop) RecordKillSwitch(bool)                                     {}
func (Nop) RecordError(string)                                        {}
func (Nop) RecordLatency(string, float64)                             {}

var _ repository.Metrics = Nop{}
