package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	evaluations *prometheus.CounterVec
	markets     *prometheus.CounterVec
	vetoes      *prometheus.CounterVec
	chaos       *prometheus.CounterVec
	divergence  prometheus.Histogram
	stake       *prometheus.HistogramVec
	unavailable *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New registers the engine metrics on reg. A nil reg uses the default
// registerer; tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "betpulse_evaluations_total",
			Help: "Fixture evaluations by outcome",
		}, []string{"result"}),
		markets: f.NewCounterVec(prometheus.CounterOpts{
			Name: "betpulse_market_signals_total",
			Help: "Market decisions by signal label",
		}, []string{"market", "signal"}),
		vetoes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "betpulse_vetoes_total",
			Help: "Markets blocked by the luring-trap veto",
		}, []string{"market"}),
		chaos: f.NewCounterVec(prometheus.CounterOpts{
			Name: "betpulse_chaos_total",
			Help: "Fixtures by chaos classification",
		}, []string{"level"}),
		divergence: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "betpulse_divergence_index",
			Help:    "Distribution of the fixture divergence index",
			Buckets: []float64{0.25, 0.5, 1, 1.5, 2, 2.5, 3, 4, 5, 7.5, 10},
		}),
		stake: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "betpulse_recommended_stake",
			Help:    "Recommended stake in bankroll currency",
			Buckets: prometheus.ExponentialBuckets(1, 2.5, 10),
		}, []string{"market"}),
		unavailable: f.NewCounterVec(prometheus.CounterOpts{
			Name: "betpulse_agent_unavailable_total",
			Help: "Agent forecasts that failed or timed out",
		}, []string{"agent"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "betpulse_errors_total",
			Help: "Total number of errors encountered",
		}, []string{"type"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "betpulse_operation_duration_seconds",
			Help:    "Duration of operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (r *Recorder) RecordEvaluation(result string) {
	r.evaluations.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordMarket(market, signal string) {
	r.markets.WithLabelValues(market, signal).Inc()
}

func (r *Recorder) RecordVeto(market string) {
	r.vetoes.WithLabelValues(market).Inc()
}

// RecordChaos counts the level and observes the raw index.
func (r *Recorder) RecordChaos(level string, index float64) {
	r.chaos.WithLabelValues(level).Inc()
	r.divergence.Observe(index)
}

func (r *Recorder) RecordStake(market string, stake float64) {
	r.stake.WithLabelValues(market).Observe(stake)
}

func (r *Recorder) RecordAgentUnavailable(agent string) {
	r.unavailable.WithLabelValues(agent).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordEvaluation(string)       {}
func (Nop) RecordMarket(string, string)   {}
func (Nop) RecordVeto(string)             {}
func (Nop) RecordChaos(string, float64)   {}
func (Nop) RecordStake(string, float64)   {}
func (Nop) RecordAgentUnavailable(string) {}
func (Nop) RecordError(string)            {}
func (Nop) RecordLatency(string, float64) {}
