package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// AgentLatency tracks forecast round trips per agent.
	AgentLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "betpulse",
			Subsystem: "agent",
			Name:      "forecast_latency_seconds",
			Help:      "Latency of forecasting agent calls",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"agent"},
	)

	AgentErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "betpulse",
			Subsystem: "agent",
			Name:      "errors_total",
			Help:      "Failed forecasting agent calls by reason",
		},
		[]string{"agent", "reason"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "betpulse",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Decision cache lookups by result",
		},
		[]string{"result"},
	)
)

// Register adds the collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(AgentLatency, AgentErrors, CacheLookups)
	})
}
