package resilience

import "github.com/prometheus/client_golang/prometheus"

var (
	// BreakerState exposes 0=closed, 1=open, 2=half-open per target.
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "taxbridge",
		Name:      "breaker_state",
		Help:      "Current breaker state: 0=closed,1=open,2=half-open.",
	}, []string{"target"})
	// BreakerTransitions counts state changes.
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxbridge",
		Name:      "breaker_transition_total",
		Help:      "Count of breaker state transitions.",
	}, []string{"target", "from", "to"})
	// ProviderRetries counts retried provider calls.
	ProviderRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxbridge",
		Name:      "provider_retry_total",
		Help:      "Count of retried outbound provider calls.",
	}, []string{"target"})
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, ProviderRetries)
}

func setStateGauge(target string, s State) {
	BreakerState.WithLabelValues(target).Set(float64(s))
}

func countTransition(target string, from, to State) {
	BreakerTransitions.WithLabelValues(target, from.String(), to.String()).Inc()
}
