package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteRequestsTotal counts tax quote lookups by outcome.
	QuoteRequestsTotal *prometheus.CounterVec
	// QuoteLatency records provider round trips in milliseconds.
	QuoteLatency *prometheus.HistogramVec
	// ReconcileRunsTotal counts reconciliation passes by mode and outcome.
	ReconcileRunsTotal *prometheus.CounterVec
	// OrderTaxUpdatesTotal counts order line prices rewritten at order placement.
	OrderTaxUpdatesTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_quote_requests_total",
			Help:      "Count of tax quote lookups by outcome.",
		}, []string{"result"})
		QuoteLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tax_quote_duration_ms",
			Help:      "Latency of tax provider calls in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"result"})
		ReconcileRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_reconcile_runs_total",
			Help:      "Count of cart tax reconciliation passes.",
		}, []string{"mode", "outcome"})
		OrderTaxUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_tax_updates_total",
			Help:      "Count of order line prices rewritten from tax annotations.",
		}, []string{"kind"})

		mustRegisterCollector(reg, QuoteRequestsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteRequestsTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				QuoteLatency = v
			}
		})
		mustRegisterCollector(reg, ReconcileRunsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ReconcileRunsTotal = v
			}
		})
		mustRegisterCollector(reg, OrderTaxUpdatesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrderTaxUpdatesTotal = v
			}
		})
	})
}

// CountQuote increments QuoteRequestsTotal when registered.
func CountQuote(result string) {
	if QuoteRequestsTotal != nil {
		QuoteRequestsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveQuoteLatency records a provider round trip when registered.
func ObserveQuoteLatency(result string, ms float64) {
	if QuoteLatency != nil {
		QuoteLatency.WithLabelValues(result).Observe(ms)
	}
}

// CountReconcile increments ReconcileRunsTotal when registered.
func CountReconcile(mode, outcome string) {
	if ReconcileRunsTotal != nil {
		ReconcileRunsTotal.WithLabelValues(mode, outcome).Inc()
	}
}

// CountOrderTaxUpdate adds n to OrderTaxUpdatesTotal when registered.
func CountOrderTaxUpdate(kind string, n int) {
	if OrderTaxUpdatesTotal != nil && n > 0 {
		OrderTaxUpdatesTotal.WithLabelValues(kind).Add(float64(n))
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
