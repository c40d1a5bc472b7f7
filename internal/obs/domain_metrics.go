package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SelectionTogglesTotal counts toggle requests by product and result.
	SelectionTogglesTotal *prometheus.CounterVec
	// DegradedMappingsTotal counts codes exported without a canonical mapping.
	DegradedMappingsTotal *prometheus.CounterVec
	// SessionsTotal counts created configuration sessions.
	SessionsTotal *prometheus.CounterVec
	// SubmissionsTotal counts payload submissions by outcome.
	SubmissionsTotal *prometheus.CounterVec
	// WebhookDeliveriesTotal tracks webhook dispatch outcomes.
	WebhookDeliveriesTotal *prometheus.CounterVec
	// WebhookAttemptLatency records delivery attempt latency in milliseconds.
	WebhookAttemptLatency *prometheus.HistogramVec
	// QuoteQueryLatency records quote archive statements by SQL verb.
	QuoteQueryLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers configurator collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SelectionTogglesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selection_toggles_total",
			Help:      "Toggle requests by product and result.",
		}, []string{"product", "result"})
		DegradedMappingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remap_degraded_total",
			Help:      "Exported codes that fell back to their generic form.",
		}, []string{"product", "kind", "brand"})
		SessionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Configuration sessions created per product.",
		}, []string{"product"})
		SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Configuration submissions by product and outcome.",
		}, []string{"product", "result"})
		WebhookDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Count of webhook delivery outcomes.",
		}, []string{"result"})
		WebhookAttemptLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_attempt_duration_ms",
			Help:      "Latency for webhook delivery attempts in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"})

		QuoteQueryLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_query_duration_ms",
			Help:      "Quote archive query latency in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}, []string{"operation", "result"})

		for _, c := range []**prometheus.CounterVec{&SelectionTogglesTotal, &DegradedMappingsTotal, &SessionsTotal, &SubmissionsTotal, &WebhookDeliveriesTotal} {
			target := c
			mustRegisterCollector(reg, *target, func(existing prometheus.Collector) {
				if v, ok := existing.(*prometheus.CounterVec); ok {
					*target = v
				}
			})
		}
		for _, h := range []**prometheus.HistogramVec{&WebhookAttemptLatency, &QuoteQueryLatency} {
			target := h
			mustRegisterCollector(reg, *target, func(existing prometheus.Collector) {
				if v, ok := existing.(*prometheus.HistogramVec); ok {
					*target = v
				}
			})
		}
	})
}

// Inc bumps a counter when domain metrics are registered.
func Inc(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
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
