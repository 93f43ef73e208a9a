// Package metrics holds the prometheus collectors for checkout and webhook
// processing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	CheckoutOutcomes *prometheus.CounterVec
	WebhookOutcomes  *prometheus.CounterVec
	ReserveDuration  prometheus.Histogram
	ProviderDuration prometheus.Histogram
	gatherer         prometheus.Gatherer
}

// New registers the collectors on reg. Tests pass prometheus.NewRegistry().
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		CheckoutOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "checkout_attempts_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		WebhookOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "webhook_events_total",
			Help:      "Provider webhook events by type and reconciliation outcome.",
		}, []string{"type", "outcome"}),
		ReserveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "reserve_duration_seconds",
			Help:      "Latency of the stock reservation transaction.",
			Buckets:   prometheus.DefBuckets,
		}),
		ProviderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "provider_session_duration_seconds",
			Help:      "Latency of checkout session creation at the payment provider.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.CheckoutOutcomes, m.WebhookOutcomes, m.ReserveDuration, m.ProviderDuration)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
