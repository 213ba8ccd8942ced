package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Storefront records checkout, reconciliation and backend call metrics.
// A nil *Storefront is valid and records nothing.
type Storefront struct {
	transitions            *prometheus.CounterVec
	reconciliationFailures prometheus.Counter
	gatewayCalls           *prometheus.HistogramVec
}

// NewStorefront registers the storefront metrics on the provided registerer.
func NewStorefront(reg prometheus.Registerer) *Storefront {
	if reg == nil {
		return &Storefront{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_transitions_total",
		Help: "Checkout state transitions.",
	}, []string{"from", "to"})
	reconciliationFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_reconciliation_failures_total",
		Help: "Captured payments whose order could not be recorded.",
	})
	gatewayCalls := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_call_duration_seconds",
		Help:    "Duration of backend gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})
	reg.MustRegister(transitions, reconciliationFailures, gatewayCalls)
	return &Storefront{
		transitions:            transitions,
		reconciliationFailures: reconciliationFailures,
		gatewayCalls:           gatewayCalls,
	}
}

// ObserveTransition counts a checkout state change.
func (s *Storefront) ObserveTransition(from, to string) {
	if s == nil || s.transitions == nil {
		return
	}
	s.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (s *Storefront) IncReconciliationFailure() {
	if s == nil || s.reconciliationFailures == nil {
		return
	}
	s.reconciliationFailures.Inc()
}

// ObserveGatewayCall records one backend call; outcome is "ok" or an error kind.
func (s *Storefront) ObserveGatewayCall(operation, outcome string, duration time.Duration) {
	if s == nil || s.gatewayCalls == nil {
		return
	}
	s.gatewayCalls.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Observe(duration.Seconds())
}

// Handler serves the gathered metrics in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
