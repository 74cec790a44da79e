package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records reconciliation outcomes and provider latency.
type PaymentMetrics struct {
	reconciliations  *prometheus.CounterVec
	materializations *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconciliations_total",
		Help: "Reconciliation attempts by channel (verify, webhook) and resulting status.",
	}, []string{"channel", "result"})
	materializations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_materializations_total",
		Help: "Order materialization attempts by outcome.",
	}, []string{"outcome"})
	providerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_provider_request_duration_seconds",
		Help:    "Latency of payment provider calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})
	reg.MustRegister(reconciliations, materializations, providerDuration)
	return &PaymentMetrics{
		reconciliations:  reconciliations,
		materializations: materializations,
		providerDuration: providerDuration,
	}
}

// IncReconciliation counts a verify or webhook outcome.
func (p *PaymentMetrics) IncReconciliation(channel, result string) {
	if p == nil || p.reconciliations == nil {
		return
	}
	p.reconciliations.WithLabelValues(normalizeLabel(channel), normalizeLabel(result)).Inc()
}

// IncMaterialization counts created, existing, lost_claim and failed outcomes.
func (p *PaymentMetrics) IncMaterialization(outcome string) {
	if p == nil || p.materializations == nil {
		return
	}
	p.materializations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveProvider records how long a provider call took.
func (p *PaymentMetrics) ObserveProvider(operation, outcome string, duration time.Duration) {
	if p == nil || p.providerDuration == nil {
		return
	}
	p.providerDuration.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
