package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics counts relayed outbox rows by event type and outcome
// (published, retry, parked).
type OutboxMetrics struct {
	relayed *prometheus.CounterVec
	backlog prometheus.Gauge
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	relayed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_relayed_total",
		Help: "Outbox rows handled by the relay, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	backlog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_last_batch_size",
		Help: "Number of rows fetched by the most recent relay batch.",
	})
	reg.MustRegister(relayed, backlog)
	return &OutboxMetrics{relayed: relayed, backlog: backlog}
}

func (o *OutboxMetrics) IncRelayed(eventType, outcome string) {
	if o == nil || o.relayed == nil {
		return
	}
	o.relayed.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}

func (o *OutboxMetrics) SetBatchSize(n int) {
	if o == nil || o.backlog == nil {
		return
	}
	o.backlog.Set(float64(n))
}
