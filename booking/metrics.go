package booking

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeCommitted = "committed"
	outcomeConflict  = "conflict"
	outcomeExhausted = "version_conflict"
	outcomeError     = "error"
)

// Metrics counts bucket write outcomes. A nil *Metrics records nothing.
type Metrics struct {
	writes  *prometheus.CounterVec
	retries prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_bucket_writes_total",
				Help: "Bucket write batches by outcome",
			},
			[]string{"outcome"},
		),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booking_bucket_write_retries_total",
			Help: "Bucket write batches retried after a version conflict",
		}),
	}
	reg.MustRegister(m.writes, m.retries)
	return m
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) retried() {
	if m == nil {
		return
	}
	m.retries.Inc()
}
