package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flows.
type BookingMetrics struct {
	reconcileTotal  *prometheus.CounterVec
	inboundTotal    *prometheus.CounterVec
	agentRunSeconds *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		reconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citabot",
			Subsystem: "booking",
			Name:      "reconcile_total",
			Help:      "Total booking reconciliations by path and status",
		}, []string{"path", "status"}),
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citabot",
			Subsystem: "webhook",
			Name:      "inbound_total",
			Help:      "Total inbound WhatsApp webhooks",
		}, []string{"status"}),
		agentRunSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "citabot",
			Subsystem: "agent",
			Name:      "run_seconds",
			Help:      "Duration of assistant runs to a terminal state",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.reconcileTotal, m.inboundTotal, m.agentRunSeconds)
	return m
}

func (m *BookingMetrics) ObserveReconcile(path, status string) {
	if m == nil {
		return
	}
	if path == "" {
		path = "none"
	}
	m.reconcileTotal.WithLabelValues(path, status).Inc()
}

func (m *BookingMetrics) ObserveInbound(status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveAgentRun(status string, seconds float64) {
	if m == nil {
		return
	}
	m.agentRunSeconds.WithLabelValues(status).Observe(seconds)
}
