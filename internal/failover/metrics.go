package failover

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics for the failover subsystem
type Metrics struct {
	FailoversTotal     *prometheus.CounterVec
	ProbeFailuresTotal *prometheus.CounterVec
	ProbeDuration      *prometheus.HistogramVec
	NodeStatus         *prometheus.GaugeVec
}

// statusGaugeValue maps a node status onto the exported gauge
func statusGaugeValue(s Status) float64 {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	case StatusUnhealthy:
		return 2
	case StatusFailed:
		return 3
	default:
		return -1
	}
}

// NewMetrics creates and registers the failover metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FailoversTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_failovers_total",
				Help: "Total number of failover attempts",
			},
			[]string{"service", "result"},
		),
		ProbeFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_probe_failures_total",
				Help: "Total number of failed health probes",
			},
			[]string{"service", "node"},
		),
		ProbeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_probe_duration_seconds",
				Help:    "Health probe latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		NodeStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "warden_node_status",
				Help: "Node status (0=healthy 1=degraded 2=unhealthy 3=failed)",
			},
			[]string{"service", "node"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.FailoversTotal)
		reg.MustRegister(m.ProbeFailuresTotal)
		reg.MustRegister(m.ProbeDuration)
		reg.MustRegister(m.NodeStatus)
	}

	return m
}

func (m *Metrics) recordFailover(service string, success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.FailoversTotal.WithLabelValues(service, result).Inc()
}

func (m *Metrics) recordProbe(service, node string, seconds float64, failed bool) {
	if m == nil {
		return
	}
	m.ProbeDuration.WithLabelValues(service).Observe(seconds)
	if failed {
		m.ProbeFailuresTotal.WithLabelValues(service, node).Inc()
	}
}

func (m *Metrics) recordStatus(service, node string, status Status) {
	if m == nil {
		return
	}
	m.NodeStatus.WithLabelValues(service, node).Set(statusGaugeValue(status))
}

func (m *Metrics) removeNode(service, node string) {
	if m == nil {
		return
	}
	m.NodeStatus.DeleteLabelValues(service, node)
	m.ProbeFailuresTotal.DeleteLabelValues(service, node)
}
