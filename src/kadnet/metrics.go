package kadnet

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts protocol activity for one node. A nil *Metrics is valid
// and counts nothing.
type Metrics struct {
	rpcsServed *prometheus.CounterVec
	rpcsSent   *prometheus.CounterVec
	lookups    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rpcsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lrad",
			Subsystem: "kadnet",
			Name:      "rpcs_served_total",
			Help:      "RPCs answered, by type.",
		}, []string{"type"}),
		rpcsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lrad",
			Subsystem: "kadnet",
			Name:      "rpcs_sent_total",
			Help:      "RPCs issued, by type and outcome.",
		}, []string{"type", "outcome"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lrad",
			Subsystem: "kadnet",
			Name:      "lookups_total",
			Help:      "Iterative lookups run, by operation.",
		}, []string{"op"}),
	}
	reg.MustRegister(m.rpcsServed, m.rpcsSent, m.lookups)
	return m
}

func (m *Metrics) served(t MessageType) {
	if m == nil {
		return
	}
	m.rpcsServed.WithLabelValues(t.String()).Inc()
}

func (m *Metrics) sent(t MessageType, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.rpcsSent.WithLabelValues(t.String(), outcome).Inc()
}

func (m *Metrics) lookup(op string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(op).Inc()
}
