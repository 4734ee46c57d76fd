package session

import "github.com/prometheus/client_golang/prometheus"

// Metrics счётчики сессии. Нулевой *Metrics допустим и ничего не считает.
type Metrics struct {
	restores      *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

// NewMetrics создаёт счётчики и регистрирует их в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		restores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockpicks",
			Subsystem: "session",
			Name:      "restores_total",
			Help:      "Session restores from storage by result.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockpicks",
			Subsystem: "session",
			Name:      "entitlement_refreshes_total",
			Help:      "Entitlement refreshes by outcome.",
		}, []string{"outcome"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockpicks",
			Subsystem: "session",
			Name:      "invalidations_total",
			Help:      "Session invalidations by reason.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.restores, m.refreshes, m.invalidations)
	}
	return m
}

func (m *Metrics) restore(result string) {
	if m == nil {
		return
	}
	m.restores.WithLabelValues(result).Inc()
}

func (m *Metrics) refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) invalidation(reason Reason) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(string(reason)).Inc()
}
