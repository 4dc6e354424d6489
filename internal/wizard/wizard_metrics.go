package wizard

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus collectors for wizard sessions.
type Metrics struct {
	Started    *prometheus.CounterVec
	Saves      *prometheus.CounterVec
	Superseded prometheus.Counter
	Expired    prometheus.Counter
}

// NewMetrics creates and registers wizard collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breezecue_wizard_sessions_started_total",
			Help: "Wizard sessions started by initial state (active, not_found).",
		}, []string{"state"}),
		Saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breezecue_wizard_saves_total",
			Help: "Wizard draft saves by outcome (success, error).",
		}, []string{"outcome"}),
		Superseded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breezecue_wizard_generations_superseded_total",
			Help: "Generation results discarded because a newer request was issued.",
		}),
		Expired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breezecue_wizard_sessions_expired_total",
			Help: "Wizard sessions dropped after the idle TTL.",
		}),
	}
	reg.MustRegister(m.Started, m.Saves, m.Superseded, m.Expired)
	return m
}

// Hooks returns manager hooks that record into m.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnStart: func(state State) {
			m.Started.WithLabelValues(string(state)).Inc()
		},
		OnSuperseded: func() {
			m.Superseded.Inc()
		},
		OnSave: func(ok bool) {
			outcome := "success"
			if !ok {
				outcome = "error"
			}
			m.Saves.WithLabelValues(outcome).Inc()
		},
		OnExpire: func(n int) {
			m.Expired.Add(float64(n))
		},
	}
}
