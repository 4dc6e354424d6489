package campaign

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus collectors for campaign lifecycle events.
type Metrics struct {
	Actions *prometheus.CounterVec
	Notify  *prometheus.CounterVec
}

// NewMetrics creates and registers campaign collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breezecue_campaign_actions_total",
			Help: "Campaign writes by action (save, launch, delete).",
		}, []string{"action"}),
		Notify: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breezecue_campaign_launch_notifications_total",
			Help: "Launch notifications by outcome (success, error).",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.Actions, m.Notify)
	return m
}

// Hooks returns service hooks that record into m.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnAction: func(action string) {
			m.Actions.WithLabelValues(action).Inc()
		},
		OnNotify: func(ok bool) {
			outcome := "success"
			if !ok {
				outcome = "error"
			}
			m.Notify.WithLabelValues(outcome).Inc()
		},
	}
}
