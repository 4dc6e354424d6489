package alertfeed

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the alert feed.
type Metrics struct {
	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	ActiveAlerts  *prometheus.GaugeVec
}

// NewMetrics registers and returns alert feed metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breezecue_alert_fetches_total",
			Help: "Total alert feed fetches by region and outcome.",
		}, []string{"region", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "breezecue_alert_fetch_duration_seconds",
			Help:    "Duration of alert feed fetches in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}, []string{"region"}),
		ActiveAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "breezecue_active_alerts",
			Help: "Alerts returned by the last successful fetch per region.",
		}, []string{"region"}),
	}

	reg.MustRegister(
		m.FetchesTotal,
		m.FetchDuration,
		m.ActiveAlerts,
	)

	return m
}

// Hooks returns Holder hooks that update the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnFetch: func(region string, ok bool, count int, duration float64) {
			outcome := "success"
			if !ok {
				outcome = "error"
			}
			m.FetchesTotal.WithLabelValues(region, outcome).Inc()
			m.FetchDuration.WithLabelValues(region).Observe(duration)
			if ok {
				m.ActiveAlerts.WithLabelValues(region).Set(float64(count))
			}
		},
	}
}
