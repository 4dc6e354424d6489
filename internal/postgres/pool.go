// Package postgres opens instrumented pgx connection pools.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for database queries.
type Metrics struct {
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics registers and returns query metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "breezecue_db_query_duration_seconds",
			Help:    "Duration of database queries in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms .. ~1s
		}, []string{"operation", "route"}),
		QueryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breezecue_db_query_errors_total",
			Help: "Total failed database queries.",
		}, []string{"operation", "route"}),
	}
	reg.MustRegister(m.QueryDuration, m.QueryErrors)
	return m
}

func (m *Metrics) observe(op, route string, err error, dur time.Duration) {
	if op == "" {
		op = "UNKNOWN"
	}
	m.QueryDuration.WithLabelValues(op, route).Observe(dur.Seconds())
	if err != nil {
		m.QueryErrors.WithLabelValues(op, route).Inc()
	}
}

// NewPool parses databaseURL, installs the otelpgx tracer wrapped with query
// logging and metrics, and verifies connectivity. m may be nil.
func NewPool(ctx context.Context, databaseURL string, m *Metrics) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.ConnConfig.Tracer = newLoggingTracer(otelpgx.NewTracer(), m)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}
