package postgres

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
)

const modulePrefix = "github.com/linnemanlabs/breezecue/internal/"

type queryKey struct{}

type dbStatsKey struct{}

// queryInfo is stashed in the context between TraceQueryStart and End.
type queryInfo struct {
	sql    string
	args   []any
	start  time.Time
	caller string
}

// ReqDBStats accumulates per-request database query statistics.
type ReqDBStats struct {
	mu            sync.Mutex
	QueryCount    int
	TotalDuration time.Duration
	ErrorCount    int
}

// AddQuery records a single query execution.
func (s *ReqDBStats) AddQuery(dur time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.QueryCount++
	s.TotalDuration += dur
	if err != nil {
		s.ErrorCount++
	}
}

// Snapshot returns the counters under lock.
func (s *ReqDBStats) Snapshot() (count int, total time.Duration, errs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.QueryCount, s.TotalDuration, s.ErrorCount
}

// NewReqDBStatsContext returns a new context with an empty ReqDBStats attached.
func NewReqDBStatsContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, dbStatsKey{}, &ReqDBStats{})
}

// ReqDBStatsFromContext extracts the ReqDBStats from the context, if present.
func ReqDBStatsFromContext(ctx context.Context) (*ReqDBStats, bool) {
	s, ok := ctx.Value(dbStatsKey{}).(*ReqDBStats)
	return s, ok
}

// RequestStats attaches a fresh ReqDBStats to each request and records the
// totals on the request span after the handler returns.
func RequestStats(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := NewReqDBStatsContext(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))

		s, _ := ReqDBStatsFromContext(ctx)
		count, total, errs := s.Snapshot()
		if count == 0 {
			return
		}
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(
				attribute.Int("db.query_count", count),
				attribute.Float64("db.total_duration", total.Seconds()),
				attribute.Int("db.error_count", errs),
			)
		}
	})
}

// loggingTracer wraps another pgx.QueryTracer (otelpgx) and adds a
// structured log line, metrics and per-request stats for every query.
type loggingTracer struct {
	inner   pgx.QueryTracer
	metrics *Metrics
}

func newLoggingTracer(inner pgx.QueryTracer, m *Metrics) loggingTracer {
	return loggingTracer{inner: inner, metrics: m}
}

func (t loggingTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	qi := &queryInfo{
		sql:    data.SQL,
		args:   data.Args,
		start:  time.Now(),
		caller: findDBCaller(),
	}

	if t.inner != nil {
		ctx = t.inner.TraceQueryStart(ctx, conn, data)
	}
	if span := trace.SpanFromContext(ctx); span.IsRecording() && qi.caller != "" {
		span.SetAttributes(attribute.String("db.caller", qi.caller))
	}
	return context.WithValue(ctx, queryKey{}, qi)
}

func (t loggingTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	if t.inner != nil {
		t.inner.TraceQueryEnd(ctx, conn, data)
	}

	qi, _ := ctx.Value(queryKey{}).(*queryInfo)
	if qi == nil {
		return
	}
	dur := time.Since(qi.start)
	op := operationName(data.CommandTag)

	if s, ok := ReqDBStatsFromContext(ctx); ok {
		s.AddQuery(dur, data.Err)
	}
	if t.metrics != nil {
		t.metrics.observe(op, routePattern(ctx), data.Err, dur)
	}

	fields := []any{
		"db.statement", qi.sql,
		"db.args", qi.args,
		"db.duration", dur.Seconds(),
		"db.operation.name", op,
	}
	if rows := data.CommandTag.RowsAffected(); rows >= 0 && op != "" {
		fields = append(fields, "db.rows", rows)
	}
	if qi.caller != "" {
		fields = append(fields, "db.caller", qi.caller)
	}

	L := log.FromContext(ctx)
	if data.Err != nil {
		var pgErr *pgconn.PgError
		if errors.As(data.Err, &pgErr) {
			fields = append(fields, "db.error_code", pgErr.Code)
		}
		L.Error(ctx, data.Err, "db query failed", fields...)
		return
	}
	L.Info(ctx, "db query", fields...)
}

func operationName(tag pgconn.CommandTag) string {
	parts := strings.Fields(tag.String())
	if len(parts) == 0 {
		return ""
	}
	return strings.ToUpper(parts[0])
}

func routePattern(ctx context.Context) string {
	if rc := chi.RouteContext(ctx); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "none"
}

// findDBCaller returns the first frame in this module outside the postgres
// package, e.g. "(*Store).Get".
func findDBCaller() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		fr, more := frames.Next()
		fn := fr.Function
		if strings.HasPrefix(fn, modulePrefix) && !strings.HasPrefix(fn, modulePrefix+"postgres.") {
			return shortenFuncName(fn)
		}
		if !more {
			return ""
		}
	}
}

func shortenFuncName(fn string) string {
	if i := strings.LastIndex(fn, "/"); i >= 0 && i+1 < len(fn) {
		fn = fn[i+1:]
	}
	if dot := strings.Index(fn, "."); dot >= 0 && dot+1 < len(fn) {
		fn = fn[dot+1:]
	}
	return fn
}
