// Package pgstore provides a PostgreSQL implementation of docstore.Store.
// Documents live in a single JSONB table; a trigger publishes the collection
// of every changed row on a NOTIFY channel that drives OnChange.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/breezecue/internal/docstore"
)

var tracer = otel.Tracer("github.com/linnemanlabs/breezecue/internal/docstore/pgstore")

//go:embed schema.sql
var schema string

const (
	notifyChannel  = "breezecue_documents"
	listenBackoff  = time.Second
	docColumns     = `path, data, updated_at`
	upsertDocument = `INSERT INTO documents (path, collection, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`
	mergeDocument  = `UPDATE documents SET data = data || $2::jsonb, updated_at = now() WHERE path = $1`
	deleteDocument = `DELETE FROM documents WHERE path = $1`
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists documents in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger

	subMu   sync.Mutex
	subs    map[int]*subscription
	nextSub int

	listening     chan struct{}
	listeningOnce sync.Once
}

type subscription struct {
	q  docstore.Query
	fn func([]docstore.Doc)
	mu sync.Mutex
}

// New applies the schema on pool and returns a ready Store. The caller owns
// the pool. Run Listen to receive change notifications.
func New(ctx context.Context, pool *pgxpool.Pool, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Nop()
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{
		pool:      pool,
		logger:    logger,
		subs:      make(map[int]*subscription),
		listening: make(chan struct{}),
	}, nil
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "pgstore."+name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Get returns the documents matching q.
func (s *Store) Get(ctx context.Context, q docstore.Query) ([]docstore.Doc, error) {
	ctx, span := startSpan(ctx, "Get", "SELECT")
	defer span.End()
	span.SetAttributes(attribute.String("docstore.collection", q.Collection))

	if err := q.Validate(); err != nil {
		return nil, fail(span, err)
	}
	docs, err := s.query(ctx, q)
	if err != nil {
		return nil, fail(span, err)
	}
	return docs, nil
}

func (s *Store) query(ctx context.Context, q docstore.Query) ([]docstore.Doc, error) {
	filter := make(map[string]any, len(q.Where))
	for _, f := range q.Where {
		filter[f.Field] = f.Value
	}
	fj, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+docColumns+` FROM documents WHERE collection = $1 AND data @> $2::jsonb`,
		q.Collection, string(fj))
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	out := make([]docstore.Doc, 0)
	for rows.Next() {
		var d docstore.Doc
		if err := rows.Scan(&d.Path, &d.Data, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return q.Apply(out), nil
}

// GetDoc returns the document at path.
func (s *Store) GetDoc(ctx context.Context, path string) (docstore.Doc, bool, error) {
	ctx, span := startSpan(ctx, "GetDoc", "SELECT")
	defer span.End()

	if _, _, err := docstore.Split(path); err != nil {
		return docstore.Doc{}, false, fail(span, err)
	}

	var d docstore.Doc
	err := s.pool.QueryRow(ctx, `SELECT `+docColumns+` FROM documents WHERE path = $1`, path).
		Scan(&d.Path, &d.Data, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.Doc{}, false, nil
	}
	if err != nil {
		return docstore.Doc{}, false, fail(span, fmt.Errorf("get document: %w", err))
	}
	return d, true, nil
}

// Set writes data at path, replacing any existing document.
func (s *Store) Set(ctx context.Context, path string, data docstore.Data) error {
	ctx, span := startSpan(ctx, "Set", "UPSERT")
	defer span.End()

	if err := set(ctx, s.pool, path, data); err != nil {
		return fail(span, err)
	}
	return nil
}

// Update merges patch into the document at path.
func (s *Store) Update(ctx context.Context, path string, patch docstore.Data) error {
	ctx, span := startSpan(ctx, "Update", "UPDATE")
	defer span.End()

	if err := update(ctx, s.pool, path, patch); err != nil {
		return fail(span, err)
	}
	return nil
}

// Delete removes the document at path.
func (s *Store) Delete(ctx context.Context, path string) error {
	ctx, span := startSpan(ctx, "Delete", "DELETE")
	defer span.End()

	if _, _, err := docstore.Split(path); err != nil {
		return fail(span, err)
	}
	tag, err := s.pool.Exec(ctx, deleteDocument, path)
	if err != nil {
		return fail(span, fmt.Errorf("delete %s: %w", path, err))
	}
	if tag.RowsAffected() == 0 {
		return fail(span, fmt.Errorf("delete %s: %w", path, docstore.ErrNotFound))
	}
	return nil
}

// Commit applies every write in b in one transaction.
func (s *Store) Commit(ctx context.Context, b *docstore.Batch) error {
	ctx, span := startSpan(ctx, "Commit", "BATCH")
	defer span.End()
	span.SetAttributes(attribute.Int("docstore.batch.size", b.Len()))

	if err := b.Validate(); err != nil {
		return fail(span, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fail(span, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	for _, op := range b.Ops {
		switch op.Kind {
		case docstore.OpSet:
			err = set(ctx, tx, op.Path, op.Data)
		case docstore.OpUpdate:
			err = update(ctx, tx, op.Path, op.Data)
		case docstore.OpDelete:
			_, err = tx.Exec(ctx, deleteDocument, op.Path)
		}
		if err != nil {
			return fail(span, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fail(span, fmt.Errorf("commit: %w", err))
	}
	return nil
}

func set(ctx context.Context, db execer, path string, data docstore.Data) error {
	coll, _, err := docstore.Split(path)
	if err != nil {
		return err
	}
	if data == nil {
		data = docstore.Data{}
	}
	if _, err := db.Exec(ctx, upsertDocument, path, coll, data); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

func update(ctx context.Context, db execer, path string, patch docstore.Data) error {
	if _, _, err := docstore.Split(path); err != nil {
		return err
	}
	if patch == nil {
		patch = docstore.Data{}
	}
	tag, err := db.Exec(ctx, mergeDocument, path, patch)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s: %w", path, docstore.ErrNotFound)
	}
	return nil
}

// OnChange delivers the current result of q to fn and redelivers whenever
// the collection changes, as reported by Listen.
func (s *Store) OnChange(ctx context.Context, q docstore.Query, fn func([]docstore.Doc)) (func(), error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	docs, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}

	sub := &subscription{q: q, fn: fn}
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	s.subMu.Unlock()

	sub.mu.Lock()
	fn(docs)
	sub.mu.Unlock()

	stopped := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(stopped)
		})
	}
	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				stop()
			case <-stopped:
			}
		}()
	}
	return stop, nil
}

// Listen holds a dedicated connection LISTENing for document changes and
// fans them out to subscribers until ctx is cancelled. A dropped connection
// is re-established and every subscriber is refreshed.
func (s *Store) Listen(ctx context.Context) {
	for {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Error(ctx, err, "document change listener stopped, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(listenBackoff):
		}
		s.dispatch(ctx, "")
	}
}

func (s *Store) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.logger.Info(ctx, "listening for document changes", "channel", notifyChannel)
	s.listeningOnce.Do(func() { close(s.listening) })

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		s.dispatch(ctx, n.Payload)
	}
}

// Listening is closed once the first LISTEN has been established.
func (s *Store) Listening() <-chan struct{} {
	return s.listening
}

// dispatch redelivers subscriptions on collection, or all of them when
// collection is empty.
func (s *Store) dispatch(ctx context.Context, collection string) {
	s.subMu.Lock()
	targets := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if collection == "" || sub.q.Collection == collection {
			targets = append(targets, sub)
		}
	}
	s.subMu.Unlock()

	for _, sub := range targets {
		s.deliver(ctx, sub)
	}
}

func (s *Store) deliver(ctx context.Context, sub *subscription) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	docs, err := s.query(ctx, sub.q)
	if err != nil {
		s.logger.Error(ctx, err, "refresh subscription failed", "collection", sub.q.Collection)
		return
	}
	sub.fn(docs)
}
