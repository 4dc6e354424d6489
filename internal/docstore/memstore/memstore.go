// Package memstore provides an in-memory implementation of docstore.Store.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/linnemanlabs/breezecue/internal/docstore"
)

// Store holds documents in memory. Suitable for dev/testing.
type Store struct {
	clock clockwork.Clock

	mu   sync.RWMutex
	docs map[string]docstore.Doc // path -> doc

	subMu   sync.Mutex
	subs    map[int]*subscription
	nextSub int
}

type subscription struct {
	q  docstore.Query
	fn func([]docstore.Doc)
	mu sync.Mutex // serializes deliveries so each sees current state
}

// New initializes a new in-memory Store.
func New(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock: clock,
		docs:  make(map[string]docstore.Doc),
		subs:  make(map[int]*subscription),
	}
}

// Get returns copies of the documents matching q.
func (s *Store) Get(_ context.Context, q docstore.Query) ([]docstore.Doc, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return s.query(q), nil
}

func (s *Store) query(q docstore.Query) []docstore.Doc {
	s.mu.RLock()
	out := make([]docstore.Doc, 0)
	for path, d := range s.docs {
		if q.Matches(path, d.Data) {
			out = append(out, copyDoc(d))
		}
	}
	s.mu.RUnlock()
	return q.Apply(out)
}

// GetDoc returns a copy of the document at path.
func (s *Store) GetDoc(_ context.Context, path string) (docstore.Doc, bool, error) {
	if _, _, err := docstore.Split(path); err != nil {
		return docstore.Doc{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[path]
	if !ok {
		return docstore.Doc{}, false, nil
	}
	return copyDoc(d), true, nil
}

// Set stores a copy of data at path, replacing any existing document.
func (s *Store) Set(ctx context.Context, path string, data docstore.Data) error {
	return s.Commit(ctx, docstore.NewBatch().Set(path, data))
}

// Update merges patch into the document at path.
func (s *Store) Update(ctx context.Context, path string, patch docstore.Data) error {
	return s.Commit(ctx, docstore.NewBatch().Update(path, patch))
}

// Delete removes the document at path.
func (s *Store) Delete(ctx context.Context, path string) error {
	if _, _, err := docstore.Split(path); err != nil {
		return err
	}
	s.mu.Lock()
	if _, ok := s.docs[path]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("delete %s: %w", path, docstore.ErrNotFound)
	}
	delete(s.docs, path)
	s.mu.Unlock()

	s.notify(map[string]struct{}{collectionOf(path): {}})
	return nil
}

// Commit applies every write in b or none of them.
func (s *Store) Commit(_ context.Context, b *docstore.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	now := s.clock.Now()
	staged := make(map[string]*docstore.Doc, b.Len())
	lookup := func(path string) (*docstore.Doc, bool) {
		if d, ok := staged[path]; ok {
			return d, d != nil
		}
		d, ok := s.docs[path]
		if !ok {
			return nil, false
		}
		return &d, true
	}

	for _, op := range b.Ops {
		switch op.Kind {
		case docstore.OpSet:
			staged[op.Path] = &docstore.Doc{Path: op.Path, Data: docstore.Clone(op.Data), UpdatedAt: now}
		case docstore.OpUpdate:
			cur, ok := lookup(op.Path)
			if !ok {
				s.mu.Unlock()
				return fmt.Errorf("update %s: %w", op.Path, docstore.ErrNotFound)
			}
			merged := docstore.Merge(cur.Data, docstore.Clone(op.Data))
			staged[op.Path] = &docstore.Doc{Path: op.Path, Data: merged, UpdatedAt: now}
		case docstore.OpDelete:
			staged[op.Path] = nil
		}
	}

	changed := make(map[string]struct{}, len(staged))
	for path, d := range staged {
		if d == nil {
			delete(s.docs, path)
		} else {
			s.docs[path] = *d
		}
		changed[collectionOf(path)] = struct{}{}
	}
	s.mu.Unlock()

	s.notify(changed)
	return nil
}

// OnChange delivers the current result of q to fn, then redelivers after
// every write touching q's collection.
func (s *Store) OnChange(ctx context.Context, q docstore.Query, fn func([]docstore.Doc)) (func(), error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	sub := &subscription{q: q, fn: fn}

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	s.subMu.Unlock()

	s.deliver(sub)

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

func (s *Store) notify(collections map[string]struct{}) {
	s.subMu.Lock()
	targets := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if _, ok := collections[sub.q.Collection]; ok {
			targets = append(targets, sub)
		}
	}
	s.subMu.Unlock()

	for _, sub := range targets {
		s.deliver(sub)
	}
}

func (s *Store) deliver(sub *subscription) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.fn(s.query(sub.q))
}

func collectionOf(path string) string {
	c, _, _ := docstore.Split(path)
	return c
}

func copyDoc(d docstore.Doc) docstore.Doc {
	d.Data = docstore.Clone(d.Data)
	return d
}
