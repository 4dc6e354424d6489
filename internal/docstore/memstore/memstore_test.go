package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linnemanlabs/breezecue/internal/docstore"
	"github.com/linnemanlabs/breezecue/internal/docstore/docstoretest"
)

func TestStore(t *testing.T) {
	t.Parallel()
	docstoretest.Run(t, "", func(*testing.T) docstore.Store { return New(nil) })
}

func TestGetDoc_ReturnsCopy(t *testing.T) {
	t.Parallel()
	s := New(nil)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "users/u1", docstore.Data{"tags": []any{"a"}}))
	d, _, err := s.GetDoc(ctx, "users/u1")
	require.NoError(t, err)
	d.Data["tags"].([]any)[0] = "mutated"
	d.Data["extra"] = 1

	again, _, err := s.GetDoc(ctx, "users/u1")
	require.NoError(t, err)
	assert.Equal(t, docstore.Data{"tags": []any{"a"}}, again.Data)
}

func TestSet_UsesClock(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s := New(clockwork.NewFakeClockAt(at))

	require.NoError(t, s.Set(context.Background(), "users/u1", docstore.Data{}))
	d, _, err := s.GetDoc(context.Background(), "users/u1")
	require.NoError(t, err)
	assert.Equal(t, at, d.UpdatedAt)
}

func TestOnChange_ContextCancelUnsubscribes(t *testing.T) {
	t.Parallel()
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())

	calls := make(chan int, 8)
	_, err := s.OnChange(ctx, docstore.Collection("campaigns"), func(docs []docstore.Doc) {
		calls <- len(docs)
	})
	require.NoError(t, err)
	assert.Equal(t, 0, <-calls)

	cancel()
	require.Eventually(t, func() bool {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		return len(s.subs) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Set(context.Background(), "campaigns/c1", docstore.Data{}))
	assert.Empty(t, calls)
}

func TestOnChange_OnlyMatchingCollection(t *testing.T) {
	t.Parallel()
	s := New(nil)
	ctx := context.Background()

	calls := make(chan int, 8)
	stop, err := s.OnChange(ctx, docstore.Collection("users/u1/playbooks"), func(docs []docstore.Doc) {
		calls <- len(docs)
	})
	require.NoError(t, err)
	defer stop()
	<-calls

	require.NoError(t, s.Set(ctx, "campaigns/c1", docstore.Data{}))
	require.NoError(t, s.Set(ctx, "users/u1", docstore.Data{}))
	assert.Empty(t, calls)

	require.NoError(t, s.Set(ctx, "users/u1/playbooks/p1", docstore.Data{}))
	assert.Equal(t, 1, <-calls)
}
