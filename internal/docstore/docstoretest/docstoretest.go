// Package docstoretest holds behaviour tests shared by every docstore.Store
// backend.
package docstoretest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linnemanlabs/breezecue/internal/docstore"
)

// Run exercises a Store implementation. newStore must return an empty store
// or one whose collections do not collide with prefix.
func Run(t *testing.T, prefix string, newStore func(t *testing.T) docstore.Store) {
	t.Helper()

	t.Run("SetGetDoc", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		path := docstore.Join(prefix+"users", "u1")

		require.NoError(t, s.Set(ctx, path, docstore.Data{"email": "a@b.test", "n": 1}))

		d, ok, err := s.GetDoc(ctx, path)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "a@b.test", d.Data["email"])
		assert.InDelta(t, 1, d.Data["n"], 0)
		assert.Equal(t, "u1", d.ID())
		assert.False(t, d.UpdatedAt.IsZero())

		_, ok, err = s.GetDoc(ctx, docstore.Join(prefix+"users", "missing"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("UpdateMerges", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		path := docstore.Join(prefix+"users", "u2")

		require.NoError(t, s.Set(ctx, path, docstore.Data{"a": "1", "b": "2"}))
		require.NoError(t, s.Update(ctx, path, docstore.Data{"b": "3", "c": true}))

		d, _, err := s.GetDoc(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, docstore.Data{"a": "1", "b": "3", "c": true}, d.Data)
	})

	t.Run("UpdateDeleteMissing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		path := docstore.Join(prefix+"users", "ghost")

		require.ErrorIs(t, s.Update(ctx, path, docstore.Data{"x": 1}), docstore.ErrNotFound)
		require.ErrorIs(t, s.Delete(ctx, path), docstore.ErrNotFound)
	})

	t.Run("InvalidPath", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.ErrorIs(t, s.Set(ctx, prefix+"users", docstore.Data{}), docstore.ErrInvalidPath)
		_, _, err := s.GetDoc(ctx, "a//b")
		require.ErrorIs(t, err, docstore.ErrInvalidPath)
	})

	t.Run("QueryFilterOrderLimit", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		coll := prefix + "campaigns"
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		for i, uid := range []string{"u1", "u2", "u1", "u1"} {
			require.NoError(t, s.Set(ctx, docstore.Join(coll, docstore.NewID()), docstore.Data{
				"uid":       uid,
				"seq":       i,
				"createdAt": base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339Nano),
			}))
		}

		q := docstore.Collection(coll).Eq("uid", "u1").Order("createdAt", true)
		docs, err := s.Get(ctx, q)
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.InDelta(t, 3, docs[0].Data["seq"], 0)
		assert.InDelta(t, 2, docs[1].Data["seq"], 0)
		assert.InDelta(t, 0, docs[2].Data["seq"], 0)

		docs, err = s.Get(ctx, q.Take(1))
		require.NoError(t, err)
		require.Len(t, docs, 1)

		docs, err = s.Get(ctx, docstore.Collection(coll).Eq("uid", "nobody"))
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("SubcollectionsAreSeparate", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, docstore.Join(prefix+"users", "u1"), docstore.Data{"k": "user"}))
		require.NoError(t, s.Set(ctx, docstore.Join(prefix+"users", "u1", "playbooks", "p1"), docstore.Data{"k": "pb"}))

		docs, err := s.Get(ctx, docstore.Collection(docstore.Join(prefix+"users", "u1", "playbooks")))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "pb", docs[0].Data["k"])
	})

	t.Run("CommitAllOrNothing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		coll := prefix + "pb"
		keep := docstore.Join(coll, "keep")
		require.NoError(t, s.Set(ctx, keep, docstore.Data{"v": "orig"}))

		b := docstore.NewBatch().
			Delete(keep).
			Set(docstore.Join(coll, "new"), docstore.Data{"v": "new"}).
			Update(docstore.Join(coll, "missing"), docstore.Data{"v": "x"})
		require.ErrorIs(t, s.Commit(ctx, b), docstore.ErrNotFound)

		d, ok, err := s.GetDoc(ctx, keep)
		require.NoError(t, err)
		require.True(t, ok, "failed batch must not delete")
		assert.Equal(t, "orig", d.Data["v"])
		_, ok, err = s.GetDoc(ctx, docstore.Join(coll, "new"))
		require.NoError(t, err)
		assert.False(t, ok, "failed batch must not insert")

		ok2 := docstore.NewBatch().
			Delete(keep).
			Set(docstore.Join(coll, "a"), docstore.Data{"v": "a"}).
			Update(docstore.Join(coll, "a"), docstore.Data{"w": "b"})
		require.NoError(t, s.Commit(ctx, ok2))

		docs, err := s.Get(ctx, docstore.Collection(coll))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, docstore.Data{"v": "a", "w": "b"}, docs[0].Data)
	})

	t.Run("OnChange", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		coll := prefix + "watched"

		var mu sync.Mutex
		var seen [][]docstore.Doc
		updates := make(chan struct{}, 16)
		stop, err := s.OnChange(ctx, docstore.Collection(coll).Eq("uid", "u1"), func(docs []docstore.Doc) {
			mu.Lock()
			seen = append(seen, docs)
			mu.Unlock()
			updates <- struct{}{}
		})
		require.NoError(t, err)
		waitUpdate(t, updates)

		require.NoError(t, s.Set(ctx, docstore.Join(coll, "c1"), docstore.Data{"uid": "u1"}))
		waitFor(t, updates, &mu, func() bool { return len(seen[len(seen)-1]) == 1 })

		stop()
		stop()
		require.NoError(t, s.Set(ctx, docstore.Join(coll, "c2"), docstore.Data{"uid": "u1"}))

		select {
		case <-updates:
			mu.Lock()
			last := seen[len(seen)-1]
			mu.Unlock()
			assert.Less(t, len(last), 2, "no delivery expected after unsubscribe")
		case <-time.After(200 * time.Millisecond):
		}
	})
}

func waitUpdate(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}

func waitFor(t *testing.T, ch <-chan struct{}, mu *sync.Mutex, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-ch:
			mu.Lock()
			ok := cond()
			mu.Unlock()
			if ok {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for change notification")
		}
	}
}
