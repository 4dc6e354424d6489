package pgstore_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/breezecue/internal/docstore"
	"github.com/linnemanlabs/breezecue/internal/docstore/docstoretest"
	"github.com/linnemanlabs/breezecue/internal/docstore/pgstore"
	"github.com/linnemanlabs/breezecue/internal/postgres"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("BREEZECUE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BREEZECUE_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	pool, err := postgres.NewPool(ctx, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s, err := pgstore.New(ctx, pool, log.Nop())
	require.NoError(t, err)
	go s.Listen(ctx)
	select {
	case <-s.Listening():
	case <-time.After(10 * time.Second):
		t.Fatal("listener did not start")
	}
	return s
}

func TestStore(t *testing.T) {
	s := openStore(t)
	prefix := "t" + strings.ToLower(docstore.NewID()) + "_"
	docstoretest.Run(t, prefix, func(*testing.T) docstore.Store { return s })
}
