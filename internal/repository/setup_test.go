package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lawgate/consult-server-go/internal/database"
)

func setupTestStore(t *testing.T) *database.Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := database.ConnConfig{URL: url, ConnectTimeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	store := database.NewStore(database.PostgresOpener(cfg), database.Options{
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
	})
	ctx := context.Background()
	require.NoError(t, store.Connect(ctx))
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.RunWithRetry(ctx, func(ctx context.Context, q database.DBTX) error {
		_, err := q.ExecContext(ctx, `TRUNCATE consultations, clients RESTART IDENTITY`)
		return err
	}))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func strPtr(s string) *string {
	return &s
}
