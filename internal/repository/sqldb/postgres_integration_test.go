//go:build integration

package sqldb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a disposable PostgreSQL container and returns its DSN.
func setupPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("inkwell"),
		postgres.WithUsername("inkwell"),
		postgres.WithPassword("inkwell"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	return dsn
}

func TestStoreContract_Postgres(t *testing.T) {
	dsn := setupPostgres(t)

	open := func(t *testing.T) *DB {
		t.Helper()
		db, err := Open(context.Background(), dsn, WithClock(newTestClock().Now))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		_, err = db.conn.Exec(`TRUNCATE post_tags, posts, tags, categories, users RESTART IDENTITY CASCADE`)
		require.NoError(t, err)
		return db
	}

	storeContract(t, open)
}

func TestOpen_PostgresEngine(t *testing.T) {
	db, err := Open(context.Background(), setupPostgres(t))
	require.NoError(t, err)
	defer db.Close()

	require.Equal(t, "postgres", db.Engine())
	require.NoError(t, db.Ping(context.Background()))
}
