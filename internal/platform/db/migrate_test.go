package db

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/lumen?sslmode=disable", migrateURL("postgres://u:p@db:5432/lumen?sslmode=disable"))
	assert.Equal(t, "pgx5://u@db/lumen", migrateURL("postgresql://u@db/lumen"))
	assert.Equal(t, "pgx5://already", migrateURL("pgx5://already"))
}

func TestMigrateAgainstPostgres(t *testing.T) {
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("lumen_test"),
		postgres.WithUsername("lumen"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	require.NoError(t, Migrate(dsn, logger))
	// Second run is a no-op.
	require.NoError(t, Migrate(dsn, logger))

	pool, err := New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	for _, table := range []string{"users", "sessions", "audit_logs", "courses", "enrollments"} {
		var exists bool
		err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}
}
