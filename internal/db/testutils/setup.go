package testutils

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// SetupTestDB connects to TEST_DATABASE_URL and recreates the schema. The test is
// skipped when the variable is unset. Tables are truncated and the pool closed on cleanup.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	config, err := pgxpool.ParseConfig(dbURL)
	require.NoError(t, err)

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	// Drop and recreate schema in a transaction
	tx, err := pool.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback(context.Background())

	_, err = tx.Exec(context.Background(), `DROP TABLE IF EXISTS node_records, scans CASCADE`)
	require.NoError(t, err)

	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		panic("Could not get caller information")
	}
	schemaPath := filepath.Join(filepath.Dir(currentFile), "..", "migrations", "0001_init.up.sql")
	schema, err := os.ReadFile(schemaPath)
	require.NoError(t, err)
	_, err = tx.Exec(context.Background(), string(schema))
	require.NoError(t, err)

	require.NoError(t, tx.Commit(context.Background()))

	t.Cleanup(func() {
		if _, err := pool.Exec(context.Background(), `TRUNCATE TABLE node_records, scans CASCADE`); err != nil {
			t.Errorf("Failed to truncate tables: %v", err)
		}
	})

	return pool
}
