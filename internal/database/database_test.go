package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")

	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()

	status, err := Status(ctx, db)
	require.NoError(t, err)
	assert.True(t, status.Pending)

	applied, err := Migrate(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	applied, err = Migrate(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, applied, "second run should be a no-op")

	status, err = Status(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.Version)
	assert.False(t, status.Pending)

	for _, table := range []string{"users", "refresh_tokens", "user_statements", "analyses", "linked_items"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, table)
	}

	assert.NoError(t, HealthCheck(db))
}

func TestOpenInMemory(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = Migrate(context.Background(), db)
	require.NoError(t, err)

	_, err = db.Exec("INSERT INTO users (id, email, password_hash, created_at) VALUES ('u1', 'a@b.co', 'x', '2024')")
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users").Scan(&n))
	assert.Equal(t, 1, n)
}
