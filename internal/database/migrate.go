package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SchemaStatus describes the applied schema version.
type SchemaStatus struct {
	Version int64
	Pending bool
}

func newProvider(db *sql.DB) (*goose.Provider, error) {
	fsys, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}

// Migrate applies every pending migration and returns how many ran.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	provider, err := newProvider(db)
	if err != nil {
		return 0, err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("failed to apply migrations: %w", err)
	}
	return len(results), nil
}

// Status reports the current schema version and whether migrations are pending.
func Status(ctx context.Context, db *sql.DB) (SchemaStatus, error) {
	provider, err := newProvider(db)
	if err != nil {
		return SchemaStatus{}, err
	}
	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("failed to read schema version: %w", err)
	}
	pending, err := provider.HasPending(ctx)
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("failed to check pending migrations: %w", err)
	}
	return SchemaStatus{Version: version, Pending: pending}, nil
}
