// Package archive keeps the raw ingestion documents the store was built from,
// so a restarted process can replay them.
package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/i474232898/bike-occupancy/internal/occupancy"
)

// Backend is an occupancy.Archive holding resources that must be released.
type Backend interface {
	occupancy.Archive
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Backend is one of "dir", "sqlite", "postgres" or "none".
	Backend string
	// Dir is the dataset directory used by the "dir" backend.
	Dir string
	// DSN is the database location for the SQL backends.
	DSN string
}

// Open returns the configured backend, or nil for "none".
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "dir":
		return NewDir(cfg.Dir)
	case "sqlite", "sqlite3":
		return OpenSQL(ctx, DialectSQLite, cfg.DSN)
	case "postgres", "pgx":
		return OpenSQL(ctx, DialectPostgres, cfg.DSN)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("archive: unknown backend %q", cfg.Backend)
	}
}
