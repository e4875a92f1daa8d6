package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/klauspost/compress/zstd"
	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultMaxOpenConns = 25
	defaultMaxIdleConns = 5
	defaultConnLifetime = time.Hour
	defaultPingTimeout  = 5 * time.Second
)

// Dialect holds the driver specific bits of the SQL archive.
type Dialect struct {
	Name        string
	Driver      string
	CreateTable string
	Insert      string
}

var (
	DialectSQLite = Dialect{
		Name:   "sqlite",
		Driver: "sqlite3",
		CreateTable: `CREATE TABLE IF NOT EXISTS raw_documents (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT NOT NULL,
			captured_at TEXT NOT NULL,
			payload     BLOB NOT NULL,
			created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)`,
		Insert: `INSERT INTO raw_documents (name, captured_at, payload) VALUES (?, ?, ?)`,
	}

	DialectPostgres = Dialect{
		Name:   "postgres",
		Driver: "pgx",
		CreateTable: `CREATE TABLE IF NOT EXISTS raw_documents (
			id          BIGSERIAL PRIMARY KEY,
			name        TEXT NOT NULL,
			captured_at TEXT NOT NULL,
			payload     BYTEA NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		Insert: `INSERT INTO raw_documents (name, captured_at, payload) VALUES ($1, $2, $3)`,
	}
)

const selectDocumentsSQL = `SELECT name, payload FROM raw_documents ORDER BY id`

// SQL archives zstd compressed documents in a raw_documents table.
type SQL struct {
	db      *sql.DB
	dialect Dialect
	enc     *zstd.Encoder
	dec     *zstd.Decoder
}

// OpenSQL connects, validates the connection and creates the table if needed.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQL, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("archive: empty DSN")
	}
	if dialect.Name == DialectSQLite.Name {
		var err error
		if dsn, err = sqliteDSN(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", dialect.Name, err)
	}

	if dialect.Name == DialectSQLite.Name {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(defaultMaxOpenConns)
		db.SetMaxIdleConns(defaultMaxIdleConns)
		db.SetConnMaxLifetime(defaultConnLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: ping %s: %w", dialect.Name, err)
	}

	if _, err := db.ExecContext(ctx, dialect.CreateTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: create table: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("archive: zstd decoder: %w", err)
	}

	return &SQL{db: db, dialect: dialect, enc: enc, dec: dec}, nil
}

// sqliteDSN turns a plain file path into a DSN with WAL and a busy timeout.
func sqliteDSN(path string) (string, error) {
	if strings.HasPrefix(path, "file:") || strings.Contains(path, "?") {
		return path, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("archive: mkdir %s: %w", dir, err)
		}
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path), nil
}

func (s *SQL) Save(ctx context.Context, name string, capturedAt time.Time, raw []byte) error {
	payload := s.enc.EncodeAll(raw, nil)
	_, err := s.db.ExecContext(ctx, s.dialect.Insert,
		name,
		capturedAt.UTC().Format(time.RFC3339Nano),
		payload,
	)
	if err != nil {
		return fmt.Errorf("archive: insert %s: %w", name, err)
	}
	return nil
}

func (s *SQL) Each(ctx context.Context, fn func(name string, raw []byte) error) error {
	rows, err := s.db.QueryContext(ctx, selectDocumentsSQL)
	if err != nil {
		return fmt.Errorf("archive: query documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name    string
			payload []byte
		)
		if err := rows.Scan(&name, &payload); err != nil {
			return fmt.Errorf("archive: scan document: %w", err)
		}
		raw, err := s.dec.DecodeAll(payload, nil)
		if err != nil {
			return fmt.Errorf("archive: decompress %s: %w", name, err)
		}
		if err := fn(name, raw); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQL) Close() error {
	s.dec.Close()
	encErr := s.enc.Close()
	return errors.Join(s.db.Close(), encErr)
}
