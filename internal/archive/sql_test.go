package archive

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func openSQLite(t *testing.T) *SQL {
	t.Helper()
	s, err := OpenSQL(context.Background(), DialectSQLite, filepath.Join(t.TempDir(), "archive", "raw.db"))
	if err != nil {
		if strings.Contains(err.Error(), "CGO_ENABLED") || strings.Contains(err.Error(), "cgo") {
			t.Skipf("sqlite driver unavailable: %v", err)
		}
		t.Fatalf("OpenSQL: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLRoundTrip(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	docs := []string{
		`{"timestamp":"2025-12-03T15:04:05","stations":[{"station_no":"A","available_spaces":1}]}`,
		`{"timestamp":"2025-12-03T15:05:05","stations":[]}`,
	}
	for i, d := range docs {
		if err := s.Save(ctx, []string{"first", "second"}[i], time.Now(), []byte(d)); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	names, got := collect(t, s)
	if want := []string{"first", "second"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	if !reflect.DeepEqual(got, docs) {
		t.Fatalf("docs = %v, want %v", got, docs)
	}
}

func TestSQLStoresCompressedPayload(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	raw := []byte(`{"timestamp":"2025-12-03T15:04:05","stations":[` +
		strings.Repeat(`{"station_no":"501201001","available_spaces":1},`, 200) +
		`{"station_no":"501201001","available_spaces":1}]}`)
	if err := s.Save(ctx, "big", time.Now(), raw); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var stored int
	if err := s.db.QueryRowContext(ctx, `SELECT length(payload) FROM raw_documents`).Scan(&stored); err != nil {
		t.Fatalf("query: %v", err)
	}
	if stored >= len(raw) {
		t.Fatalf("payload not compressed: stored %d bytes for %d raw", stored, len(raw))
	}
}

func TestOpenSQLEmptyDSN(t *testing.T) {
	if _, err := OpenSQL(context.Background(), DialectPostgres, " "); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
