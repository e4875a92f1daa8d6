package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const samplePayload = `{
	"data": {
		"data": {
			"updated_at": "2025-12-03 15:04:05",
			"retVal": [
				{"sno": "501201001", "tot": "20", "sbi": "5", "bemp": "15", "sbi_detail": {"yb2": 3, "eyb": 2}},
				{"sno": "501201002", "tot": 0, "sbi": 0, "bemp": 0},
				{"sno": "501201003", "tot": 8, "sbi": 1, "bemp": "7", "sbi_detail": {"yb2": "1", "eyb": ""}}
			]
		}
	}
}`

func newTestSource(url string) *KCGSource {
	src := NewKCGSource(&http.Client{Timeout: 2 * time.Second}, url, time.FixedZone("CST", 8*3600))
	src.httpCfg.Backoff = BackoffConfig{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
	return src
}

func TestKCGSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("missing User-Agent header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	doc, err := newTestSource(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if doc.Timestamp != "2025-12-03T15:04:05+08:00" {
		t.Fatalf("timestamp = %q", doc.Timestamp)
	}
	if len(doc.Stations) != 3 {
		t.Fatalf("expected 3 stations, got %d", len(doc.Stations))
	}

	first := doc.Stations[0]
	if first.StationNo != "501201001" || first.AvailableSpaces != 5 || first.ParkingSpaces != 20 ||
		first.EmptySpaces != 15 || first.AvailableSpacesLevel != 25 {
		t.Fatalf("unexpected first station: %+v", first)
	}
	if first.AvailableSpacesDetail["yb2"] != 3 || first.AvailableSpacesDetail["eyb"] != 2 {
		t.Fatalf("unexpected detail: %+v", first.AvailableSpacesDetail)
	}
	if doc.Stations[1].AvailableSpacesLevel != 0 {
		t.Fatalf("zero capacity station must have level 0, got %d", doc.Stations[1].AvailableSpacesLevel)
	}
	// 1/8 = 12.5% rounds half to even.
	if doc.Stations[2].AvailableSpacesLevel != 12 {
		t.Fatalf("level = %d, want 12", doc.Stations[2].AvailableSpacesLevel)
	}
}

func TestKCGSourceFallsBackToFetchTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"data": {"retVal": []}}}`))
	}))
	defer srv.Close()

	src := newTestSource(srv.URL)
	fixed := time.Date(2025, 12, 3, 7, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return fixed }

	doc, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if doc.Timestamp != "2025-12-03T15:00:00+08:00" {
		t.Fatalf("timestamp = %q", doc.Timestamp)
	}
}

func TestKCGSourceMissingRetVal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {}}`))
	}))
	defer srv.Close()

	_, err := newTestSource(srv.URL).Fetch(context.Background())
	if !errors.Is(err, errMissingRetVal) {
		t.Fatalf("expected errMissingRetVal, got %v", err)
	}
}

func TestKCGSourceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	if _, err := newTestSource(srv.URL).Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestKCGSourceGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestSource(srv.URL).Fetch(context.Background())
	if !errors.Is(err, errRateLimited) {
		t.Fatalf("expected errRateLimited, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 1 call plus 2 retries, got %d", calls.Load())
	}
}

func TestKCGSourceDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestSource(srv.URL).Fetch(context.Background())
	if !errors.Is(err, errUnexpected) {
		t.Fatalf("expected errUnexpected, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}
