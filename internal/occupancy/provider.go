package occupancy

import (
	"context"
	"time"
)

// Source abstracts a remote occupancy feed (e.g. the Kaohsiung open data API).
type Source interface {
	Name() string
	Fetch(ctx context.Context) (Document, error)
}

// Store is the contract the in-memory time series store must satisfy.
type Store interface {
	Ingest(raw []byte) (IngestResult, error)
	SnapshotAt(ts time.Time) []SnapshotEntry
	Range(stationNo string, start, end time.Time) []StationLog
	HourlyAverage(stationNo string) HourlyStats
	HourlyDelta(stationNo string) HourlyStats
	Stations() []StationSummary
	Location() *time.Location
}

// Archive keeps raw ingestion documents so the store can be rebuilt on boot.
type Archive interface {
	Save(ctx context.Context, name string, capturedAt time.Time, raw []byte) error
	// Each calls fn for every archived document in the order they were saved.
	Each(ctx context.Context, fn func(name string, raw []byte) error) error
}
