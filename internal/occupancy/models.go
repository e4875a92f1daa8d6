package occupancy

import (
	"time"
)

// StationLog is one observation of a station: how many spaces were
// available at a point in time. Values are never mutated after creation.
type StationLog struct {
	Timestamp       time.Time `json:"timestamp"`
	AvailableSpaces int       `json:"available_spaces"`
}

// SnapshotEntry is a single station reading returned by a snapshot query.
type SnapshotEntry struct {
	StationNo       string    `json:"station_no"`
	AvailableSpaces int       `json:"available_spaces"`
	Timestamp       time.Time `json:"timestamp"`
}

// StationSummary describes the series held for one station.
type StationSummary struct {
	StationNo string    `json:"station_no"`
	Logs      int       `json:"logs"`
	First     time.Time `json:"first"`
	Last      time.Time `json:"last"`
}

// HourlyStats maps hour-of-day (0-23) to an aggregated value.
// Hours without data are absent rather than zero.
type HourlyStats map[int]float64

// Reading is a station entry of an ingestion batch that passed presence checks.
type Reading struct {
	StationNo       string
	AvailableSpaces int
}

// Batch is a parsed ingestion document: one capture timestamp shared by all readings.
type Batch struct {
	Timestamp time.Time
	Readings  []Reading

	// Skipped counts station entries dropped for missing station_no or available_spaces.
	Skipped int
}

// IngestResult reports what a single ingestion call did.
type IngestResult struct {
	Timestamp time.Time `json:"timestamp"`
	Accepted  int       `json:"accepted"`
	Skipped   int       `json:"skipped"`
}

// Document is the JSON shape of an ingestion batch as produced by feed sources.
// Station entries may carry extra fields; ingestion only reads station_no and
// available_spaces.
type Document struct {
	Timestamp string            `json:"timestamp"`
	Stations  []DocumentStation `json:"stations"`
}

// DocumentStation is one station entry of a Document.
type DocumentStation struct {
	StationNo             string         `json:"station_no"`
	ParkingSpaces         int            `json:"parking_spaces"`
	AvailableSpaces       int            `json:"available_spaces"`
	AvailableSpacesDetail map[string]int `json:"available_spaces_detail,omitempty"`
	EmptySpaces           int            `json:"empty_spaces"`
	ForbiddenSpaces       int            `json:"forbidden_spaces"`
	AvailableSpacesLevel  int            `json:"available_spaces_level"`
}
