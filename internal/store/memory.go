package store

import (
	"sort"
	"sync"
	"time"

	"github.com/i474232898/bike-occupancy/internal/occupancy"
)

// MemoryStore is a concurrency-safe in-memory time series of station logs.
//
// All mutations go through a single writer lock and a whole batch is appended
// under it, so readers see either none or all of a batch. Each series is kept
// in chronological order: logs are inserted at their sorted position, after
// any log with an equal timestamp.
type MemoryStore struct {
	mu sync.RWMutex

	// key: station_no, value: chronologically ordered logs
	series map[string][]occupancy.StationLog
	// station identifiers in first-ingestion order
	order []string

	loc *time.Location
}

// NewMemoryStore creates an empty store normalizing timestamps into loc.
// A nil loc means UTC.
func NewMemoryStore(loc *time.Location) *MemoryStore {
	if loc == nil {
		loc = time.UTC
	}
	return &MemoryStore{
		series: make(map[string][]occupancy.StationLog),
		loc:    loc,
	}
}

// Location returns the zone stored timestamps are normalized into.
func (s *MemoryStore) Location() *time.Location {
	return s.loc
}

// Ingest parses a raw ingestion document and appends one log per valid
// station entry. A malformed document leaves the store untouched.
func (s *MemoryStore) Ingest(raw []byte) (occupancy.IngestResult, error) {
	batch, err := occupancy.ParseBatch(raw, s.loc)
	if err != nil {
		return occupancy.IngestResult{}, err
	}
	return s.Append(batch), nil
}

// Append adds an already parsed batch to the store.
func (s *MemoryStore) Append(batch occupancy.Batch) occupancy.IngestResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range batch.Readings {
		s.insert(r.StationNo, occupancy.StationLog{
			Timestamp:       batch.Timestamp,
			AvailableSpaces: r.AvailableSpaces,
		})
	}

	return occupancy.IngestResult{
		Timestamp: batch.Timestamp,
		Accepted:  len(batch.Readings),
		Skipped:   batch.Skipped,
	}
}

// insert places log after every existing log whose timestamp is not later.
// Callers must hold s.mu for writing.
func (s *MemoryStore) insert(stationNo string, log occupancy.StationLog) {
	logs, ok := s.series[stationNo]
	if !ok {
		s.order = append(s.order, stationNo)
	}

	i := sort.Search(len(logs), func(i int) bool {
		return logs[i].Timestamp.After(log.Timestamp)
	})
	if i == len(logs) {
		s.series[stationNo] = append(logs, log)
		return
	}

	logs = append(logs, occupancy.StationLog{})
	copy(logs[i+1:], logs[i:])
	logs[i] = log
	s.series[stationNo] = logs
}

// SnapshotAt returns every reading captured at ts, compared at second precision.
func (s *MemoryStore) SnapshotAt(ts time.Time) []occupancy.SnapshotEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []occupancy.SnapshotEntry{}
	for _, stationNo := range s.order {
		for _, log := range s.series[stationNo] {
			if occupancy.SameSecond(log.Timestamp, ts) {
				result = append(result, occupancy.SnapshotEntry{
					StationNo:       stationNo,
					AvailableSpaces: log.AvailableSpaces,
					Timestamp:       log.Timestamp,
				})
			}
		}
	}
	return result
}

// Range returns all logs of a station between start and end (inclusive).
// An unknown station yields an empty result.
func (s *MemoryStore) Range(stationNo string, start, end time.Time) []occupancy.StationLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []occupancy.StationLog{}
	for _, log := range s.series[stationNo] {
		if (log.Timestamp.Equal(start) || log.Timestamp.After(start)) &&
			(log.Timestamp.Equal(end) || log.Timestamp.Before(end)) {
			result = append(result, log)
		}
	}
	return result
}

// HourlyAverage returns the mean available spaces per hour-of-day for a station.
func (s *MemoryStore) HourlyAverage(stationNo string) occupancy.HourlyStats {
	return occupancy.HourlyAverage(s.logs(stationNo))
}

// HourlyDelta returns the summed per-hour flow for a station.
func (s *MemoryStore) HourlyDelta(stationNo string) occupancy.HourlyStats {
	return occupancy.HourlyDelta(s.logs(stationNo))
}

// Stations lists every known station in first-ingestion order.
func (s *MemoryStore) Stations() []occupancy.StationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]occupancy.StationSummary, 0, len(s.order))
	for _, stationNo := range s.order {
		logs := s.series[stationNo]
		out = append(out, occupancy.StationSummary{
			StationNo: stationNo,
			Logs:      len(logs),
			First:     logs[0].Timestamp,
			Last:      logs[len(logs)-1].Timestamp,
		})
	}
	return out
}

// logs returns a copy of a station's series so aggregation runs without the lock.
func (s *MemoryStore) logs(stationNo string) []occupancy.StationLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := s.series[stationNo]
	if len(logs) == 0 {
		return nil
	}
	out := make([]occupancy.StationLog, len(logs))
	copy(out, logs)
	return out
}
