package occupancy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service orchestrates feed sources, the archive and the store.
type Service struct {
	store   Store
	sources []Source
	archive Archive
	logger  *zap.Logger
	now     func() time.Time

	// mu orders ingestion with the save stamps handed out for the archive.
	mu        sync.Mutex
	lastStamp time.Time
	lastFeed  map[string]time.Time
}

// archiveStampLayout sorts lexically in chronological order.
const archiveStampLayout = "20060102T150405.000000000"

// UploadResult describes an accepted document.
type UploadResult struct {
	IngestResult
	// Saved is the archive name of the document; empty when archiving failed
	// or no archive is configured.
	Saved string `json:"saved"`
}

// ReplayResult summarizes a replay of the archive into the store.
type ReplayResult struct {
	Documents int `json:"documents"`
	Failed    int `json:"failed"`
	Logs      int `json:"logs"`
}

// NewService creates a new Service. archive may be nil.
func NewService(store Store, sources []Source, archive Archive, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		sources:  sources,
		archive:  archive,
		logger:   logger,
		now:      time.Now,
		lastFeed: make(map[string]time.Time),
	}
}

// Upload ingests a raw document delivered by origin (http, mqtt, ...) and
// archives it once it has been accepted.
func (s *Service) Upload(ctx context.Context, origin string, raw []byte) (UploadResult, error) {
	res, stamp, err := s.ingest(raw)
	if err != nil {
		s.logger.Warn("rejected document", zap.String("origin", origin), zap.Error(err))
		return UploadResult{}, err
	}
	s.logger.Debug("ingested document",
		zap.String("origin", origin),
		zap.Time("timestamp", res.Timestamp),
		zap.Int("accepted", res.Accepted),
		zap.Int("skipped", res.Skipped),
	)

	name := fmt.Sprintf("%s_%s_%s", stamp, origin, uuid.NewString())
	return UploadResult{IngestResult: res, Saved: s.save(ctx, name, res.Timestamp, raw)}, nil
}

// FetchAndIngest pulls a document from every source concurrently and ingests
// each one. It fails only when no source succeeded.
func (s *Service) FetchAndIngest(ctx context.Context) error {
	if len(s.sources) == 0 {
		s.logger.Error("no feed sources configured")
		return fmt.Errorf("no feed sources configured")
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, src := range s.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := s.fetchOne(ctx, src); err != nil {
				s.logger.Warn("feed fetch failed", zap.String("source", src.Name()), zap.Error(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(errs) == len(s.sources) {
		return errors.Join(errs...)
	}
	return nil
}

func (s *Service) fetchOne(ctx context.Context, src Source) error {
	doc, err := src.Fetch(ctx)
	if err != nil {
		return err
	}
	if ts, err := ParseTimestamp(doc.Timestamp, s.store.Location()); err == nil && s.feedSeen(src.Name(), ts) {
		s.logger.Debug("feed unchanged since last fetch",
			zap.String("source", src.Name()),
			zap.Time("timestamp", ts),
		)
		return nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	res, stamp, err := s.ingest(raw)
	if err != nil {
		return err
	}
	s.markFeed(src.Name(), res.Timestamp)
	s.logger.Info("ingested feed document",
		zap.String("source", src.Name()),
		zap.Time("timestamp", res.Timestamp),
		zap.Int("accepted", res.Accepted),
		zap.Int("skipped", res.Skipped),
	)

	name := fmt.Sprintf("%s_%s", stamp, feedName(src.Name(), res.Timestamp))
	s.save(ctx, name, res.Timestamp, raw)
	return nil
}

// ingest stores raw and returns a save stamp that sorts after every stamp
// handed out for earlier documents.
func (s *Service) ingest(raw []byte) (IngestResult, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.store.Ingest(raw)
	if err != nil {
		return IngestResult{}, "", err
	}

	stamp := s.now().UTC()
	if !stamp.After(s.lastStamp) {
		stamp = s.lastStamp.Add(time.Nanosecond)
	}
	s.lastStamp = stamp
	return res, stamp.Format(archiveStampLayout), nil
}

func feedName(source string, ts time.Time) string {
	return fmt.Sprintf("feed_%s_%s", source, ts.Format("20060102T150405"))
}

// feedSeen reports whether ts is the last document timestamp ingested from source.
func (s *Service) feedSeen(source string, ts time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastFeed[source]
	return ok && last.Equal(ts)
}

func (s *Service) markFeed(source string, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastFeed[source]; !ok || ts.After(last) {
		s.lastFeed[source] = ts
	}
}

func (s *Service) save(ctx context.Context, name string, capturedAt time.Time, raw []byte) string {
	if s.archive == nil {
		return ""
	}
	if err := s.archive.Save(ctx, name, capturedAt, raw); err != nil {
		s.logger.Error("archive save failed", zap.String("name", name), zap.Error(err))
		return ""
	}
	return name
}

// Replay feeds every archived document back into the store. Documents that
// fail to ingest are logged and counted; replay carries on with the rest.
func (s *Service) Replay(ctx context.Context) (ReplayResult, error) {
	var out ReplayResult
	if s.archive == nil {
		return out, nil
	}

	err := s.archive.Each(ctx, func(name string, raw []byte) error {
		out.Documents++
		res, err := s.store.Ingest(raw)
		if err != nil {
			out.Failed++
			s.logger.Warn("skipping archived document", zap.String("name", name), zap.Error(err))
			return nil
		}
		out.Logs += res.Accepted
		for _, src := range s.sources {
			if strings.Contains(name, "_feed_"+src.Name()+"_") {
				s.markFeed(src.Name(), res.Timestamp)
			}
		}
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("replay archive: %w", err)
	}

	s.logger.Info("archive replayed",
		zap.Int("documents", out.Documents),
		zap.Int("failed", out.Failed),
		zap.Int("logs", out.Logs),
	)
	return out, nil
}

// Location is the zone every stored timestamp is normalized into.
func (s *Service) Location() *time.Location {
	return s.store.Location()
}

// SnapshotAt delegates to the underlying store.
func (s *Service) SnapshotAt(ts time.Time) []SnapshotEntry {
	return s.store.SnapshotAt(ts)
}

// Range delegates to the underlying store.
func (s *Service) Range(stationNo string, start, end time.Time) []StationLog {
	return s.store.Range(stationNo, start, end)
}

// HourlyAverage delegates to the underlying store.
func (s *Service) HourlyAverage(stationNo string) HourlyStats {
	return s.store.HourlyAverage(stationNo)
}

// HourlyDelta delegates to the underlying store.
func (s *Service) HourlyDelta(stationNo string) HourlyStats {
	return s.store.HourlyDelta(stationNo)
}

// Stations delegates to the underlying store.
func (s *Service) Stations() []StationSummary {
	return s.store.Stations()
}
