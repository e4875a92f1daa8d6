package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Fetcher is the job the scheduler runs on every tick.
type Fetcher interface {
	FetchAndIngest(ctx context.Context) error
}

// Scheduler periodically pulls the occupancy feed into the store.
type Scheduler struct {
	scheduler *gocron.Scheduler
	fetcher   Fetcher
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a new Scheduler. Each run is bounded by timeout.
func New(interval, timeout time.Duration, fetcher Fetcher, logger *zap.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scheduler{
		scheduler: s,
		fetcher:   fetcher,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens immediately. A run still in progress when the next tick
// fires makes that tick a no-op.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("fetch interval not set; feed polling disabled")
		return nil
	}

	seconds := int(s.interval.Seconds())
	if seconds <= 0 {
		seconds = 60
	}

	_, err := s.scheduler.Every(seconds).Seconds().SingletonMode().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run() {
	s.logger.Debug("running feed fetch job")
	started := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.fetcher.FetchAndIngest(ctx); err != nil {
		s.logger.Warn("feed fetch job failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		return
	}
	s.logger.Debug("completed feed fetch job", zap.Duration("elapsed", time.Since(started)))
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
