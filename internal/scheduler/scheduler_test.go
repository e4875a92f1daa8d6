package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fetcherFunc func(ctx context.Context) error

func (f fetcherFunc) FetchAndIngest(ctx context.Context) error { return f(ctx) }

func TestSchedulerRunsImmediately(t *testing.T) {
	calls := make(chan struct{}, 4)
	f := fetcherFunc(func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Errorf("fetch context has no deadline")
		}
		calls <- struct{}{}
		return errors.New("upstream down")
	})

	s := New(time.Hour, time.Second, f, zap.NewNop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run on start")
	}
}

func TestSchedulerDisabled(t *testing.T) {
	f := fetcherFunc(func(context.Context) error {
		t.Error("fetch must not run when polling is disabled")
		return nil
	})

	s := New(0, time.Second, f, zap.NewNop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}
