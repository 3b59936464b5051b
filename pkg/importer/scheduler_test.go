package importer

import (
	"context"
	"testing"
	"time"

	"github.com/bingefriend/episode-importer/pkg/tvmaze"
)

func TestNewUpdatesScheduler_Validation(t *testing.T) {
	p := newTestPipeline(t)

	if _, err := NewUpdatesScheduler(nil, "", tvmaze.PeriodDay); err == nil {
		t.Error("Expected error for nil service")
	}
	if _, err := NewUpdatesScheduler(p.service, "not a cron", tvmaze.PeriodDay); err == nil {
		t.Error("Expected error for invalid cron expression")
	}

	sched, err := NewUpdatesScheduler(p.service, "", "")
	if err != nil {
		t.Fatalf("NewUpdatesScheduler failed: %v", err)
	}
	if sched.cron != defaultUpdatesCron {
		t.Errorf("Expected default cron, got %q", sched.cron)
	}
	if sched.period != tvmaze.PeriodDay {
		t.Errorf("Expected day period, got %q", sched.period)
	}
}

func TestUpdatesScheduler_StopsOnCancel(t *testing.T) {
	p := newTestPipeline(t)

	sched, err := NewUpdatesScheduler(p.service, "0 2 * * *", tvmaze.PeriodDay)
	if err != nil {
		t.Fatalf("NewUpdatesScheduler failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Scheduler did not stop after cancel")
	}
}
