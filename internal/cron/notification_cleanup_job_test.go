package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/avigneron/cavebox-backend/pkg/logger"
)

type fakePurger struct {
	deleted int64
	err     error
	called  int
}

func (f *fakePurger) PurgeExpired(ctx context.Context) (int64, error) {
	f.called++
	if f.err != nil {
		return 0, f.err
	}
	return f.deleted, nil
}

func TestNotificationCleanupJobPurges(t *testing.T) {
	purger := &fakePurger{deleted: 42}
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Notifier: purger,
	})
	if err != nil {
		t.Fatalf("NewNotificationCleanupJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if purger.called != 1 {
		t.Fatalf("expected one purge, got %d", purger.called)
	}
}

func TestNotificationCleanupJobPropagatesErrors(t *testing.T) {
	purger := &fakePurger{err: errors.New("boom")}
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Notifier: purger,
	})
	if err != nil {
		t.Fatalf("NewNotificationCleanupJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
