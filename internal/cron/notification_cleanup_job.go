package cron

import (
	"context"
	"fmt"

	"github.com/avigneron/cavebox-backend/pkg/logger"
)

// NotificationCleanupJobParams configure the expired notification sweep.
type NotificationCleanupJobParams struct {
	Logger   *logger.Logger
	Notifier notificationPurger
}

type notificationPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// NewNotificationCleanupJob builds the cron job that drops expired
// notifications.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &notificationCleanupJob{
		logg:     params.Logger,
		notifier: params.Notifier,
	}, nil
}

type notificationCleanupJob struct {
	logg     *logger.Logger
	notifier notificationPurger
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	deleted, err := j.notifier.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("notification cleanup: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "rows_deleted", deleted)
	j.logg.Info(logCtx, "notification cleanup complete")
	return nil
}
