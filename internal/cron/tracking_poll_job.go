package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/avigneron/cavebox-backend/internal/shipments"
	"github.com/avigneron/cavebox-backend/pkg/carrier"
	"github.com/avigneron/cavebox-backend/pkg/db/models"
	"github.com/avigneron/cavebox-backend/pkg/enums"
	"github.com/avigneron/cavebox-backend/pkg/logger"
)

const defaultPollLimit = 200

// TrackingPollJobParams configure the carrier refresh loop.
type TrackingPollJobParams struct {
	Logger    *logger.Logger
	Shipments undeliveredLister
	Tracker   shipmentTracker
	Limit     int
}

type undeliveredLister interface {
	ListUndelivered(ctx context.Context, limit int) ([]models.Shipment, error)
}

type shipmentTracker interface {
	Track(ctx context.Context, params shipments.ActionParams) (*carrier.TrackingInfo, error)
}

// NewTrackingPollJob builds the cron job that refreshes in-flight shipments
// from the carrier. Track itself persists any status the carrier reports.
func NewTrackingPollJob(params TrackingPollJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Shipments == nil {
		return nil, fmt.Errorf("shipments repository required")
	}
	if params.Tracker == nil {
		return nil, fmt.Errorf("tracker required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultPollLimit
	}
	return &trackingPollJob{
		logg:    params.Logger,
		lister:  params.Shipments,
		tracker: params.Tracker,
		limit:   limit,
	}, nil
}

type trackingPollJob struct {
	logg    *logger.Logger
	lister  undeliveredLister
	tracker shipmentTracker
	limit   int
}

func (j *trackingPollJob) Name() string { return "tracking-poll" }

func (j *trackingPollJob) Run(ctx context.Context) error {
	moving, err := j.lister.ListUndelivered(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("list undelivered shipments: %w", err)
	}

	var errs error
	polled := 0
	for i := range moving {
		if _, err := j.tracker.Track(ctx, shipments.ActionParams{
			ActorRole:  enums.MemberRoleAdmin,
			ShipmentID: moving[i].ID,
		}); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("poll shipment %s: %w", moving[i].ID, err))
			continue
		}
		polled++
	}

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"undelivered": len(moving),
		"polled":      polled,
	})
	j.logg.Info(reportCtx, "tracking poll complete")
	return errs
}
