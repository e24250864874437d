package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/avigneron/cavebox-backend/internal/recommendations"
	"github.com/avigneron/cavebox-backend/internal/shipments"
	"github.com/avigneron/cavebox-backend/pkg/db/models"
	"github.com/avigneron/cavebox-backend/pkg/enums"
	"github.com/avigneron/cavebox-backend/pkg/logger"
)

const defaultDispatchLimit = 100

// ShipmentDispatchJobParams configure the monthly dispatch loop.
type ShipmentDispatchJobParams struct {
	Logger        *logger.Logger
	Subscriptions dueSubscriptionLister
	Shipments     shipmentCreator
	OpenShipments openShipmentChecker
	Recommender   wineRecommender
	Tiers         tierReader
	Carrier       enums.Carrier
	Limit         int
	Now           func() time.Time
}

type dueSubscriptionLister interface {
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]models.WineSubscription, error)
}

type openShipmentChecker interface {
	HasOpenShipment(ctx context.Context, subscriptionID uuid.UUID) (bool, error)
}

type shipmentCreator interface {
	Create(ctx context.Context, params shipments.CreateParams) (*models.Shipment, error)
	GenerateLabel(ctx context.Context, params shipments.ActionParams) (*models.Shipment, error)
}

type wineRecommender interface {
	Recommend(ctx context.Context, params recommendations.RecommendParams) ([]recommendations.RankedWine, error)
}

type tierReader interface {
	GetTier(ctx context.Context, tierID uuid.UUID) (*models.SubscriptionTier, error)
}

// NewShipmentDispatchJob builds the cron job that turns due subscriptions
// into labeled shipments.
func NewShipmentDispatchJob(params ShipmentDispatchJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions service required")
	}
	if params.Shipments == nil {
		return nil, fmt.Errorf("shipments service required")
	}
	if params.OpenShipments == nil {
		return nil, fmt.Errorf("open shipment checker required")
	}
	if params.Recommender == nil {
		return nil, fmt.Errorf("recommender required")
	}
	if params.Tiers == nil {
		return nil, fmt.Errorf("tier reader required")
	}
	carrier := params.Carrier
	if !carrier.IsValid() {
		carrier = enums.CarrierColissimo
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultDispatchLimit
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &shipmentDispatchJob{
		logg:          params.Logger,
		subscriptions: params.Subscriptions,
		shipments:     params.Shipments,
		openShipments: params.OpenShipments,
		recommender:   params.Recommender,
		tiers:         params.Tiers,
		carrier:       carrier,
		limit:         limit,
		now:           now,
	}, nil
}

type shipmentDispatchJob struct {
	logg          *logger.Logger
	subscriptions dueSubscriptionLister
	shipments     shipmentCreator
	openShipments openShipmentChecker
	recommender   wineRecommender
	tiers         tierReader
	carrier       enums.Carrier
	limit         int
	now           func() time.Time
}

func (j *shipmentDispatchJob) Name() string { return "shipment-dispatch" }

func (j *shipmentDispatchJob) Run(ctx context.Context) error {
	due, err := j.subscriptions.ListDue(ctx, j.now().UTC(), j.limit)
	if err != nil {
		return fmt.Errorf("list due subscriptions: %w", err)
	}

	var errs error
	dispatched := 0
	for i := range due {
		if err := j.dispatch(ctx, &due[i]); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		dispatched++
	}

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"due":        len(due),
		"dispatched": dispatched,
	})
	j.logg.Info(reportCtx, "shipment dispatch loop complete")
	return errs
}

func (j *shipmentDispatchJob) dispatch(ctx context.Context, subscription *models.WineSubscription) error {
	logCtx := j.logg.WithField(ctx, "subscription_id", subscription.ID.String())

	// next_shipment_date only advances on delivery, so a due subscription
	// stays listed across ticks while its shipment is in flight
	open, err := j.openShipments.HasOpenShipment(ctx, subscription.ID)
	if err != nil {
		return fmt.Errorf("check open shipment for subscription %s: %w", subscription.ID, err)
	}
	if open {
		j.logg.Info(logCtx, "shipment already in flight; skipping subscription")
		return nil
	}

	tier, err := j.tiers.GetTier(ctx, subscription.SubscriptionTierID)
	if err != nil {
		return fmt.Errorf("load tier for subscription %s: %w", subscription.ID, err)
	}
	bottles := tier.BottlesPerMonth
	if bottles <= 0 {
		bottles = 1
	}

	ranked, err := j.recommender.Recommend(ctx, recommendations.RecommendParams{
		MemberID:   subscription.MemberID,
		WineCaveID: subscription.WineCaveID,
		Limit:      bottles,
	})
	if err != nil {
		return fmt.Errorf("score wines for subscription %s: %w", subscription.ID, err)
	}
	if len(ranked) == 0 {
		j.logg.Warn(logCtx, "no in-stock wines to dispatch; skipping subscription")
		return nil
	}

	created, err := j.shipments.Create(ctx, shipments.CreateParams{
		ActorRole:      enums.MemberRoleAdmin,
		SubscriptionID: subscription.ID,
		Carrier:        j.carrier,
		Selections:     fillSelections(ranked, bottles),
	})
	if err != nil {
		return fmt.Errorf("create shipment for subscription %s: %w", subscription.ID, err)
	}

	if _, err := j.shipments.GenerateLabel(ctx, shipments.ActionParams{
		ActorRole:  enums.MemberRoleAdmin,
		ShipmentID: created.ID,
	}); err != nil {
		return fmt.Errorf("label shipment %s: %w", created.ID, err)
	}
	return nil
}

// fillSelections spreads the tier's bottle count across the top-ranked
// wines, best scores first.
func fillSelections(ranked []recommendations.RankedWine, bottles int) []shipments.WineSelection {
	selections := make([]shipments.WineSelection, 0, len(ranked))
	for _, wine := range ranked {
		selections = append(selections, shipments.WineSelection{WineID: wine.WineID})
	}
	for i := 0; i < bottles; i++ {
		selections[i%len(selections)].Quantity++
	}
	return selections
}
