package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/avigneron/cavebox-backend/internal/recommendations"
	"github.com/avigneron/cavebox-backend/internal/shipments"
	"github.com/avigneron/cavebox-backend/pkg/db/models"
	"github.com/avigneron/cavebox-backend/pkg/enums"
	"github.com/avigneron/cavebox-backend/pkg/logger"
)

type fakeDueLister struct {
	due []models.WineSubscription
	err error
}

func (f *fakeDueLister) ListDue(ctx context.Context, asOf time.Time, limit int) ([]models.WineSubscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.due, nil
}

type fakeShipmentCreator struct {
	created   []shipments.CreateParams
	labeled   []shipments.ActionParams
	createErr error
}

func (f *fakeShipmentCreator) Create(ctx context.Context, params shipments.CreateParams) (*models.Shipment, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, params)
	return &models.Shipment{ID: uuid.New(), SubscriptionID: params.SubscriptionID}, nil
}

func (f *fakeShipmentCreator) GenerateLabel(ctx context.Context, params shipments.ActionParams) (*models.Shipment, error) {
	f.labeled = append(f.labeled, params)
	return &models.Shipment{ID: params.ShipmentID, Status: enums.ShipmentStatusLabeled}, nil
}

// fakeOpenShipments mirrors persistence: a subscription has an open shipment
// once the creator produced one for it.
type fakeOpenShipments struct {
	creator *fakeShipmentCreator
	err     error
}

func (f *fakeOpenShipments) HasOpenShipment(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, params := range f.creator.created {
		if params.SubscriptionID == subscriptionID {
			return true, nil
		}
	}
	return false, nil
}

type fakeRecommender struct {
	ranked []recommendations.RankedWine
}

func (f *fakeRecommender) Recommend(ctx context.Context, params recommendations.RecommendParams) ([]recommendations.RankedWine, error) {
	return f.ranked, nil
}

type fakeTierReader struct {
	bottles int
}

func (f *fakeTierReader) GetTier(ctx context.Context, tierID uuid.UUID) (*models.SubscriptionTier, error) {
	return &models.SubscriptionTier{ID: tierID, BottlesPerMonth: f.bottles}, nil
}

func newDispatchJob(t *testing.T, lister *fakeDueLister, creator *fakeShipmentCreator, recommender *fakeRecommender, tiers *fakeTierReader) Job {
	t.Helper()
	job, err := NewShipmentDispatchJob(ShipmentDispatchJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "cron-test"}),
		Subscriptions: lister,
		Shipments:     creator,
		OpenShipments: &fakeOpenShipments{creator: creator},
		Recommender:   recommender,
		Tiers:         tiers,
	})
	if err != nil {
		t.Fatalf("NewShipmentDispatchJob: %v", err)
	}
	return job
}

func dueSubscription() models.WineSubscription {
	return models.WineSubscription{
		ID:                 uuid.New(),
		MemberID:           uuid.New(),
		WineCaveID:         uuid.New(),
		SubscriptionTierID: uuid.New(),
		Status:             enums.SubscriptionStatusActive,
	}
}

func TestShipmentDispatchJobCreatesAndLabels(t *testing.T) {
	lister := &fakeDueLister{due: []models.WineSubscription{dueSubscription(), dueSubscription()}}
	creator := &fakeShipmentCreator{}
	recommender := &fakeRecommender{ranked: []recommendations.RankedWine{
		{WineID: uuid.New(), Score: 9},
		{WineID: uuid.New(), Score: 7},
	}}
	job := newDispatchJob(t, lister, creator, recommender, &fakeTierReader{bottles: 3})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(creator.created) != 2 {
		t.Fatalf("expected 2 shipments, got %d", len(creator.created))
	}
	if len(creator.labeled) != 2 {
		t.Fatalf("expected 2 labels, got %d", len(creator.labeled))
	}

	total := 0
	for _, sel := range creator.created[0].Selections {
		total += sel.Quantity
	}
	if total != 3 {
		t.Fatalf("selection quantities should sum to the tier's bottles, got %d", total)
	}
	if creator.created[0].ActorRole != enums.MemberRoleAdmin {
		t.Fatal("dispatch must act with the admin role")
	}
}

func TestShipmentDispatchJobSkipsSubscriptionWithOpenShipment(t *testing.T) {
	subscription := dueSubscription()
	lister := &fakeDueLister{due: []models.WineSubscription{subscription}}
	creator := &fakeShipmentCreator{}
	recommender := &fakeRecommender{ranked: []recommendations.RankedWine{{WineID: uuid.New(), Score: 8}}}
	job := newDispatchJob(t, lister, creator, recommender, &fakeTierReader{bottles: 2})

	// the subscription stays due until delivery, so two ticks see it twice
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("second tick: %v", err)
	}

	if len(creator.created) != 1 {
		t.Fatalf("expected a single shipment across two ticks, got %d", len(creator.created))
	}
	if len(creator.labeled) != 1 {
		t.Fatalf("expected a single label across two ticks, got %d", len(creator.labeled))
	}
}

func TestShipmentDispatchJobSkipsEmptyCatalog(t *testing.T) {
	lister := &fakeDueLister{due: []models.WineSubscription{dueSubscription()}}
	creator := &fakeShipmentCreator{}
	job := newDispatchJob(t, lister, creator, &fakeRecommender{}, &fakeTierReader{bottles: 2})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(creator.created) != 0 {
		t.Fatal("no shipment should be created when nothing is in stock")
	}
}

func TestShipmentDispatchJobCollectsFailures(t *testing.T) {
	lister := &fakeDueLister{due: []models.WineSubscription{dueSubscription(), dueSubscription()}}
	creator := &fakeShipmentCreator{createErr: errors.New("stock gone")}
	recommender := &fakeRecommender{ranked: []recommendations.RankedWine{{WineID: uuid.New()}}}
	job := newDispatchJob(t, lister, creator, recommender, &fakeTierReader{bottles: 1})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected collected errors")
	}
}

func TestFillSelectionsRoundRobin(t *testing.T) {
	ranked := []recommendations.RankedWine{
		{WineID: uuid.New()},
		{WineID: uuid.New()},
	}
	selections := fillSelections(ranked, 5)
	if len(selections) != 2 {
		t.Fatalf("expected 2 selections, got %d", len(selections))
	}
	if selections[0].Quantity != 3 || selections[1].Quantity != 2 {
		t.Fatalf("unexpected spread: %+v", selections)
	}
}
