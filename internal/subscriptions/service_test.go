package subscriptions

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/avigneron/cavebox-backend/internal/address"
	"github.com/avigneron/cavebox-backend/internal/caves"
	"github.com/avigneron/cavebox-backend/internal/notifications"
	"github.com/avigneron/cavebox-backend/pkg/db/models"
	"github.com/avigneron/cavebox-backend/pkg/enums"
	pkgerrors "github.com/avigneron/cavebox-backend/pkg/errors"
	"github.com/avigneron/cavebox-backend/pkg/logger"
	"github.com/avigneron/cavebox-backend/pkg/types"
)

type fakeSubRepo struct {
	createErr    error
	created      *models.WineSubscription
	subscription *models.WineSubscription
	statusTo     *enums.SubscriptionStatus
	nextDate     *time.Time
	due          []models.WineSubscription
}

func (f *fakeSubRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeSubRepo) Create(ctx context.Context, subscription *models.WineSubscription) error {
	if f.createErr != nil {
		return f.createErr
	}
	subscription.ID = uuid.New()
	f.created = subscription
	return nil
}

func (f *fakeSubRepo) GetByID(ctx context.Context, subscriptionID uuid.UUID) (*models.WineSubscription, error) {
	if f.subscription == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.subscription, nil
}

func (f *fakeSubRepo) UpdateStatus(ctx context.Context, subscriptionID uuid.UUID, status enums.SubscriptionStatus, cancelledAt *time.Time) error {
	f.statusTo = &status
	return nil
}

func (f *fakeSubRepo) SetNextShipmentDate(ctx context.Context, subscriptionID uuid.UUID, next time.Time) error {
	f.nextDate = &next
	return nil
}

func (f *fakeSubRepo) ListDue(ctx context.Context, asOf time.Time, limit int) ([]models.WineSubscription, error) {
	return f.due, nil
}

type fakeTierCaveRepo struct {
	tier *models.SubscriptionTier
}

func (f *fakeTierCaveRepo) WithTx(tx *gorm.DB) caves.Repository { return f }

func (f *fakeTierCaveRepo) GetByID(ctx context.Context, caveID uuid.UUID) (*models.WineCave, error) {
	return &models.WineCave{ID: caveID, OwnerID: uuid.New(), Name: "Cave Margaux"}, nil
}

func (f *fakeTierCaveRepo) IsOwner(ctx context.Context, caveID, memberID uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakeTierCaveRepo) GetTier(ctx context.Context, tierID uuid.UUID) (*models.SubscriptionTier, error) {
	if f.tier == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.tier, nil
}

func (f *fakeTierCaveRepo) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

type noopNotifier struct {
	sent []notifications.SendParams
}

func (f *noopNotifier) Send(ctx context.Context, params notifications.SendParams) (*models.Notification, error) {
	f.sent = append(f.sent, params)
	return &models.Notification{ID: uuid.New()}, nil
}

func (f *noopNotifier) SendBulk(ctx context.Context, recipientIDs []uuid.UUID, category enums.NotificationCategory, templateKey string, data map[string]string) ([]models.Notification, error) {
	return nil, nil
}

func (f *noopNotifier) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (f *noopNotifier) MarkRead(ctx context.Context, callerID, notificationID uuid.UUID) error {
	return nil
}

func (f *noopNotifier) PurgeExpired(ctx context.Context) (int64, error) { return 0, nil }

func testAddress() types.Address {
	return types.Address{Line1: "4 quai des Chartrons", City: "Bordeaux", PostalCode: "33000", Country: "FR"}
}

func newSubscriptionService(t *testing.T, repo *fakeSubRepo, caveRepo *fakeTierCaveRepo, notifier *noopNotifier) Service {
	t.Helper()
	log := logger.New(logger.Options{Output: io.Discard, Level: zerolog.ErrorLevel})
	addressSvc, err := address.NewService(address.ServiceParams{Logger: log})
	if err != nil {
		t.Fatalf("address service: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Repo:       repo,
		CaveRepo:   caveRepo,
		AddressSvc: addressSvc,
		Notifier:   notifier,
		Logger:     log,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestActivate_SetsScheduleAndNotifies(t *testing.T) {
	caveID := uuid.New()
	tierID := uuid.New()
	repo := &fakeSubRepo{}
	notifier := &noopNotifier{}
	svc := newSubscriptionService(t, repo, &fakeTierCaveRepo{
		tier: &models.SubscriptionTier{ID: tierID, WineCaveID: caveID, IsActive: true},
	}, notifier)

	sub, err := svc.Activate(context.Background(), ActivateParams{
		MemberID:           uuid.New(),
		WineCaveID:         caveID,
		SubscriptionTierID: tierID,
		DeliveryAddress:    testAddress(),
	})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if sub.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active status, got %s", sub.Status)
	}

	want := firstOfNextMonth(time.Now().UTC())
	if !sub.NextShipmentDate.Equal(want) {
		t.Fatalf("expected next shipment %s, got %s", want, sub.NextShipmentDate)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].TemplateKey != "activated" {
		t.Fatalf("expected activation notification, got %+v", notifier.sent)
	}
}

func TestActivate_InactiveTierNotFound(t *testing.T) {
	caveID := uuid.New()
	tierID := uuid.New()
	svc := newSubscriptionService(t, &fakeSubRepo{}, &fakeTierCaveRepo{
		tier: &models.SubscriptionTier{ID: tierID, WineCaveID: caveID, IsActive: false},
	}, &noopNotifier{})

	_, err := svc.Activate(context.Background(), ActivateParams{
		MemberID:           uuid.New(),
		WineCaveID:         caveID,
		SubscriptionTierID: tierID,
		DeliveryAddress:    testAddress(),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestActivate_DuplicateActiveConflict(t *testing.T) {
	caveID := uuid.New()
	tierID := uuid.New()
	repo := &fakeSubRepo{createErr: errors.New("UNIQUE constraint failed: wine_subscriptions.member_id")}
	svc := newSubscriptionService(t, repo, &fakeTierCaveRepo{
		tier: &models.SubscriptionTier{ID: tierID, WineCaveID: caveID, IsActive: true},
	}, &noopNotifier{})

	_, err := svc.Activate(context.Background(), ActivateParams{
		MemberID:           uuid.New(),
		WineCaveID:         caveID,
		SubscriptionTierID: tierID,
		DeliveryAddress:    testAddress(),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSetStatus_MemberOnly(t *testing.T) {
	memberID := uuid.New()
	repo := &fakeSubRepo{subscription: &models.WineSubscription{
		ID:       uuid.New(),
		MemberID: memberID,
		Status:   enums.SubscriptionStatusActive,
	}}
	svc := newSubscriptionService(t, repo, &fakeTierCaveRepo{}, &noopNotifier{})

	_, err := svc.SetStatus(context.Background(), SetStatusParams{
		ActorID:        uuid.New(), // not the member
		ActorRole:      enums.MemberRoleMember,
		SubscriptionID: repo.subscription.ID,
		Status:         enums.SubscriptionStatusPaused,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestSetStatus_CancelledIsTerminal(t *testing.T) {
	memberID := uuid.New()
	repo := &fakeSubRepo{subscription: &models.WineSubscription{
		ID:       uuid.New(),
		MemberID: memberID,
		Status:   enums.SubscriptionStatusCancelled,
	}}
	svc := newSubscriptionService(t, repo, &fakeTierCaveRepo{}, &noopNotifier{})

	_, err := svc.SetStatus(context.Background(), SetStatusParams{
		ActorID:        memberID,
		ActorRole:      enums.MemberRoleMember,
		SubscriptionID: repo.subscription.ID,
		Status:         enums.SubscriptionStatusActive,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for cancelled subscription, got %v", err)
	}
}

func TestSetStatus_PauseKeepsSchedule(t *testing.T) {
	memberID := uuid.New()
	next := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakeSubRepo{subscription: &models.WineSubscription{
		ID:               uuid.New(),
		MemberID:         memberID,
		Status:           enums.SubscriptionStatusActive,
		NextShipmentDate: next,
	}}
	svc := newSubscriptionService(t, repo, &fakeTierCaveRepo{}, &noopNotifier{})

	sub, err := svc.SetStatus(context.Background(), SetStatusParams{
		ActorID:        memberID,
		ActorRole:      enums.MemberRoleMember,
		SubscriptionID: repo.subscription.ID,
		Status:         enums.SubscriptionStatusPaused,
	})
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if !sub.NextShipmentDate.Equal(next) {
		t.Fatal("pausing must not clear the next shipment date")
	}
	if repo.nextDate != nil {
		t.Fatal("pause must not rewrite the schedule")
	}
}

func TestAdvanceSchedule_KeysOffStoredDate(t *testing.T) {
	// delivery confirmed on March 15th must still advance March 1st -> April 1st
	repo := &fakeSubRepo{subscription: &models.WineSubscription{
		ID:               uuid.New(),
		MemberID:         uuid.New(),
		Status:           enums.SubscriptionStatusActive,
		NextShipmentDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}}
	svc := newSubscriptionService(t, repo, &fakeTierCaveRepo{}, &noopNotifier{})

	next, err := svc.AdvanceSchedule(context.Background(), repo.subscription.ID)
	if err != nil {
		t.Fatalf("advance schedule: %v", err)
	}
	want := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %s, got %s", want, next)
	}
}

func TestFirstOfNextMonth_YearRollover(t *testing.T) {
	got := firstOfNextMonth(time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC))
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
