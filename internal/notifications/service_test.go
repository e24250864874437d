package notifications

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/avigneron/cavebox-backend/pkg/db/models"
	"github.com/avigneron/cavebox-backend/pkg/enums"
	pkgerrors "github.com/avigneron/cavebox-backend/pkg/errors"
	"github.com/avigneron/cavebox-backend/pkg/logger"
	paginationpkg "github.com/avigneron/cavebox-backend/pkg/pagination"
)

type fakeRepository struct {
	createFn        func(ctx context.Context, notification *models.Notification) error
	listFn          func(ctx context.Context, params listNotificationsParams) ([]models.Notification, *paginationpkg.Cursor, error)
	markReadFn      func(ctx context.Context, recipientID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	deleteExpiredFn func(ctx context.Context, now time.Time) (int64, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, notification *models.Notification) error {
	if f.createFn != nil {
		return f.createFn(ctx, notification)
	}
	return nil
}

func (f *fakeRepository) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *paginationpkg.Cursor, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil, nil
}

func (f *fakeRepository) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, recipientID, notificationID, now)
	}
	return notificationMarkResult{}, nil
}

func (f *fakeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if f.deleteExpiredFn != nil {
		return f.deleteExpiredFn(ctx, now)
	}
	return 0, nil
}

func newServiceWithRepo(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Logger: logger.New(logger.Options{Output: io.Discard, Level: zerolog.ErrorLevel}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestService_SendRendersTemplate(t *testing.T) {
	var created *models.Notification
	repo := &fakeRepository{
		createFn: func(ctx context.Context, notification *models.Notification) error {
			created = notification
			return nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	got, err := svc.Send(context.Background(), SendParams{
		RecipientID: uuid.New(),
		Category:    enums.NotificationCategoryShipment,
		TemplateKey: "shipped",
		Data:        map[string]string{"carrier": "chronopost", "tracking_number": "CHR42"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if created == nil {
		t.Fatal("notification was not persisted")
	}
	if !strings.Contains(got.Message, "chronopost") || !strings.Contains(got.Message, "CHR42") {
		t.Fatalf("placeholders not substituted: %q", got.Message)
	}
	if got.ExpiresAt == nil {
		t.Fatal("expected expiry to be set")
	}
}

func TestService_SendLeavesUnknownPlaceholders(t *testing.T) {
	svc := newServiceWithRepo(t, &fakeRepository{})

	got, err := svc.Send(context.Background(), SendParams{
		RecipientID: uuid.New(),
		Category:    enums.NotificationCategoryShipment,
		TemplateKey: "delivered",
		Data:        map[string]string{"unrelated": "x"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(got.Message, "{cave_name}") {
		t.Fatalf("unmatched placeholder should stay verbatim: %q", got.Message)
	}
}

func TestService_SendUnknownTemplate(t *testing.T) {
	svc := newServiceWithRepo(t, &fakeRepository{})

	_, err := svc.Send(context.Background(), SendParams{
		RecipientID: uuid.New(),
		Category:    enums.NotificationCategorySubscription,
		TemplateKey: "does_not_exist",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_SendBulkIsolatesFailures(t *testing.T) {
	good1 := uuid.New()
	bad := uuid.New()
	good2 := uuid.New()

	repo := &fakeRepository{
		createFn: func(ctx context.Context, notification *models.Notification) error {
			if notification.RecipientID == bad {
				return errors.New("insert refused")
			}
			return nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	sent, err := svc.SendBulk(context.Background(), []uuid.UUID{good1, bad, good2}, enums.NotificationCategoryInventory, "low_stock", map[string]string{"wine_name": "Margaux"})
	if err != nil {
		t.Fatalf("send bulk: %v", err)
	}
	if len(sent) != 2 {
		t.Fatalf("expected 2 delivered notifications, got %d", len(sent))
	}
	for _, n := range sent {
		if n.RecipientID == bad {
			t.Fatal("failed recipient must be excluded from the result")
		}
	}
}

func TestService_ListReturnsCursor(t *testing.T) {
	second := models.Notification{ID: uuid.New(), CreatedAt: time.Now()}
	repo := &fakeRepository{
		listFn: func(ctx context.Context, params listNotificationsParams) ([]models.Notification, *paginationpkg.Cursor, error) {
			return []models.Notification{{ID: uuid.New()}}, &paginationpkg.Cursor{CreatedAt: second.CreatedAt, ID: second.ID}, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	result, err := svc.List(context.Background(), ListParams{RecipientID: uuid.New(), Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Cursor == "" {
		t.Fatal("expected cursor for next page")
	}
	decoded, err := paginationpkg.ParseCursor(result.Cursor)
	if err != nil {
		t.Fatalf("invalid cursor %q: %v", result.Cursor, err)
	}
	if decoded.ID != second.ID {
		t.Fatalf("expected cursor id %s got %s", second.ID, decoded.ID)
	}
}

func TestService_ListInvalidCursor(t *testing.T) {
	svc := newServiceWithRepo(t, &fakeRepository{})

	_, err := svc.List(context.Background(), ListParams{RecipientID: uuid.New(), Cursor: "not-base64"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_MarkReadNotFound(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, recipientID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{Found: false}, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	err := svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestService_PurgeExpired(t *testing.T) {
	repo := &fakeRepository{
		deleteExpiredFn: func(ctx context.Context, now time.Time) (int64, error) {
			return 7, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	count, err := svc.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("purge expired: %v", err)
	}
	if count != 7 {
		t.Fatalf("expected 7 purged, got %d", count)
	}
}
