package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avigneron/cavebox-backend/pkg/db/models"
	"github.com/avigneron/cavebox-backend/pkg/enums"
	pkgerrors "github.com/avigneron/cavebox-backend/pkg/errors"
	"github.com/avigneron/cavebox-backend/pkg/logger"
	"github.com/avigneron/cavebox-backend/pkg/pagination"
)

const defaultRetention = 30 * 24 * time.Hour

// Service defines notification dispatch and lifecycle operations.
type Service interface {
	Send(ctx context.Context, params SendParams) (*models.Notification, error)
	SendBulk(ctx context.Context, recipientIDs []uuid.UUID, category enums.NotificationCategory, templateKey string, data map[string]string) ([]models.Notification, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, callerID, notificationID uuid.UUID) error
	PurgeExpired(ctx context.Context) (int64, error)
}

// SendParams describes one notification to dispatch.
type SendParams struct {
	RecipientID uuid.UUID
	Category    enums.NotificationCategory
	TemplateKey string
	Data        map[string]string
}

// ListParams configures pagination for a recipient's notifications.
type ListParams struct {
	RecipientID uuid.UUID
	Limit       int
	Cursor      string
	UnreadOnly  bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// ServiceParams groups dependencies for the notification service.
type ServiceParams struct {
	Repo      Repository
	Logger    *logger.Logger
	Retention time.Duration
}

type service struct {
	repo      Repository
	logger    *logger.Logger
	retention time.Duration
}

// NewService builds a notification service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	return &service{
		repo:      params.Repo,
		logger:    params.Logger,
		retention: retention,
	}, nil
}

func (s *service) Send(ctx context.Context, params SendParams) (*models.Notification, error) {
	if params.RecipientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	if !params.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown notification category")
	}
	tpl, ok := lookupTemplate(params.Category, params.TemplateKey)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown template key for category").
			WithDetails(map[string]string{"category": params.Category.String(), "template_key": params.TemplateKey})
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.retention)
	notification := &models.Notification{
		RecipientID: params.RecipientID,
		Category:    params.Category,
		TemplateKey: params.TemplateKey,
		Title:       render(tpl.Title, params.Data),
		Message:     render(tpl.Message, params.Data),
		ExpiresAt:   &expiresAt,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return notification, nil
}

// SendBulk dispatches to each recipient independently. A failed recipient is
// logged and skipped; the rest still receive their notification.
func (s *service) SendBulk(ctx context.Context, recipientIDs []uuid.UUID, category enums.NotificationCategory, templateKey string, data map[string]string) ([]models.Notification, error) {
	if len(recipientIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one recipient required")
	}
	if _, ok := lookupTemplate(category, templateKey); !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown template key for category")
	}

	sent := make([]models.Notification, 0, len(recipientIDs))
	for _, recipientID := range recipientIDs {
		notification, err := s.Send(ctx, SendParams{
			RecipientID: recipientID,
			Category:    category,
			TemplateKey: templateKey,
			Data:        data,
		})
		if err != nil {
			failCtx := s.logger.WithFields(ctx, map[string]any{
				"recipient_id": recipientID.String(),
				"template_key": templateKey,
			})
			s.logger.Warn(failCtx, "bulk notification delivery failed for recipient")
			continue
		}
		sent = append(sent, *notification)
	}
	return sent, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.RecipientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}

	query := listNotificationsParams{
		RecipientID: params.RecipientID,
		Limit:       params.Limit,
		UnreadOnly:  params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) MarkRead(ctx context.Context, callerID, notificationID uuid.UUID) error {
	if callerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "caller id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, callerID, notificationID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) PurgeExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "purge expired notifications")
	}
	return count, nil
}
