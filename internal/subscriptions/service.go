package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avigneron/cavebox-backend/internal/address"
	"github.com/avigneron/cavebox-backend/internal/caves"
	"github.com/avigneron/cavebox-backend/internal/notifications"
	"github.com/avigneron/cavebox-backend/pkg/db"
	"github.com/avigneron/cavebox-backend/pkg/db/models"
	"github.com/avigneron/cavebox-backend/pkg/enums"
	pkgerrors "github.com/avigneron/cavebox-backend/pkg/errors"
	"github.com/avigneron/cavebox-backend/pkg/logger"
	"github.com/avigneron/cavebox-backend/pkg/types"
)

// Service manages the subscription lifecycle and its delivery schedule.
type Service interface {
	Activate(ctx context.Context, params ActivateParams) (*models.WineSubscription, error)
	SetStatus(ctx context.Context, params SetStatusParams) (*models.WineSubscription, error)
	AdvanceSchedule(ctx context.Context, subscriptionID uuid.UUID) (time.Time, error)
	GetByID(ctx context.Context, subscriptionID uuid.UUID) (*models.WineSubscription, error)
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]models.WineSubscription, error)
}

// ActivateParams describes a new subscription to start.
type ActivateParams struct {
	MemberID           uuid.UUID
	WineCaveID         uuid.UUID
	SubscriptionTierID uuid.UUID
	DeliveryAddress    types.Address
}

// SetStatusParams describes a member-driven status change.
type SetStatusParams struct {
	ActorID        uuid.UUID
	ActorRole      enums.MemberRole
	SubscriptionID uuid.UUID
	Status         enums.SubscriptionStatus
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo       Repository
	CaveRepo   caves.Repository
	AddressSvc address.Service
	Notifier   notifications.Service
	Logger     *logger.Logger
}

type service struct {
	repo       Repository
	caveRepo   caves.Repository
	addressSvc address.Service
	notifier   notifications.Service
	logger     *logger.Logger
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "subscriptions repository required")
	}
	if params.CaveRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "caves repository required")
	}
	if params.AddressSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "address service required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		repo:       params.Repo,
		caveRepo:   params.CaveRepo,
		addressSvc: params.AddressSvc,
		notifier:   params.Notifier,
		logger:     params.Logger,
	}, nil
}

func (s *service) Activate(ctx context.Context, params ActivateParams) (*models.WineSubscription, error) {
	if params.MemberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id required")
	}
	if params.WineCaveID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wine cave id required")
	}
	if params.SubscriptionTierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription tier id required")
	}

	tier, err := s.caveRepo.GetTier(ctx, params.SubscriptionTierID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription tier not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription tier")
	}
	if tier.WineCaveID != params.WineCaveID || !tier.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription tier not found")
	}

	deliveryAddress, err := s.addressSvc.Validate(ctx, params.DeliveryAddress)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	subscription := &models.WineSubscription{
		MemberID:           params.MemberID,
		WineCaveID:         params.WineCaveID,
		SubscriptionTierID: params.SubscriptionTierID,
		Status:             enums.SubscriptionStatusActive,
		StartDate:          now,
		NextShipmentDate:   firstOfNextMonth(now),
		DeliveryAddress:    deliveryAddress,
	}
	if err := s.repo.Create(ctx, subscription); err != nil {
		// the partial unique index is the arbiter under concurrent activation
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "an active subscription already exists for this cave")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
	}

	cave, err := s.caveRepo.GetByID(ctx, params.WineCaveID)
	caveName := ""
	if err == nil {
		caveName = cave.Name
	}
	s.notifyBestEffort(ctx, params.MemberID, "activated", map[string]string{
		"cave_name":          caveName,
		"next_shipment_date": subscription.NextShipmentDate.Format("2006-01-02"),
	})

	return subscription, nil
}

func (s *service) SetStatus(ctx context.Context, params SetStatusParams) (*models.WineSubscription, error) {
	if params.SubscriptionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id required")
	}
	if !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown subscription status")
	}

	subscription, err := s.repo.GetByID(ctx, params.SubscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if params.ActorRole != enums.MemberRoleAdmin && subscription.MemberID != params.ActorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the subscription's member may change its status")
	}
	// cancellation is terminal; a cancelled subscription behaves as gone
	if subscription.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	if subscription.Status == params.Status {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription already in requested status")
	}

	var cancelledAt *time.Time
	if params.Status == enums.SubscriptionStatusCancelled {
		now := time.Now().UTC()
		cancelledAt = &now
	}
	if err := s.repo.UpdateStatus(ctx, params.SubscriptionID, params.Status, cancelledAt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription status")
	}

	subscription.Status = params.Status
	subscription.CancelledAt = cancelledAt

	templateKey := ""
	switch params.Status {
	case enums.SubscriptionStatusPaused:
		templateKey = "paused"
	case enums.SubscriptionStatusCancelled:
		templateKey = "cancelled"
	}
	if templateKey != "" {
		caveName := ""
		if cave, caveErr := s.caveRepo.GetByID(ctx, subscription.WineCaveID); caveErr == nil {
			caveName = cave.Name
		}
		s.notifyBestEffort(ctx, subscription.MemberID, templateKey, map[string]string{"cave_name": caveName})
	}

	return subscription, nil
}

// AdvanceSchedule moves the next shipment date to the first day of the month
// after the current one. It keys off the stored date, not the clock, so a
// late delivery confirmation cannot skip or repeat a month.
func (s *service) AdvanceSchedule(ctx context.Context, subscriptionID uuid.UUID) (time.Time, error) {
	if subscriptionID == uuid.Nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "subscription id required")
	}

	subscription, err := s.repo.GetByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}

	next := firstOfNextMonth(subscription.NextShipmentDate)
	if err := s.repo.SetNextShipmentDate(ctx, subscriptionID, next); err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance shipment schedule")
	}
	return next, nil
}

func (s *service) GetByID(ctx context.Context, subscriptionID uuid.UUID) (*models.WineSubscription, error) {
	subscription, err := s.repo.GetByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	return subscription, nil
}

func (s *service) ListDue(ctx context.Context, asOf time.Time, limit int) ([]models.WineSubscription, error) {
	due, err := s.repo.ListDue(ctx, asOf, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due subscriptions")
	}
	return due, nil
}

func (s *service) notifyBestEffort(ctx context.Context, recipientID uuid.UUID, templateKey string, data map[string]string) {
	_, err := s.notifier.Send(ctx, notifications.SendParams{
		RecipientID: recipientID,
		Category:    enums.NotificationCategorySubscription,
		TemplateKey: templateKey,
		Data:        data,
	})
	if err != nil {
		failCtx := s.logger.WithField(ctx, "template_key", templateKey)
		s.logger.Warn(failCtx, "subscription notification failed")
	}
}

// firstOfNextMonth returns midnight UTC on the first day of the month after t.
func firstOfNextMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
