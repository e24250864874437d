package payments

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avigneron/cavebox-backend/internal/notifications"
	"github.com/avigneron/cavebox-backend/internal/subscriptions"
	"github.com/avigneron/cavebox-backend/pkg/enums"
	pkgerrors "github.com/avigneron/cavebox-backend/pkg/errors"
	"github.com/avigneron/cavebox-backend/pkg/logger"
	"github.com/avigneron/cavebox-backend/pkg/redis"
	"github.com/avigneron/cavebox-backend/pkg/types"
)

const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"

	idempotencyScope = "payments"
	idempotencyTTL   = 24 * time.Hour
)

// Event is one gateway notification. The gateway retries deliveries, so the
// ID is used to drop duplicates.
type Event struct {
	ID   string    `json:"id" validate:"required"`
	Type string    `json:"type" validate:"required"`
	Data EventData `json:"data"`
}

// EventData carries the subscription the payment relates to. Succeeded
// events describe the subscription to start; failed events reference an
// existing one.
type EventData struct {
	SubscriptionID     uuid.UUID     `json:"subscription_id,omitempty"`
	MemberID           uuid.UUID     `json:"member_id,omitempty"`
	WineCaveID         uuid.UUID     `json:"wine_cave_id,omitempty"`
	SubscriptionTierID uuid.UUID     `json:"subscription_tier_id,omitempty"`
	DeliveryAddress    types.Address `json:"delivery_address,omitempty"`
}

// Service processes payment gateway events.
type Service interface {
	HandleEvent(ctx context.Context, event Event) error
}

// ServiceParams groups dependencies for the webhook service.
type ServiceParams struct {
	SubscriptionSvc subscriptions.Service
	Notifier        notifications.Service
	Idempotency     redis.IdempotencyStore
	Logger          *logger.Logger
}

type service struct {
	subscriptionSvc subscriptions.Service
	notifier        notifications.Service
	idempotency     redis.IdempotencyStore
	logger          *logger.Logger
}

// NewService builds a payment webhook service.
func NewService(params ServiceParams) (Service, error) {
	if params.SubscriptionSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "subscriptions service required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	if params.Idempotency == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "idempotency store required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		subscriptionSvc: params.SubscriptionSvc,
		notifier:        params.Notifier,
		idempotency:     params.Idempotency,
		logger:          params.Logger,
	}, nil
}

// HandleEvent applies one gateway event. Redeliveries of an already
// processed event id are acknowledged without side effects.
func (s *service) HandleEvent(ctx context.Context, event Event) error {
	if event.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}

	key := s.idempotency.IdempotencyKey(idempotencyScope, event.ID)
	fresh, err := s.idempotency.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), idempotencyTTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency check")
	}
	if !fresh {
		dupCtx := s.logger.WithField(ctx, "event_id", event.ID)
		s.logger.Info(dupCtx, "duplicate payment event dropped")
		return nil
	}

	if err := s.apply(ctx, event); err != nil {
		// release the claim so the gateway's retry can land
		if delErr := s.idempotency.Del(ctx, key); delErr != nil {
			failCtx := s.logger.WithField(ctx, "event_id", event.ID)
			s.logger.Warn(failCtx, "idempotency key not released after failure")
		}
		return err
	}
	return nil
}

func (s *service) apply(ctx context.Context, event Event) error {
	switch event.Type {
	case EventPaymentSucceeded:
		_, err := s.subscriptionSvc.Activate(ctx, subscriptions.ActivateParams{
			MemberID:           event.Data.MemberID,
			WineCaveID:         event.Data.WineCaveID,
			SubscriptionTierID: event.Data.SubscriptionTierID,
			DeliveryAddress:    event.Data.DeliveryAddress,
		})
		// a second activation for the same pair means a previous event
		// already did the work
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
			dupCtx := s.logger.WithField(ctx, "event_id", event.ID)
			s.logger.Info(dupCtx, "subscription already active, event acknowledged")
			return nil
		}
		return err

	case EventPaymentFailed:
		if event.Data.SubscriptionID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "subscription id required for failed payment")
		}
		subscription, err := s.subscriptionSvc.SetStatus(ctx, subscriptions.SetStatusParams{
			ActorRole:      enums.MemberRoleAdmin,
			SubscriptionID: event.Data.SubscriptionID,
			Status:         enums.SubscriptionStatusPaused,
		})
		if err != nil {
			// already paused: the pause this event asked for is in place
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
				return nil
			}
			return err
		}
		if _, err := s.notifier.Send(ctx, notifications.SendParams{
			RecipientID: subscription.MemberID,
			Category:    enums.NotificationCategorySubscription,
			TemplateKey: "payment_failed",
			Data:        map[string]string{},
		}); err != nil {
			failCtx := s.logger.WithField(ctx, "event_id", event.ID)
			s.logger.Warn(failCtx, "payment failure notification not sent")
		}
		return nil

	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown event type").
			WithDetails(map[string]string{"type": event.Type})
	}
}
