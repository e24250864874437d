package shipments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avigneron/cavebox-backend/internal/caves"
	"github.com/avigneron/cavebox-backend/internal/inventory"
	"github.com/avigneron/cavebox-backend/internal/members"
	"github.com/avigneron/cavebox-backend/internal/notifications"
	"github.com/avigneron/cavebox-backend/internal/subscriptions"
	"github.com/avigneron/cavebox-backend/pkg/carrier"
	"github.com/avigneron/cavebox-backend/pkg/db/models"
	"github.com/avigneron/cavebox-backend/pkg/enums"
	pkgerrors "github.com/avigneron/cavebox-backend/pkg/errors"
	"github.com/avigneron/cavebox-backend/pkg/logger"
)

// TrackingStatusUnavailable is returned while a shipment has no label yet.
const TrackingStatusUnavailable = "not_yet_available"

// Service runs the shipment pipeline from creation through delivery.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*models.Shipment, error)
	GenerateLabel(ctx context.Context, params ActionParams) (*models.Shipment, error)
	Track(ctx context.Context, params ActionParams) (*carrier.TrackingInfo, error)
	UpdateStatus(ctx context.Context, params UpdateStatusParams) (*models.Shipment, error)
}

// CarrierAPI is the slice of the carrier client the pipeline needs.
type CarrierAPI interface {
	CreateLabel(ctx context.Context, req carrier.LabelRequest) (*carrier.Label, error)
	GetTracking(ctx context.Context, carrierName enums.Carrier, trackingNumber string) (*carrier.TrackingInfo, error)
}

// WineSelection is one wine+quantity line requested for a shipment.
type WineSelection struct {
	WineID   uuid.UUID `json:"wine_id"`
	Quantity int       `json:"quantity"`
}

// CreateParams describes a new shipment for a subscription.
type CreateParams struct {
	ActorID        uuid.UUID
	ActorRole      enums.MemberRole
	SubscriptionID uuid.UUID
	Carrier        enums.Carrier
	Selections     []WineSelection
}

// ActionParams identifies one shipment acted on by an actor.
type ActionParams struct {
	ActorID    uuid.UUID
	ActorRole  enums.MemberRole
	ShipmentID uuid.UUID
}

// UpdateStatusParams describes a manual status override.
type UpdateStatusParams struct {
	ActorID    uuid.UUID
	ActorRole  enums.MemberRole
	ShipmentID uuid.UUID
	Status     enums.ShipmentStatus
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the shipment service.
type ServiceParams struct {
	Repo              Repository
	SubscriptionSvc   subscriptions.Service
	InventorySvc      inventory.Service
	CaveRepo          caves.Repository
	MemberRepo        members.Repository
	Carrier           CarrierAPI
	Notifier          notifications.Service
	Logger            *logger.Logger
	TransactionRunner txRunner
}

type service struct {
	repo            Repository
	subscriptionSvc subscriptions.Service
	inventorySvc    inventory.Service
	caveRepo        caves.Repository
	memberRepo      members.Repository
	carrier         CarrierAPI
	notifier        notifications.Service
	logger          *logger.Logger
	txRunner        txRunner
}

// NewService builds a shipment service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shipments repository required")
	}
	if params.SubscriptionSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "subscriptions service required")
	}
	if params.InventorySvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory service required")
	}
	if params.CaveRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "caves repository required")
	}
	if params.MemberRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "members repository required")
	}
	if params.Carrier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier client required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	return &service{
		repo:            params.Repo,
		subscriptionSvc: params.SubscriptionSvc,
		inventorySvc:    params.InventorySvc,
		caveRepo:        params.CaveRepo,
		memberRepo:      params.MemberRepo,
		carrier:         params.Carrier,
		notifier:        params.Notifier,
		logger:          params.Logger,
		txRunner:        params.TransactionRunner,
	}, nil
}

func (s *service) requireCaveAccess(ctx context.Context, caveID, actorID uuid.UUID, role enums.MemberRole) error {
	if role == enums.MemberRoleAdmin {
		return nil
	}
	owns, err := s.caveRepo.IsOwner(ctx, caveID, actorID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check cave ownership")
	}
	if !owns {
		return pkgerrors.New(pkgerrors.CodeForbidden, "caller does not own this cave")
	}
	return nil
}

func (s *service) Create(ctx context.Context, params CreateParams) (*models.Shipment, error) {
	if params.SubscriptionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id required")
	}
	if !params.Carrier.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier required")
	}
	// an empty selection is fine; tier-default wines can be assigned later
	for _, sel := range params.Selections {
		if sel.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "selection quantity must be positive")
		}
	}

	subscription, err := s.subscriptionSvc.GetByID(ctx, params.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCaveAccess(ctx, subscription.WineCaveID, params.ActorID, params.ActorRole); err != nil {
		return nil, err
	}

	// reject selections the shelf cannot cover before anything is written
	for _, sel := range params.Selections {
		available, err := s.inventorySvc.AvailableStock(ctx, sel.WineID)
		if err != nil {
			return nil, err
		}
		if available < sel.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock for selection").
				WithDetails(map[string]string{"wine_id": sel.WineID.String()})
		}
	}

	items := make([]models.ShipmentItem, 0, len(params.Selections))
	for _, sel := range params.Selections {
		items = append(items, models.ShipmentItem{WineID: sel.WineID, Quantity: sel.Quantity})
	}

	shipment := &models.Shipment{
		SubscriptionID: subscription.ID,
		WineCaveID:     subscription.WineCaveID,
		Carrier:        params.Carrier,
		Status:         enums.ShipmentStatusPending,
		ShipmentDate:   firstOfNextMonth(time.Now().UTC()),
		Items:          items,
	}
	if err := s.repo.Create(ctx, shipment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shipment")
	}

	caveName := ""
	if cave, caveErr := s.caveRepo.GetByID(ctx, subscription.WineCaveID); caveErr == nil {
		caveName = cave.Name
	}
	s.notifyMember(ctx, subscription.MemberID, "created", map[string]string{
		"cave_name": caveName,
		"carrier":   params.Carrier.String(),
	})

	return shipment, nil
}

// GenerateLabel asks the carrier for a label. The status write only happens
// after the collaborator succeeds, so a carrier failure leaves the shipment
// untouched.
func (s *service) GenerateLabel(ctx context.Context, params ActionParams) (*models.Shipment, error) {
	shipment, subscription, err := s.load(ctx, params.ShipmentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCaveAccess(ctx, shipment.WineCaveID, params.ActorID, params.ActorRole); err != nil {
		return nil, err
	}
	if shipment.Status != enums.ShipmentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shipment already labeled")
	}

	recipientName := ""
	if member, memberErr := s.memberRepo.GetByID(ctx, subscription.MemberID); memberErr == nil {
		recipientName = fmt.Sprintf("%s %s", member.FirstName, member.LastName)
	}

	bottles := 0
	for _, item := range shipment.Items {
		bottles += item.Quantity
	}

	label, err := s.carrier.CreateLabel(ctx, carrier.LabelRequest{
		Carrier:     shipment.Carrier,
		ShipmentRef: shipment.ID.String(),
		Recipient: carrier.LabelRecipient{
			Name:       recipientName,
			Line1:      subscription.DeliveryAddress.Line1,
			Line2:      subscription.DeliveryAddress.Line2,
			City:       subscription.DeliveryAddress.City,
			PostalCode: subscription.DeliveryAddress.PostalCode,
			Country:    subscription.DeliveryAddress.Country,
		},
		BottleCount: bottles,
	})
	if err != nil {
		return nil, err
	}

	labeled, err := s.repo.SetLabel(ctx, shipment.ID, label.TrackingNumber)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store label")
	}
	if !labeled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shipment was labeled concurrently")
	}

	shipment.Status = enums.ShipmentStatusLabeled
	shipment.TrackingNumber = &label.TrackingNumber
	return shipment, nil
}

// Track is readable by the cave owner and the subscription's member alike.
func (s *service) Track(ctx context.Context, params ActionParams) (*carrier.TrackingInfo, error) {
	shipment, subscription, err := s.load(ctx, params.ShipmentID)
	if err != nil {
		return nil, err
	}

	if params.ActorRole != enums.MemberRoleAdmin && subscription.MemberID != params.ActorID {
		owns, ownErr := s.caveRepo.IsOwner(ctx, shipment.WineCaveID, params.ActorID)
		if ownErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ownErr, "check cave ownership")
		}
		if !owns {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "caller may not track this shipment")
		}
	}

	if shipment.TrackingNumber == nil || *shipment.TrackingNumber == "" {
		return &carrier.TrackingInfo{Status: TrackingStatusUnavailable}, nil
	}

	info, err := s.carrier.GetTracking(ctx, shipment.Carrier, *shipment.TrackingNumber)
	if err != nil {
		return nil, err
	}

	// persist a carrier-reported move when it is a legal transition
	if next, parseErr := enums.ParseShipmentStatus(info.Status); parseErr == nil && next != shipment.Status {
		if _, applyErr := s.applyStatus(ctx, shipment, subscription, next); applyErr != nil {
			warnCtx := s.logger.WithFields(ctx, map[string]any{
				"shipment_id": shipment.ID.String(),
				"status":      info.Status,
			})
			s.logger.Warn(warnCtx, "carrier-reported status could not be applied")
		}
	}
	return info, nil
}

func (s *service) UpdateStatus(ctx context.Context, params UpdateStatusParams) (*models.Shipment, error) {
	if !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown shipment status")
	}

	shipment, subscription, err := s.load(ctx, params.ShipmentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCaveAccess(ctx, shipment.WineCaveID, params.ActorID, params.ActorRole); err != nil {
		return nil, err
	}
	return s.applyStatus(ctx, shipment, subscription, params.Status)
}

func (s *service) load(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, *models.WineSubscription, error) {
	if shipmentID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment id required")
	}
	shipment, err := s.repo.GetByID(ctx, shipmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}
	subscription, err := s.subscriptionSvc.GetByID(ctx, shipment.SubscriptionID)
	if err != nil {
		return nil, nil, err
	}
	return shipment, subscription, nil
}

// applyStatus performs a guarded transition. Reaching delivered also
// decrements stock for every item in the same transaction as the status
// write, then advances the subscription schedule and notifies the member.
func (s *service) applyStatus(ctx context.Context, shipment *models.Shipment, subscription *models.WineSubscription, next enums.ShipmentStatus) (*models.Shipment, error) {
	resumedFrom := enums.ShipmentStatus("")
	if shipment.DelayedFrom != nil {
		resumedFrom = *shipment.DelayedFrom
	}
	if !shipment.Status.CanTransition(next, resumedFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shipment status transition not allowed").
			WithDetails(map[string]string{"from": shipment.Status.String(), "to": next.String()})
	}

	transition := TransitionParams{
		ShipmentID: shipment.ID,
		From:       shipment.Status,
		To:         next,
	}
	switch {
	case next == enums.ShipmentStatusDelayed:
		from := shipment.Status
		transition.DelayedFrom = &from
	case shipment.Status == enums.ShipmentStatusDelayed:
		transition.ClearDelay = true
	}

	delivered := next == enums.ShipmentStatusDelivered
	if delivered {
		now := time.Now().UTC()
		transition.DeliveredAt = &now
	}

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).Transition(ctx, transition)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition shipment")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "shipment was transitioned concurrently")
		}
		if delivered {
			for _, item := range shipment.Items {
				if err := s.inventorySvc.DecrementStock(ctx, tx, item.WineID, item.Quantity); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	shipment.Status = next
	shipment.DelayedFrom = transition.DelayedFrom
	if transition.ClearDelay {
		shipment.DelayedFrom = nil
	}
	shipment.DeliveredAt = transition.DeliveredAt

	if delivered {
		if _, err := s.subscriptionSvc.AdvanceSchedule(ctx, subscription.ID); err != nil {
			// stock and status are committed; the schedule is the only
			// remaining piece and the caller should retry it
			failCtx := s.logger.WithField(ctx, "subscription_id", subscription.ID.String())
			s.logger.Error(failCtx, "delivery reconciliation incomplete: schedule not advanced", err)
			return nil, err
		}

		caveName := ""
		if cave, caveErr := s.caveRepo.GetByID(ctx, shipment.WineCaveID); caveErr == nil {
			caveName = cave.Name
		}
		s.notifyMember(ctx, subscription.MemberID, "delivered", map[string]string{"cave_name": caveName})
	}

	tracking := ""
	if shipment.TrackingNumber != nil {
		tracking = *shipment.TrackingNumber
	}
	switch next {
	case enums.ShipmentStatusShipped:
		s.notifyMember(ctx, subscription.MemberID, "shipped", map[string]string{
			"carrier":         shipment.Carrier.String(),
			"tracking_number": tracking,
		})
	case enums.ShipmentStatusDelayed:
		s.notifyMember(ctx, subscription.MemberID, "delayed", map[string]string{"tracking_number": tracking})
	}

	return shipment, nil
}

func (s *service) notifyMember(ctx context.Context, memberID uuid.UUID, templateKey string, data map[string]string) {
	_, err := s.notifier.Send(ctx, notifications.SendParams{
		RecipientID: memberID,
		Category:    enums.NotificationCategoryShipment,
		TemplateKey: templateKey,
		Data:        data,
	})
	if err != nil {
		failCtx := s.logger.WithField(ctx, "template_key", templateKey)
		s.logger.Warn(failCtx, "shipment notification failed")
	}
}

// firstOfNextMonth returns midnight UTC on the first day of the month after t.
func firstOfNextMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
