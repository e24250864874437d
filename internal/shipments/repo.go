package shipments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avigneron/cavebox-backend/pkg/db/models"
	"github.com/avigneron/cavebox-backend/pkg/enums"
)

// Repository exposes persistence helpers for shipments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, shipment *models.Shipment) error
	GetByID(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error)
	SetLabel(ctx context.Context, shipmentID uuid.UUID, trackingNumber string) (bool, error)
	Transition(ctx context.Context, params TransitionParams) (bool, error)
	HasOpenShipment(ctx context.Context, subscriptionID uuid.UUID) (bool, error)
	ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]models.Shipment, error)
	ListUndelivered(ctx context.Context, limit int) ([]models.Shipment, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a shipments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// TransitionParams is a guarded status write. From must match the current row
// for the write to land, which serializes racing transitions.
type TransitionParams struct {
	ShipmentID  uuid.UUID
	From        enums.ShipmentStatus
	To          enums.ShipmentStatus
	DelayedFrom *enums.ShipmentStatus
	ClearDelay  bool
	DeliveredAt *time.Time
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Create(shipment).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := r.db.WithContext(ctx).Preload("Items").First(&shipment, "id = ?", shipmentID).Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

// SetLabel stores the tracking number and moves pending to labeled in one
// guarded write.
func (r *repositoryImpl) SetLabel(ctx context.Context, shipmentID uuid.UUID, trackingNumber string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ? AND status = ?", shipmentID, enums.ShipmentStatusPending).
		Updates(map[string]any{
			"status":          enums.ShipmentStatusLabeled,
			"tracking_number": trackingNumber,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) Transition(ctx context.Context, params TransitionParams) (bool, error) {
	updates := map[string]any{"status": params.To}
	if params.DelayedFrom != nil {
		updates["delayed_from"] = *params.DelayedFrom
	}
	if params.ClearDelay {
		updates["delayed_from"] = nil
	}
	if params.DeliveredAt != nil {
		updates["delivered_at"] = *params.DeliveredAt
	}

	result := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ? AND status = ?", params.ShipmentID, params.From).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// HasOpenShipment reports whether an undelivered shipment already exists for
// the subscription. Used to keep the dispatch loop idempotent across ticks.
func (r *repositoryImpl) HasOpenShipment(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("subscription_id = ? AND status <> ?", subscriptionID, enums.ShipmentStatusDelivered).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListUndelivered returns labeled shipments still moving through the
// carrier network, oldest first.
func (r *repositoryImpl) ListUndelivered(ctx context.Context, limit int) ([]models.Shipment, error) {
	if limit <= 0 {
		limit = 100
	}
	var shipments []models.Shipment
	err := r.db.WithContext(ctx).
		Where("status NOT IN ?", []enums.ShipmentStatus{enums.ShipmentStatusPending, enums.ShipmentStatusDelivered}).
		Where("tracking_number IS NOT NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&shipments).Error
	if err != nil {
		return nil, err
	}
	return shipments, nil
}

func (r *repositoryImpl) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]models.Shipment, error) {
	var shipments []models.Shipment
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC").
		Find(&shipments).Error
	if err != nil {
		return nil, err
	}
	return shipments, nil
}
