package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avigneron/cavebox-backend/pkg/db/models"
	"github.com/avigneron/cavebox-backend/pkg/enums"
)

// Repository exposes persistence helpers for wine subscriptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, subscription *models.WineSubscription) error
	GetByID(ctx context.Context, subscriptionID uuid.UUID) (*models.WineSubscription, error)
	UpdateStatus(ctx context.Context, subscriptionID uuid.UUID, status enums.SubscriptionStatus, cancelledAt *time.Time) error
	SetNextShipmentDate(ctx context.Context, subscriptionID uuid.UUID, next time.Time) error
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]models.WineSubscription, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a subscriptions repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, subscription *models.WineSubscription) error {
	return r.db.WithContext(ctx).Create(subscription).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, subscriptionID uuid.UUID) (*models.WineSubscription, error) {
	var subscription models.WineSubscription
	if err := r.db.WithContext(ctx).First(&subscription, "id = ?", subscriptionID).Error; err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *repositoryImpl) UpdateStatus(ctx context.Context, subscriptionID uuid.UUID, status enums.SubscriptionStatus, cancelledAt *time.Time) error {
	updates := map[string]any{"status": status}
	if cancelledAt != nil {
		updates["cancelled_at"] = *cancelledAt
	}
	return r.db.WithContext(ctx).
		Model(&models.WineSubscription{}).
		Where("id = ?", subscriptionID).
		Updates(updates).Error
}

func (r *repositoryImpl) SetNextShipmentDate(ctx context.Context, subscriptionID uuid.UUID, next time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.WineSubscription{}).
		Where("id = ?", subscriptionID).
		UpdateColumn("next_shipment_date", next).Error
}

// ListDue returns active subscriptions whose next shipment date has arrived,
// oldest first. Paused and cancelled subscriptions are skipped here, which is
// how pausing stops the scheduler without clearing the date.
func (r *repositoryImpl) ListDue(ctx context.Context, asOf time.Time, limit int) ([]models.WineSubscription, error) {
	if limit <= 0 {
		limit = 100
	}
	var due []models.WineSubscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_shipment_date <= ?", enums.SubscriptionStatusActive, asOf).
		Order("next_shipment_date ASC, id ASC").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, err
	}
	return due, nil
}
