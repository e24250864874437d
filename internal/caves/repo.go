package caves

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avigneron/cavebox-backend/pkg/db/models"
)

// Repository exposes persistence helpers for wine caves.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByID(ctx context.Context, caveID uuid.UUID) (*models.WineCave, error)
	IsOwner(ctx context.Context, caveID, memberID uuid.UUID) (bool, error)
	GetTier(ctx context.Context, tierID uuid.UUID) (*models.SubscriptionTier, error)
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a caves repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) GetByID(ctx context.Context, caveID uuid.UUID) (*models.WineCave, error) {
	var cave models.WineCave
	if err := r.db.WithContext(ctx).First(&cave, "id = ?", caveID).Error; err != nil {
		return nil, err
	}
	return &cave, nil
}

func (r *repositoryImpl) IsOwner(ctx context.Context, caveID, memberID uuid.UUID) (bool, error) {
	var cave models.WineCave
	err := r.db.WithContext(ctx).Select("id").First(&cave, "id = ? AND owner_id = ?", caveID, memberID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repositoryImpl) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.WineCave{}).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repositoryImpl) GetTier(ctx context.Context, tierID uuid.UUID) (*models.SubscriptionTier, error) {
	var tier models.SubscriptionTier
	if err := r.db.WithContext(ctx).First(&tier, "id = ?", tierID).Error; err != nil {
		return nil, err
	}
	return &tier, nil
}
