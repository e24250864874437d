package members

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avigneron/cavebox-backend/pkg/db/models"
)

// Repository exposes persistence helpers for member accounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByID(ctx context.Context, memberID uuid.UUID) (*models.Member, error)
	GetPreferences(ctx context.Context, memberID uuid.UUID) (*models.MemberPreferences, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a members repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) GetByID(ctx context.Context, memberID uuid.UUID) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).First(&member, "id = ?", memberID).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repositoryImpl) GetPreferences(ctx context.Context, memberID uuid.UUID) (*models.MemberPreferences, error) {
	var prefs models.MemberPreferences
	if err := r.db.WithContext(ctx).First(&prefs, "member_id = ?", memberID).Error; err != nil {
		return nil, err
	}
	return &prefs, nil
}
