package recommendations

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// candidateRow is one scorable wine with its aggregated rating.
type candidateRow struct {
	ID        uuid.UUID       `gorm:"column:id"`
	Name      string          `gorm:"column:name"`
	Varietal  string          `gorm:"column:varietal"`
	Price     decimal.Decimal `gorm:"column:price"`
	AvgRating float64         `gorm:"column:avg_rating"`
}

// Repository loads scoring candidates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListCandidates(ctx context.Context, caveID uuid.UUID) ([]candidateRow, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a recommendations repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// ListCandidates returns in-stock wines for a cave in catalog order. Wines
// without ratings come back with avg_rating 0 rather than being excluded.
func (r *repositoryImpl) ListCandidates(ctx context.Context, caveID uuid.UUID) ([]candidateRow, error) {
	var rows []candidateRow
	err := r.db.WithContext(ctx).
		Table("wines").
		Select("wines.id, wines.name, wines.varietal, wines.price, COALESCE(AVG(wine_ratings.score), 0) AS avg_rating").
		Joins("LEFT JOIN wine_ratings ON wine_ratings.wine_id = wines.id").
		Where("wines.wine_cave_id = ? AND wines.stock_quantity > 0", caveID).
		Group("wines.id, wines.name, wines.varietal, wines.price, wines.created_at").
		Order("wines.created_at ASC, wines.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
