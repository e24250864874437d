package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wine is a sellable, inventoried SKU. StockQuantity is only ever mutated
// through atomic SQL increments and carries a CHECK (stock_quantity >= 0).
type Wine struct {
	ID                uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	WineCaveID        uuid.UUID        `gorm:"column:wine_cave_id;type:uuid;not null;index"`
	SupplierID        *uuid.UUID       `gorm:"column:supplier_id;type:uuid;index"`
	Name              string           `gorm:"column:name;not null"`
	Varietal          string           `gorm:"column:varietal;not null"`
	Vintage           int              `gorm:"column:vintage;not null"`
	Price             decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	CostPrice         *decimal.Decimal `gorm:"column:cost_price;type:numeric(12,2)"`
	StockQuantity     int              `gorm:"column:stock_quantity;not null;default:0;check:chk_wines_stock_quantity,stock_quantity >= 0"`
	LowStockThreshold int              `gorm:"column:low_stock_threshold;not null;default:10"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// WineRating is a member's 1-5 score for a wine.
type WineRating struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	WineID    uuid.UUID `gorm:"column:wine_id;type:uuid;not null;index"`
	MemberID  uuid.UUID `gorm:"column:member_id;type:uuid;not null"`
	Score     int       `gorm:"column:score;not null;check:chk_wine_ratings_score,score BETWEEN 1 AND 5"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
