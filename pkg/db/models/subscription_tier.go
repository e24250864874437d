package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionTier is a purchasable plan offered by one cave.
type SubscriptionTier struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	WineCaveID      uuid.UUID       `gorm:"column:wine_cave_id;type:uuid;not null;index"`
	Name            string          `gorm:"column:name;not null"`
	Price           decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	BottlesPerMonth int             `gorm:"column:bottles_per_month;not null;default:1"`
	IsActive        bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
