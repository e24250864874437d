package models

import (
	"time"

	"github.com/google/uuid"
)

// WineCave is a selling business. It owns its wines, tiers, shipments and
// purchase orders; ownership checks always resolve through OwnerID.
type WineCave struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID   uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	Region    *string   `gorm:"column:region"`
	Email     string    `gorm:"column:email;not null"`
	Phone     *string   `gorm:"column:phone"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
