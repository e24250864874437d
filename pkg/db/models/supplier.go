package models

import (
	"time"

	"github.com/google/uuid"
)

// Supplier is a wine source used for replenishment.
type Supplier struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	WineCaveID   uuid.UUID `gorm:"column:wine_cave_id;type:uuid;not null;index"`
	Name         string    `gorm:"column:name;not null"`
	Email        string    `gorm:"column:email;not null"`
	Phone        *string   `gorm:"column:phone"`
	LeadTimeDays int       `gorm:"column:lead_time_days;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
