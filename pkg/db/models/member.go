package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avigneron/cavebox-backend/pkg/enums"
	"github.com/avigneron/cavebox-backend/pkg/types"
)

// Member is a subscribing customer account.
type Member struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Email           string           `gorm:"column:email;not null;uniqueIndex"`
	FirstName       string           `gorm:"column:first_name;not null"`
	LastName        string           `gorm:"column:last_name;not null"`
	Phone           *string          `gorm:"column:phone"`
	Role            enums.MemberRole `gorm:"column:role;type:member_role;not null;default:'member'"`
	DeliveryAddress *types.Address   `gorm:"column:delivery_address;type:jsonb"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// MemberPreferences captures taste and budget hints used by the scorer.
type MemberPreferences struct {
	MemberID           uuid.UUID `gorm:"column:member_id;type:uuid;primaryKey"`
	PreferredVarietals []string         `gorm:"column:preferred_varietals;serializer:json"`
	MinPrice           *decimal.Decimal `gorm:"column:min_price;type:numeric(12,2)"`
	MaxPrice           *decimal.Decimal `gorm:"column:max_price;type:numeric(12,2)"`
	UpdatedAt          time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
