package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avigneron/cavebox-backend/pkg/enums"
)

// Shipment is one physical delivery instance for a subscription. DelayedFrom
// records the status the shipment held when it entered delayed, so resuming
// can land back on the right track position.
type Shipment struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	SubscriptionID uuid.UUID             `gorm:"column:subscription_id;type:uuid;not null;index"`
	WineCaveID     uuid.UUID             `gorm:"column:wine_cave_id;type:uuid;not null;index"`
	Carrier        enums.Carrier         `gorm:"column:carrier;type:carrier;not null"`
	Status         enums.ShipmentStatus  `gorm:"column:status;type:shipment_status;not null;default:'pending'"`
	DelayedFrom    *enums.ShipmentStatus `gorm:"column:delayed_from;type:shipment_status"`
	TrackingNumber *string               `gorm:"column:tracking_number"`
	ShipmentDate   time.Time             `gorm:"column:shipment_date;not null"`
	DeliveredAt    *time.Time            `gorm:"column:delivered_at"`
	Items          []ShipmentItem        `gorm:"foreignKey:ShipmentID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// ShipmentItem is a wine+quantity line within a shipment.
type ShipmentItem struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ShipmentID uuid.UUID `gorm:"column:shipment_id;type:uuid;not null;index"`
	WineID     uuid.UUID `gorm:"column:wine_id;type:uuid;not null"`
	Quantity   int       `gorm:"column:quantity;not null"`
}
