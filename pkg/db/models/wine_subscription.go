package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avigneron/cavebox-backend/pkg/enums"
	"github.com/avigneron/cavebox-backend/pkg/types"
)

// WineSubscription is a member's recurring commitment to one cave's tier.
// A partial unique index (member_id, wine_cave_id) WHERE status = 'active'
// guarantees at most one live subscription per pair.
type WineSubscription struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	MemberID           uuid.UUID                `gorm:"column:member_id;type:uuid;not null;index;uniqueIndex:uniq_active_subscription,where:status = 'active'"`
	WineCaveID         uuid.UUID                `gorm:"column:wine_cave_id;type:uuid;not null;index;uniqueIndex:uniq_active_subscription,where:status = 'active'"`
	SubscriptionTierID uuid.UUID                `gorm:"column:subscription_tier_id;type:uuid;not null"`
	Status             enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'active'"`
	StartDate          time.Time                `gorm:"column:start_date;not null"`
	NextShipmentDate   time.Time                `gorm:"column:next_shipment_date;not null;index"`
	DeliveryAddress    types.Address            `gorm:"column:delivery_address;type:jsonb;not null"`
	CancelledAt        *time.Time               `gorm:"column:cancelled_at"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
