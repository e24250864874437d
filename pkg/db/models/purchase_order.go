package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avigneron/cavebox-backend/pkg/enums"
)

// PurchaseOrder is a replenishment request to one supplier. TotalAmount is
// always the sum of its items' unit_price * quantity.
type PurchaseOrder struct {
	ID                   uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	WineCaveID           uuid.UUID                 `gorm:"column:wine_cave_id;type:uuid;not null;index"`
	SupplierID           uuid.UUID                 `gorm:"column:supplier_id;type:uuid;not null;index"`
	Status               enums.PurchaseOrderStatus `gorm:"column:status;type:purchase_order_status;not null;default:'draft'"`
	TotalAmount          decimal.Decimal           `gorm:"column:total_amount;type:numeric(12,2);not null"`
	ExpectedDeliveryDate time.Time                 `gorm:"column:expected_delivery_date;not null"`
	Notes                *string                   `gorm:"column:notes"`
	Items                []PurchaseOrderItem       `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE"`
	ReceivedAt           *time.Time                `gorm:"column:received_at"`
	CreatedAt            time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// PurchaseOrderItem is a wine+quantity+price line within a purchase order.
type PurchaseOrderItem struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PurchaseOrderID uuid.UUID       `gorm:"column:purchase_order_id;type:uuid;not null;index"`
	WineID          uuid.UUID       `gorm:"column:wine_id;type:uuid;not null"`
	Quantity        int             `gorm:"column:quantity;not null"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
}
