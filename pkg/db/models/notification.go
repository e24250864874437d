package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avigneron/cavebox-backend/pkg/enums"
)

// Notification stores a rendered in-app message for one recipient. Rows are
// immutable after creation except for ReadAt; expiry-driven cleanup deletes
// them outright.
type Notification struct {
	ID          uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	RecipientID uuid.UUID                  `gorm:"column:recipient_id;type:uuid;not null;index"`
	Category    enums.NotificationCategory `gorm:"column:category;type:notification_category;not null"`
	TemplateKey string                     `gorm:"column:template_key;not null"`
	Title       string                     `gorm:"column:title;type:text;not null"`
	Message     string                     `gorm:"column:message;type:text;not null"`
	ReadAt      *time.Time                 `gorm:"column:read_at"`
	ExpiresAt   *time.Time                 `gorm:"column:expires_at"`
	CreatedAt   time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
