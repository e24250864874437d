package enums

import "fmt"

// NotificationCategory groups notification templates by the flow that emits them.
type NotificationCategory string

const (
	NotificationCategorySubscription NotificationCategory = "subscription"
	NotificationCategoryShipment     NotificationCategory = "shipment"
	NotificationCategoryInventory    NotificationCategory = "inventory"
)

var validNotificationCategories = []NotificationCategory{
	NotificationCategorySubscription,
	NotificationCategoryShipment,
	NotificationCategoryInventory,
}

// String implements fmt.Stringer.
func (n NotificationCategory) String() string {
	return string(n)
}

// IsValid checks whether the given category matches the canonical enum.
func (n NotificationCategory) IsValid() bool {
	for _, candidate := range validNotificationCategories {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationCategory converts raw strings into NotificationCategory.
func ParseNotificationCategory(value string) (NotificationCategory, error) {
	for _, candidate := range validNotificationCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification category %q", value)
}
