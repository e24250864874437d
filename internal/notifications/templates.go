package notifications

import (
	"strings"

	"github.com/avigneron/cavebox-backend/pkg/enums"
)

// template is a fixed title/message pair. Placeholders use {name} syntax and
// are substituted from the caller's data map; unmatched placeholders stay
// verbatim on purpose.
type template struct {
	Title   string
	Message string
}

var templatesByCategory = map[enums.NotificationCategory]map[string]template{
	enums.NotificationCategorySubscription: {
		"activated": {
			Title:   "Subscription active",
			Message: "Your subscription to {cave_name} is now active. First delivery planned for {next_shipment_date}.",
		},
		"paused": {
			Title:   "Subscription paused",
			Message: "Your subscription to {cave_name} has been paused. No further deliveries will be scheduled until it resumes.",
		},
		"payment_failed": {
			Title:   "Payment issue",
			Message: "We could not process the payment for your subscription to {cave_name}. It has been paused until payment succeeds.",
		},
		"cancelled": {
			Title:   "Subscription cancelled",
			Message: "Your subscription to {cave_name} has been cancelled.",
		},
	},
	enums.NotificationCategoryShipment: {
		"created": {
			Title:   "Shipment on its way soon",
			Message: "Your next delivery from {cave_name} has been prepared and will ship via {carrier}.",
		},
		"shipped": {
			Title:   "Shipment dispatched",
			Message: "Your delivery is with {carrier}. Track it with number {tracking_number}.",
		},
		"delayed": {
			Title:   "Shipment delayed",
			Message: "Your delivery (tracking {tracking_number}) is delayed. We will keep you posted.",
		},
		"delivered": {
			Title:   "Shipment delivered",
			Message: "Your delivery from {cave_name} has arrived. Enjoy!",
		},
	},
	enums.NotificationCategoryInventory: {
		"low_stock": {
			Title:   "Low stock alert",
			Message: "{wine_name} is down to {stock_quantity} bottles (threshold {threshold}).",
		},
		"purchase_order_sent": {
			Title:   "Purchase order sent",
			Message: "A replenishment order for {item_count} wines was sent to {supplier_name}, expected {expected_delivery_date}.",
		},
		"order_received": {
			Title:   "Purchase order received",
			Message: "The order from {supplier_name} has been received and stock levels were updated.",
		},
	},
}

// lookupTemplate returns the fixed template for a (category, key) pair.
func lookupTemplate(category enums.NotificationCategory, key string) (template, bool) {
	byKey, ok := templatesByCategory[category]
	if !ok {
		return template{}, false
	}
	tpl, ok := byKey[key]
	return tpl, ok
}

// render substitutes {placeholder} tokens from data. Unknown placeholders are
// left as-is.
func render(text string, data map[string]string) string {
	if len(data) == 0 {
		return text
	}
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
