package enums

import "fmt"

// ShipmentStatus models the fulfillment pipeline for one physical delivery.
//
// The main track only ever moves forward:
//
//	pending → labeled → shipped → in_transit → out_for_delivery → delivered
//
// `delayed` is a side branch reachable from any non-terminal state; resuming
// from it returns to the state recorded when the delay began.
type ShipmentStatus string

const (
	ShipmentStatusPending        ShipmentStatus = "pending"
	ShipmentStatusLabeled        ShipmentStatus = "labeled"
	ShipmentStatusShipped        ShipmentStatus = "shipped"
	ShipmentStatusInTransit      ShipmentStatus = "in_transit"
	ShipmentStatusOutForDelivery ShipmentStatus = "out_for_delivery"
	ShipmentStatusDelivered      ShipmentStatus = "delivered"
	ShipmentStatusDelayed        ShipmentStatus = "delayed"
)

var validShipmentStatuses = []ShipmentStatus{
	ShipmentStatusPending,
	ShipmentStatusLabeled,
	ShipmentStatusShipped,
	ShipmentStatusInTransit,
	ShipmentStatusOutForDelivery,
	ShipmentStatusDelivered,
	ShipmentStatusDelayed,
}

// shipmentStatusRank orders the forward-only track. delayed is not ranked.
var shipmentStatusRank = map[ShipmentStatus]int{
	ShipmentStatusPending:        0,
	ShipmentStatusLabeled:        1,
	ShipmentStatusShipped:        2,
	ShipmentStatusInTransit:      3,
	ShipmentStatusOutForDelivery: 4,
	ShipmentStatusDelivered:      5,
}

// String implements fmt.Stringer.
func (s ShipmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s ShipmentStatus) IsValid() bool {
	for _, candidate := range validShipmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the shipment can no longer change.
func (s ShipmentStatus) IsTerminal() bool {
	return s == ShipmentStatusDelivered
}

// CanTransition reports whether moving from s to next is legal. resumedFrom
// is the status recorded when the shipment entered delayed, and is only
// consulted when s is delayed.
func (s ShipmentStatus) CanTransition(next ShipmentStatus, resumedFrom ShipmentStatus) bool {
	if !s.IsValid() || !next.IsValid() || s == next {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	if next == ShipmentStatusDelayed {
		return true
	}
	if s == ShipmentStatusDelayed {
		// Resume lands back on the pre-delay status, or anything past it.
		from, ok := shipmentStatusRank[resumedFrom]
		if !ok {
			return false
		}
		return shipmentStatusRank[next] >= from
	}
	return shipmentStatusRank[next] > shipmentStatusRank[s]
}

// ParseShipmentStatus converts raw input into a ShipmentStatus.
func ParseShipmentStatus(value string) (ShipmentStatus, error) {
	for _, candidate := range validShipmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipment status %q", value)
}
