package enums

import "fmt"

// PurchaseOrderStatus tracks a replenishment request to a supplier.
type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft     PurchaseOrderStatus = "draft"
	PurchaseOrderStatusSent      PurchaseOrderStatus = "sent"
	PurchaseOrderStatusConfirmed PurchaseOrderStatus = "confirmed"
	PurchaseOrderStatusReceived  PurchaseOrderStatus = "received"
	PurchaseOrderStatusCancelled PurchaseOrderStatus = "cancelled"
)

var validPurchaseOrderStatuses = []PurchaseOrderStatus{
	PurchaseOrderStatusDraft,
	PurchaseOrderStatusSent,
	PurchaseOrderStatusConfirmed,
	PurchaseOrderStatusReceived,
	PurchaseOrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s PurchaseOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s PurchaseOrderStatus) IsValid() bool {
	for _, candidate := range validPurchaseOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the order can no longer transition. Received
// orders are retained indefinitely; cancelled ones are dead ends.
func (s PurchaseOrderStatus) IsTerminal() bool {
	return s == PurchaseOrderStatusReceived || s == PurchaseOrderStatusCancelled
}

var purchaseOrderStatusRank = map[PurchaseOrderStatus]int{
	PurchaseOrderStatusDraft:     0,
	PurchaseOrderStatusSent:      1,
	PurchaseOrderStatusConfirmed: 2,
	PurchaseOrderStatusReceived:  3,
}

// CanTransition reports whether a move to next is allowed. Orders only move
// forward through the rank; cancellation is allowed from any non-terminal
// state.
func (s PurchaseOrderStatus) CanTransition(next PurchaseOrderStatus) bool {
	if s.IsTerminal() || !next.IsValid() {
		return false
	}
	if next == PurchaseOrderStatusCancelled {
		return true
	}
	current, ok := purchaseOrderStatusRank[s]
	target, nextOK := purchaseOrderStatusRank[next]
	return ok && nextOK && target > current
}

// ParsePurchaseOrderStatus converts raw input into a PurchaseOrderStatus.
func ParsePurchaseOrderStatus(value string) (PurchaseOrderStatus, error) {
	for _, candidate := range validPurchaseOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase order status %q", value)
}
