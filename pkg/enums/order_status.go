package enums

import "fmt"

// OrderStatus is the sales workflow state the ledger reads and occasionally advances.
type OrderStatus string

const (
	OrderStatusDraft                OrderStatus = "draft"
	OrderStatusSentForSignature     OrderStatus = "sent_for_signature"
	OrderStatusSigned               OrderStatus = "signed"
	OrderStatusReadyForManufacturer OrderStatus = "ready_for_manufacturer"
	OrderStatusCancelled            OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusDraft,
	OrderStatusSentForSignature,
	OrderStatusSigned,
	OrderStatusReadyForManufacturer,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
