// Package order defines the Order snapshot read from the order store.
package order

import "time"

// Status represents the fulfillment state of an order.
type Status string

const (
	StatusPlaced    Status = "placed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// Order is an immutable snapshot of an order record for the duration of one
// workflow run. The engine never writes orders.
type Order struct {
	ID             string    `json:"order_id"`
	CustomerID     string    `json:"customer_id"`
	Status         Status    `json:"status"`
	RefundEligible bool      `json:"refund_eligible"`
	Value          float64   `json:"value"`
	TrackingInfo   string    `json:"tracking_info,omitempty"`
	OrderedAt      time.Time `json:"ordered_at"`
}
