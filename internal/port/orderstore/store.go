// Package orderstore defines the read-only port to the external order store.
package orderstore

import (
	"context"

	"github.com/careflow-io/careflow/internal/domain/order"
)

// Store is the read-only accessor for order records.
// GetOrder returns domain.ErrNotFound when the order does not exist and
// domain.ErrUnavailable on transport failure.
type Store interface {
	GetOrder(ctx context.Context, orderID string) (*order.Order, error)

	// ListCustomerOrders returns the customer's orders, most recent first.
	// Used to infer the order a refund claim refers to when the message
	// carries no order id but does carry an image.
	ListCustomerOrders(ctx context.Context, customerID string) ([]order.Order, error)
}
