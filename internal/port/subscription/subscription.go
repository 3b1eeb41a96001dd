// Package subscription defines the port to the external subscription scheduler.
package subscription

import (
	"context"
	"time"
)

// Plan is a customer subscription record as the external scheduler holds it.
type Plan struct {
	ID          string    `json:"subscription_id"`
	CustomerID  string    `json:"customer_id"`
	Product     string    `json:"product"`
	Frequency   string    `json:"frequency"`
	Active      bool      `json:"active"`
	NextRenewal time.Time `json:"next_renewal"`
}

// ChangeRequest is a subscription-change instruction forwarded on behalf of
// the customer.
type ChangeRequest struct {
	SubscriptionID string `json:"subscription_id"`
	CustomerID     string `json:"customer_id"`
	Product        string `json:"product,omitempty"`
	Frequency      string `json:"frequency,omitempty"`
	Cancel         bool   `json:"cancel,omitempty"`
}

// Service talks to the external subscription scheduler. Instructions are
// fire-and-confirm; a missing ack is a returned error.
type Service interface {
	Create(ctx context.Context, plan Plan) (Plan, error)
	Update(ctx context.Context, req ChangeRequest) error
	ListByCustomer(ctx context.Context, customerID string) ([]Plan, error)
}
