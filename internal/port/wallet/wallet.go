// Package wallet defines the port to the external wallet collaborator.
package wallet

import "context"

// Service issues fire-and-confirm wallet instructions. A missing ack is a
// returned error; the caller treats it as a technical failure.
type Service interface {
	Credit(ctx context.Context, customerID string, amount float64) error
	Balance(ctx context.Context, customerID string) (float64, error)
}
