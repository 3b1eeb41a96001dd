// Package database defines the persistence port for request contexts and
// escalation cases.
package database

import (
	"context"
	"time"

	"github.com/careflow-io/careflow/internal/domain/escalation"
	"github.com/careflow-io/careflow/internal/domain/request"
)

// Store is the port interface for engine persistence.
//
// Requests are upserted by id; the suspended-request lookups key on
// (customer_id, order_id) with state AWAITING_IMAGE, implementing the
// durable suspend-and-resume pattern.
//
// ClaimCase and ResolveCase enforce the case lifecycle atomically:
// ClaimCase returns domain.ErrAlreadyClaimed unless the case is pending,
// ResolveCase returns domain.ErrInvalidTransition unless it is in_review.
type Store interface {
	// Requests
	SaveRequest(ctx context.Context, r *request.Request) error
	GetRequest(ctx context.Context, id string) (*request.Request, error)
	GetSuspended(ctx context.Context, customerID, orderID string) (*request.Request, error)
	ListSuspendedBefore(ctx context.Context, cutoff time.Time) ([]request.Request, error)

	// Cases
	CreateCase(ctx context.Context, c *escalation.Case) error
	GetCase(ctx context.Context, id string) (*escalation.Case, error)
	ListPendingCases(ctx context.Context) ([]escalation.Case, error)
	ListCasesByCustomer(ctx context.Context, customerID string) ([]escalation.Case, error)
	ClaimCase(ctx context.Context, id, agentID string) (*escalation.Case, error)
	ResolveCase(ctx context.Context, id, note string, outcome escalation.Outcome) (*escalation.Case, error)
}
