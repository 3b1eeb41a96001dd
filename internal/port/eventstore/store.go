// Package eventstore defines the port interface for the append-only audit log.
package eventstore

import (
	"context"

	"github.com/careflow-io/careflow/internal/domain/audit"
)

// Store appends and loads workflow audit entries. Entries are immutable;
// there is no update or delete.
type Store interface {
	// Append persists a new entry.
	Append(ctx context.Context, e *audit.Entry) error

	// LoadByRequest returns all entries for the given request, ordered by seq.
	LoadByRequest(ctx context.Context, requestID string) ([]audit.Entry, error)
}
