package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/careflow-io/careflow/internal/domain/audit"
	"github.com/careflow-io/careflow/internal/domain/request"
	"github.com/careflow-io/careflow/internal/port/eventstore"
)

// AuditService records workflow transitions. Recording never fails the
// workflow: a failed append is logged and swallowed.
type AuditService struct {
	store eventstore.Store
}

// NewAuditService creates a new AuditService.
func NewAuditService(store eventstore.Store) *AuditService {
	return &AuditService{store: store}
}

// Record appends one transition entry. Errors are logged, never returned.
func (s *AuditService) Record(ctx context.Context, requestID string, from, to request.State, detail string) {
	e := &audit.Entry{
		RequestID: requestID,
		FromState: from,
		ToState:   to,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Append(ctx, e); err != nil {
		slog.Error("audit append failed", "request_id", requestID, "from", from, "to", to, "error", err)
	}
}

// Read returns the ordered trace for a request.
func (s *AuditService) Read(ctx context.Context, requestID string) ([]audit.Entry, error) {
	return s.store.LoadByRequest(ctx, requestID)
}
