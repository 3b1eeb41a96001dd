package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careflow-io/careflow/internal/domain/audit"
)

// EventStore implements eventstore.Store using PostgreSQL (append-only).
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append inserts a new entry into the audit_entries table. The seq is
// assigned here so resumed requests continue their numbering.
func (s *EventStore) Append(ctx context.Context, e *audit.Entry) error {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO audit_entries (request_id, seq, from_state, to_state, detail, created_at)
		 VALUES ($1,
			COALESCE((SELECT MAX(seq) FROM audit_entries WHERE request_id = $1), 0) + 1,
			$2, $3, $4, $5)
		 RETURNING seq`,
		e.RequestID, e.FromState, e.ToState, e.Detail, e.CreatedAt)
	if err := row.Scan(&e.Seq); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// LoadByRequest returns all entries for the given request, ordered by seq ascending.
func (s *EventStore) LoadByRequest(ctx context.Context, requestID string) ([]audit.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT request_id, seq, from_state, to_state, detail, created_at
		 FROM audit_entries WHERE request_id = $1 ORDER BY seq ASC`, requestID)
	if err != nil {
		return nil, fmt.Errorf("load audit for %s: %w", requestID, err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.RequestID, &e.Seq, &e.FromState, &e.ToState, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
