package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careflow-io/careflow/internal/domain"
	"github.com/careflow-io/careflow/internal/domain/escalation"
	"github.com/careflow-io/careflow/internal/domain/order"
	"github.com/careflow-io/careflow/internal/domain/request"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Requests ---

const requestColumns = `id, customer_id, order_id, message_text, image_present, intent,
	intent_confidence, vision_confidence, order_snapshot, state, resolution, case_id,
	created_at, updated_at`

func scanRequest(row scannable) (request.Request, error) {
	var r request.Request
	var orderJSON, resolutionJSON []byte
	if err := row.Scan(
		&r.ID, &r.CustomerID, &r.OrderID, &r.MessageText, &r.ImagePresent, &r.Intent,
		&r.IntentConfidence, &r.VisionConfidence, &orderJSON, &r.State, &resolutionJSON,
		&r.CaseID, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return r, err
	}

	var err error
	if r.Order, err = unmarshalJSONB[order.Order](orderJSON); err != nil {
		return r, err
	}
	if r.Resolution, err = unmarshalJSONB[request.Resolution](resolutionJSON); err != nil {
		return r, err
	}
	return r, nil
}

// SaveRequest upserts a request context by id.
func (s *Store) SaveRequest(ctx context.Context, r *request.Request) error {
	orderJSON, err := marshalJSONB(r.Order)
	if err != nil {
		return err
	}
	resolutionJSON, err := marshalJSONB(r.Resolution)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO requests (id, customer_id, order_id, message_text, image_present, intent,
			intent_confidence, vision_confidence, order_snapshot, state, resolution, case_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
		 ON CONFLICT (id) DO UPDATE SET
			order_id = EXCLUDED.order_id,
			image_present = EXCLUDED.image_present,
			intent = EXCLUDED.intent,
			intent_confidence = EXCLUDED.intent_confidence,
			vision_confidence = EXCLUDED.vision_confidence,
			order_snapshot = EXCLUDED.order_snapshot,
			state = EXCLUDED.state,
			resolution = EXCLUDED.resolution,
			case_id = EXCLUDED.case_id,
			updated_at = now()`,
		r.ID, r.CustomerID, r.OrderID, r.MessageText, r.ImagePresent, r.Intent,
		r.IntentConfidence, r.VisionConfidence, orderJSON, r.State, resolutionJSON,
		r.CaseID, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("save request %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*request.Request, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = $1`, id)

	r, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get request %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get request %s: %w", id, err)
	}
	return &r, nil
}

// GetSuspended returns the AWAITING_IMAGE request for the (customer, order)
// key, or domain.ErrNotFound if no suspension exists.
func (s *Store) GetSuspended(ctx context.Context, customerID, orderID string) (*request.Request, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM requests
		 WHERE customer_id = $1 AND order_id = $2 AND state = 'AWAITING_IMAGE'`,
		customerID, orderID)

	r, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("suspended %s/%s: %w", customerID, orderID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("suspended %s/%s: %w", customerID, orderID, err)
	}
	return &r, nil
}

// ListSuspendedBefore returns suspensions last touched before cutoff.
func (s *Store) ListSuspendedBefore(ctx context.Context, cutoff time.Time) ([]request.Request, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+requestColumns+` FROM requests
		 WHERE state = 'AWAITING_IMAGE' AND updated_at < $1
		 ORDER BY updated_at ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list suspended: %w", err)
	}
	defer rows.Close()

	var out []request.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan suspended: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Cases ---

const caseColumns = `id, request_id, customer_id, context_snapshot, reason, status,
	priority, agent_id, resolution_note, outcome, created_at, resolved_at`

func scanCase(row scannable) (escalation.Case, error) {
	var c escalation.Case
	var ctxJSON []byte
	if err := row.Scan(
		&c.ID, &c.RequestID, &c.CustomerID, &ctxJSON, &c.Reason, &c.Status,
		&c.Priority, &c.AgentID, &c.ResolutionNote, &c.Outcome, &c.CreatedAt, &c.ResolvedAt,
	); err != nil {
		return c, err
	}

	snap, err := unmarshalJSONB[request.Request](ctxJSON)
	if err != nil {
		return c, err
	}
	if snap != nil {
		c.Context = *snap
	}
	return c, nil
}

func (s *Store) CreateCase(ctx context.Context, c *escalation.Case) error {
	ctxJSON, err := marshalJSONB(&c.Context)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO cases (id, request_id, customer_id, context_snapshot, reason, status, priority, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.RequestID, c.CustomerID, ctxJSON, c.Reason, c.Status, c.Priority, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create case %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) GetCase(ctx context.Context, id string) (*escalation.Case, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE id = $1`, id)

	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get case %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get case %s: %w", id, err)
	}
	return &c, nil
}

// ListPendingCases returns pending cases, priority first, then FIFO.
func (s *Store) ListPendingCases(ctx context.Context) ([]escalation.Case, error) {
	return s.listCases(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE status = 'pending'
		 ORDER BY priority DESC, created_at ASC`)
}

func (s *Store) ListCasesByCustomer(ctx context.Context, customerID string) ([]escalation.Case, error) {
	return s.listCases(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE customer_id = $1
		 ORDER BY created_at DESC`, customerID)
}

func (s *Store) listCases(ctx context.Context, query string, args ...any) ([]escalation.Case, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var out []escalation.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ClaimCase moves a pending case to in_review with a single compare-and-swap
// so two agents can never both win.
func (s *Store) ClaimCase(ctx context.Context, id, agentID string) (*escalation.Case, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE cases SET status = 'in_review', agent_id = $2
		 WHERE id = $1 AND status = 'pending'`, id, agentID)
	if err != nil {
		return nil, fmt.Errorf("claim case %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Either claimed by someone else or nonexistent; distinguish for the caller.
		if _, err := s.GetCase(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("claim case %s: %w", id, domain.ErrAlreadyClaimed)
	}
	return s.GetCase(ctx, id)
}

// ResolveCase moves an in_review case to resolved. Any other starting status
// is an invalid transition.
func (s *Store) ResolveCase(ctx context.Context, id, note string, outcome escalation.Outcome) (*escalation.Case, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE cases SET status = 'resolved', resolution_note = $2, outcome = $3, resolved_at = now()
		 WHERE id = $1 AND status = 'in_review'`, id, note, outcome)
	if err != nil {
		return nil, fmt.Errorf("resolve case %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetCase(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("resolve case %s: %w", id, domain.ErrInvalidTransition)
	}
	return s.GetCase(ctx, id)
}
