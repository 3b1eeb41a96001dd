package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/careflow-io/careflow/internal/adapter/ws"
	"github.com/careflow-io/careflow/internal/config"
	"github.com/careflow-io/careflow/internal/domain"
	"github.com/careflow-io/careflow/internal/domain/escalation"
	"github.com/careflow-io/careflow/internal/domain/request"
	"github.com/careflow-io/careflow/internal/port/database"
	"github.com/careflow-io/careflow/internal/port/messagequeue"
	"github.com/careflow-io/careflow/internal/port/wallet"
)

// CaseNotifier pushes case lifecycle events to connected dashboards.
// *ws.Hub implements it.
type CaseNotifier interface {
	BroadcastCase(ctx context.Context, eventType string, c *escalation.Case)
}

// EscalationService owns the case queue and its lifecycle. The orchestrator
// only creates and reads cases; all mutations go through here.
type EscalationService struct {
	store    database.Store
	bus      messagequeue.Publisher
	notifier CaseNotifier
	wallet   wallet.Service
	cfg      config.Escalation
}

// NewEscalationService creates a new EscalationService.
func NewEscalationService(store database.Store, bus messagequeue.Publisher, notifier CaseNotifier, w wallet.Service, cfg config.Escalation) *EscalationService {
	return &EscalationService{store: store, bus: bus, notifier: notifier, wallet: w, cfg: cfg}
}

// Create opens a pending case from a request snapshot. High-value orders are
// flagged priority and sort ahead of the FIFO queue.
func (s *EscalationService) Create(ctx context.Context, snapshot request.Request, reason escalation.Reason) (*escalation.Case, error) {
	c := &escalation.Case{
		ID:         uuid.NewString(),
		RequestID:  snapshot.ID,
		CustomerID: snapshot.CustomerID,
		Context:    snapshot,
		Reason:     reason,
		Status:     escalation.StatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	if snapshot.Order != nil && snapshot.Order.Value > s.cfg.PriorityOrderValue {
		c.Priority = true
	}

	if err := s.store.CreateCase(ctx, c); err != nil {
		return nil, fmt.Errorf("create case: %w", err)
	}

	s.publish(ctx, messagequeue.SubjectCaseCreated, c)
	s.broadcast(ctx, ws.TypeCaseCreated, c)

	slog.Info("case created", "case_id", c.ID, "request_id", c.RequestID, "reason", c.Reason, "priority", c.Priority)
	return c, nil
}

// Get returns one case by id.
func (s *EscalationService) Get(ctx context.Context, id string) (*escalation.Case, error) {
	return s.store.GetCase(ctx, id)
}

// ListPending returns the review queue: priority cases first, FIFO within
// each class.
func (s *EscalationService) ListPending(ctx context.Context) ([]escalation.Case, error) {
	return s.store.ListPendingCases(ctx)
}

// ListByCustomer returns a customer's cases, newest first.
func (s *EscalationService) ListByCustomer(ctx context.Context, customerID string) ([]escalation.Case, error) {
	return s.store.ListCasesByCustomer(ctx, customerID)
}

// Claim moves a pending case to in_review for the given agent. A losing
// concurrent claim surfaces domain.ErrAlreadyClaimed; it is not retried.
func (s *EscalationService) Claim(ctx context.Context, caseID, agentID string) (*escalation.Case, error) {
	c, err := s.store.ClaimCase(ctx, caseID, agentID)
	if err != nil {
		return nil, err
	}

	s.broadcast(ctx, ws.TypeCaseClaimed, c)
	slog.Info("case claimed", "case_id", caseID, "agent_id", agentID)
	return c, nil
}

// Resolve settles an in_review case. A refund_approved outcome issues the
// wallet credit, same as the automated path. The status swap is the atomic
// step, so exactly one resolver issues the credit; a missing wallet ack after
// that point is surfaced while the case stays resolved.
func (s *EscalationService) Resolve(ctx context.Context, caseID, agentID, note string, outcome escalation.Outcome) (*escalation.Case, error) {
	current, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if current.Status == escalation.StatusInReview && current.AgentID != agentID {
		return nil, fmt.Errorf("case %s is being reviewed by %s: %w", caseID, current.AgentID, domain.ErrAlreadyClaimed)
	}

	c, err := s.store.ResolveCase(ctx, caseID, note, outcome)
	if err != nil {
		return nil, err
	}

	if outcome == escalation.OutcomeRefundApproved {
		amount := refundAmount(&c.Context)
		if err := s.wallet.Credit(ctx, c.CustomerID, amount); err != nil {
			slog.Error("wallet credit after human approval failed", "case_id", caseID, "amount", amount, "error", err)
			return c, fmt.Errorf("case resolved but wallet credit unconfirmed: %w", err)
		}
		slog.Info("wallet credited on human approval", "case_id", caseID, "customer_id", c.CustomerID, "amount", amount)
	}

	s.publish(ctx, messagequeue.SubjectCaseResolved, c)
	s.broadcast(ctx, ws.TypeCaseResolved, c)

	slog.Info("case resolved", "case_id", caseID, "agent_id", agentID, "outcome", outcome)
	return c, nil
}

func (s *EscalationService) publish(ctx context.Context, subject string, c *escalation.Case) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(c)
	if err != nil {
		slog.Error("marshal case event", "case_id", c.ID, "error", err)
		return
	}
	if err := s.bus.Publish(ctx, subject, data); err != nil {
		slog.Error("publish case event", "subject", subject, "case_id", c.ID, "error", err)
	}
}

func (s *EscalationService) broadcast(ctx context.Context, eventType string, c *escalation.Case) {
	if s.notifier != nil {
		s.notifier.BroadcastCase(ctx, eventType, c)
	}
}

// refundAmount picks the amount a refund resolution credits: the order value
// captured in the escalated context.
func refundAmount(snapshot *request.Request) float64 {
	if snapshot.Order != nil {
		return snapshot.Order.Value
	}
	return 0
}
