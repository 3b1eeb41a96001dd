// Package escalation defines cases queued for human review.
package escalation

import (
	"time"

	"github.com/careflow-io/careflow/internal/domain/request"
)

// Reason is the fixed set of causes the orchestrator escalates for.
type Reason string

const (
	ReasonOrderNotFound       Reason = "order_not_found"
	ReasonCustomerNotFound    Reason = "customer_not_found"
	ReasonLowIntentConfidence Reason = "low_intent_confidence"
	ReasonLowVisionConfidence Reason = "low_vision_confidence"
	ReasonImageTimeout        Reason = "image_timeout"
	ReasonTechnicalError      Reason = "technical_error"
	ReasonHighValueReview     Reason = "high_value_review"
)

// Status is the lifecycle state of a case.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInReview Status = "in_review"
	StatusResolved Status = "resolved"
)

// Outcome records how a human agent settled a case.
type Outcome string

const (
	OutcomeRefundApproved Outcome = "refund_approved"
	OutcomeRefundDenied   Outcome = "refund_denied"
	OutcomeAnswered       Outcome = "answered"
	OutcomeClosed         Outcome = "closed"
)

// Case is a queued unit of work awaiting human decision.
// Once resolved, a case is immutable.
type Case struct {
	ID              string          `json:"case_id"`
	RequestID       string          `json:"request_id"`
	CustomerID      string          `json:"customer_id"`
	Context         request.Request `json:"context_snapshot"`
	Reason          Reason          `json:"reason"`
	Status          Status          `json:"status"`
	Priority        bool            `json:"priority"`
	AgentID         string          `json:"agent_id,omitempty"`
	ResolutionNote  string          `json:"resolution_note,omitempty"`
	Outcome         Outcome         `json:"outcome,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
}
