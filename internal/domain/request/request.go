// Package request defines the per-turn request context driven through the
// resolution workflow.
package request

import (
	"time"

	"github.com/careflow-io/careflow/internal/domain/intent"
	"github.com/careflow-io/careflow/internal/domain/order"
)

// State is the workflow state of a request.
type State string

const (
	StateStart          State = "START"
	StateFetchOrder     State = "FETCH_ORDER"
	StateRoute          State = "ROUTE"
	StateAwaitingImage  State = "AWAITING_IMAGE"
	StateRefundDecision State = "REFUND_DECISION"
	StateOtherIntent    State = "OTHER_INTENT"
	StateEscalated      State = "ESCALATED"
	StateResolved       State = "RESOLVED"
)

// Terminal reports whether the workflow is finished with this request.
// AWAITING_IMAGE is a suspension, not a terminal state.
func (s State) Terminal() bool {
	return s == StateResolved || s == StateEscalated
}

// ResolutionKind distinguishes how a resolved request was answered.
type ResolutionKind string

const (
	ResolutionRefundApproved ResolutionKind = "refund_approved"
	ResolutionDirectAnswer   ResolutionKind = "direct_answer"
)

// Resolution is the final outcome of a resolved request.
// It is set iff the request state is RESOLVED.
type Resolution struct {
	Kind         ResolutionKind `json:"kind"`
	Answer       string         `json:"answer"`
	RefundAmount float64        `json:"refund_amount,omitempty"`
}

// Request is one customer message/turn moving through the workflow.
// It is created per inbound message and mutated only by the orchestrator
// during a single synchronous run.
type Request struct {
	ID               string         `json:"request_id"`
	CustomerID       string         `json:"customer_id"`
	OrderID          string         `json:"order_id,omitempty"`
	MessageText      string         `json:"message_text"`
	ImagePresent     bool           `json:"image_present"`
	Intent           intent.Intent  `json:"intent,omitempty"`
	IntentConfidence float64        `json:"intent_confidence"`
	VisionConfidence *float64       `json:"vision_confidence,omitempty"`
	Order            *order.Order   `json:"order,omitempty"`
	State            State          `json:"state"`
	Resolution       *Resolution    `json:"resolution,omitempty"`
	CaseID           string         `json:"case_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// SuspensionKey identifies a suspended request awaiting the customer's next
// turn. Requests for the same key are serialized.
func (r *Request) SuspensionKey() string {
	return Key(r.CustomerID, r.OrderID)
}

// Key builds the (customer, order) serialization key.
func Key(customerID, orderID string) string {
	return customerID + "/" + orderID
}
