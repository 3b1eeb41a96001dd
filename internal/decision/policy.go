// Package decision implements the pure resolution policy: scores plus
// thresholds in, one action out. It performs no I/O so it is testable
// without any adapter.
package decision

import (
	"github.com/careflow-io/careflow/internal/domain/escalation"
	"github.com/careflow-io/careflow/internal/domain/intent"
	"github.com/careflow-io/careflow/internal/domain/order"
)

// Thresholds are the configurable confidence gates.
type Thresholds struct {
	IntentRouting     float64 // below this the intent is not trusted (default 0.5)
	RefundAutoApprove float64 // vision must strictly exceed this (default 0.7)
}

// ActionKind enumerates what the orchestrator should do next.
type ActionKind string

const (
	ActionAskForImage  ActionKind = "ask_for_image"
	ActionAnalyzeImage ActionKind = "analyze_image"
	ActionAutoApprove  ActionKind = "auto_approve"
	ActionEscalate     ActionKind = "escalate"
	ActionDirectAnswer ActionKind = "direct_answer"
)

// Action is the policy verdict. Reason is set only for ActionEscalate.
type Action struct {
	Kind   ActionKind
	Reason escalation.Reason
}

// Input is everything the policy may inspect. When ImagePresent is true
// and VisionConfidence is still nil the verdict is ActionAnalyzeImage; the
// orchestrator runs the analyzer and asks again.
type Input struct {
	Intent           intent.Intent
	IntentConfidence float64
	ImagePresent     bool
	VisionConfidence *float64
	Order            *order.Order
}

func escalate(reason escalation.Reason) Action {
	return Action{Kind: ActionEscalate, Reason: reason}
}

// Decide maps the gathered scores onto the next action. It is deterministic
// given its input and the thresholds.
func Decide(in Input, th Thresholds) Action {
	if !intent.Recognized(in.Intent) || in.IntentConfidence < th.IntentRouting {
		return escalate(escalation.ReasonLowIntentConfidence)
	}

	if in.Intent != intent.RefundRequest {
		return Action{Kind: ActionDirectAnswer}
	}

	// Cancelled or already-refunded orders never auto-approve; a human
	// reviews the claim instead.
	if in.Order == nil {
		return escalate(escalation.ReasonOrderNotFound)
	}
	if !in.Order.RefundEligible {
		return escalate(escalation.ReasonHighValueReview)
	}

	if !in.ImagePresent {
		return Action{Kind: ActionAskForImage}
	}
	if in.VisionConfidence == nil {
		return Action{Kind: ActionAnalyzeImage}
	}
	if *in.VisionConfidence > th.RefundAutoApprove {
		return Action{Kind: ActionAutoApprove}
	}
	return escalate(escalation.ReasonLowVisionConfidence)
}
