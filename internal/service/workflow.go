package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/careflow-io/careflow/internal/adapter/otel"
	"github.com/careflow-io/careflow/internal/config"
	"github.com/careflow-io/careflow/internal/decision"
	"github.com/careflow-io/careflow/internal/domain"
	"github.com/careflow-io/careflow/internal/domain/escalation"
	"github.com/careflow-io/careflow/internal/domain/intent"
	"github.com/careflow-io/careflow/internal/domain/order"
	"github.com/careflow-io/careflow/internal/domain/request"
	"github.com/careflow-io/careflow/internal/keylock"
	"github.com/careflow-io/careflow/internal/port/classifier"
	"github.com/careflow-io/careflow/internal/port/database"
	"github.com/careflow-io/careflow/internal/port/messagequeue"
	"github.com/careflow-io/careflow/internal/port/orderstore"
	"github.com/careflow-io/careflow/internal/port/subscription"
	"github.com/careflow-io/careflow/internal/port/vision"
	"github.com/careflow-io/careflow/internal/port/wallet"
)

// orderIDPattern matches order references in customer messages, e.g. ORD001.
var orderIDPattern = regexp.MustCompile(`\bORD\d+\b`)

// ProcessRequest is one inbound customer turn.
type ProcessRequest struct {
	CustomerID string
	Message    string
	Image      []byte
}

// WorkflowService is the orchestrator: it drives a customer turn through
// fetch, routing, decision, and hand-off. It holds no state between runs
// beyond the persisted request contexts; concurrent turns for the same
// (customer, order) key are serialized.
type WorkflowService struct {
	store      database.Store
	orders     orderstore.Store
	classifier classifier.Classifier
	vision     vision.Analyzer
	wallet     wallet.Service
	subs       subscription.Service
	escalation *EscalationService
	audit      *AuditService
	bus        messagequeue.Publisher
	locks      *keylock.KeyedLock
	cfg        config.Workflow
}

// NewWorkflowService creates a WorkflowService with all dependencies.
func NewWorkflowService(
	store database.Store,
	orders orderstore.Store,
	cls classifier.Classifier,
	vis vision.Analyzer,
	w wallet.Service,
	subs subscription.Service,
	esc *EscalationService,
	aud *AuditService,
	bus messagequeue.Publisher,
	cfg config.Workflow,
) *WorkflowService {
	return &WorkflowService{
		store:      store,
		orders:     orders,
		classifier: cls,
		vision:     vis,
		wallet:     w,
		subs:       subs,
		escalation: esc,
		audit:      aud,
		bus:        bus,
		locks:      keylock.New(),
		cfg:        cfg,
	}
}

func (s *WorkflowService) thresholds() decision.Thresholds {
	return decision.Thresholds{
		IntentRouting:     s.cfg.IntentRoutingThreshold,
		RefundAutoApprove: s.cfg.RefundAutoApproveThreshold,
	}
}

// Process runs one customer turn to a terminal state or a suspension.
// The returned request carries the outcome: a resolution, a case reference,
// or the AWAITING_IMAGE state asking for more input.
func (s *WorkflowService) Process(ctx context.Context, pr ProcessRequest) (*request.Request, error) {
	ctx, span := otel.StartWorkflowSpan(ctx, pr.CustomerID)
	defer span.End()

	orderID := orderIDPattern.FindString(pr.Message)
	imagePresent := len(pr.Image) > 0

	// No order reference in the message: with an image attached this is
	// likely the follow-up to a refund claim, so try the customer's most
	// recent refund-eligible order.
	if orderID == "" && imagePresent {
		orderID = s.inferOrderID(ctx, pr.CustomerID)
	}

	if orderID != "" {
		key := request.Key(pr.CustomerID, orderID)
		if err := s.locks.Acquire(ctx, key); err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		defer s.locks.Release(key)

		// A retained AWAITING_IMAGE context for this key takes over the turn.
		susp, err := s.store.GetSuspended(ctx, pr.CustomerID, orderID)
		switch {
		case err == nil && imagePresent:
			otel.RequestIDAttr(span, susp.ID)
			return s.resume(ctx, susp, pr.Image)
		case err == nil:
			// Duplicate turn without the awaited image: keep waiting.
			s.audit.Record(ctx, susp.ID, request.StateAwaitingImage, request.StateAwaitingImage, "image still awaited")
			return susp, nil
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	r := &request.Request{
		ID:           uuid.NewString(),
		CustomerID:   pr.CustomerID,
		OrderID:      orderID,
		MessageText:  pr.Message,
		ImagePresent: imagePresent,
		State:        request.StateStart,
		CreatedAt:    time.Now().UTC(),
	}
	otel.RequestIDAttr(span, r.ID)

	return s.run(ctx, r, pr.Image)
}

// Get returns a persisted request context by id.
func (s *WorkflowService) Get(ctx context.Context, id string) (*request.Request, error) {
	return s.store.GetRequest(ctx, id)
}

// run drives a fresh request from START to a terminal state or suspension.
func (s *WorkflowService) run(ctx context.Context, r *request.Request, image []byte) (*request.Request, error) {
	log := slog.With("request_id", r.ID, "customer_id", r.CustomerID)

	s.transition(ctx, r, request.StateFetchOrder, "")

	if r.OrderID != "" {
		o, err := s.fetchOrder(ctx, r)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return s.escalate(ctx, r, escalation.ReasonOrderNotFound, "order "+r.OrderID+" not found")
		case errors.Is(err, domain.ErrCustomerMismatch):
			return s.escalate(ctx, r, escalation.ReasonCustomerNotFound, err.Error())
		case err != nil:
			log.Warn("order lookup failed", "order_id", r.OrderID, "error", err)
			return s.escalate(ctx, r, escalation.ReasonTechnicalError, "order lookup: "+err.Error())
		}
		r.Order = o
	}

	// Classify once per request.
	pred, err := s.classifier.Classify(ctx, r.MessageText)
	if err != nil {
		log.Warn("intent classification failed", "error", err)
		return s.escalate(ctx, r, escalation.ReasonTechnicalError, "classification: "+err.Error())
	}
	r.Intent = pred.Intent
	r.IntentConfidence = pred.Confidence
	s.transition(ctx, r, request.StateRoute, fmt.Sprintf("intent=%s confidence=%.2f", r.Intent, r.IntentConfidence))

	return s.apply(ctx, r, image)
}

// fetchOrder loads the referenced order and verifies its ownership.
// A foreign order returns domain.ErrCustomerMismatch.
func (s *WorkflowService) fetchOrder(ctx context.Context, r *request.Request) (*order.Order, error) {
	o, err := s.orders.GetOrder(ctx, r.OrderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != r.CustomerID {
		return nil, fmt.Errorf("order %s: %w", r.OrderID, domain.ErrCustomerMismatch)
	}
	return o, nil
}

// resume continues a suspended refund claim now that the image arrived.
func (s *WorkflowService) resume(ctx context.Context, r *request.Request, image []byte) (*request.Request, error) {
	r.ImagePresent = true

	// Refresh the order snapshot; eligibility may have changed while suspended.
	o, err := s.fetchOrder(ctx, r)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return s.escalate(ctx, r, escalation.ReasonOrderNotFound, "order "+r.OrderID+" disappeared during suspension")
	case errors.Is(err, domain.ErrCustomerMismatch):
		return s.escalate(ctx, r, escalation.ReasonCustomerNotFound, err.Error())
	case err != nil:
		return s.escalate(ctx, r, escalation.ReasonTechnicalError, "order refresh: "+err.Error())
	}
	r.Order = o

	s.transition(ctx, r, request.StateRefundDecision, "image received")
	return s.apply(ctx, r, image)
}

// apply consults the decision policy and executes the chosen action,
// looping only when the policy asks for the image analysis it needs.
func (s *WorkflowService) apply(ctx context.Context, r *request.Request, image []byte) (*request.Request, error) {
	for {
		act := decision.Decide(decision.Input{
			Intent:           r.Intent,
			IntentConfidence: r.IntentConfidence,
			ImagePresent:     r.ImagePresent,
			VisionConfidence: r.VisionConfidence,
			Order:            r.Order,
		}, s.thresholds())

		switch act.Kind {
		case decision.ActionEscalate:
			return s.escalate(ctx, r, act.Reason, "policy escalation")

		case decision.ActionAskForImage:
			return s.suspend(ctx, r)

		case decision.ActionAnalyzeImage:
			if r.State != request.StateRefundDecision {
				s.transition(ctx, r, request.StateRefundDecision, "")
			}
			a, err := s.vision.Analyze(ctx, image)
			if err != nil {
				slog.Warn("vision analysis failed", "request_id", r.ID, "error", err)
				return s.escalate(ctx, r, escalation.ReasonTechnicalError, "vision: "+err.Error())
			}
			conf := a.Confidence
			r.VisionConfidence = &conf
			s.audit.Record(ctx, r.ID, r.State, r.State,
				fmt.Sprintf("vision assessment=%s confidence=%.2f", a.Assessment, a.Confidence))
			// Loop: the policy now has everything it needs.

		case decision.ActionAutoApprove:
			return s.approveRefund(ctx, r)

		case decision.ActionDirectAnswer:
			return s.answer(ctx, r)
		}
	}
}

// suspend parks the request awaiting the customer's image.
func (s *WorkflowService) suspend(ctx context.Context, r *request.Request) (*request.Request, error) {
	if r.State != request.StateRefundDecision {
		s.transition(ctx, r, request.StateRefundDecision, "")
	}
	s.transition(ctx, r, request.StateAwaitingImage, "awaiting damage photo")
	if err := s.store.SaveRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("save suspension: %w", err)
	}
	slog.Info("request suspended awaiting image", "request_id", r.ID, "order_id", r.OrderID)
	return r, nil
}

// approveRefund finalizes an auto-approved refund: wallet credit first, then
// the terminal state. A missing wallet ack escalates instead of resolving.
func (s *WorkflowService) approveRefund(ctx context.Context, r *request.Request) (*request.Request, error) {
	if r.State != request.StateRefundDecision {
		s.transition(ctx, r, request.StateRefundDecision, "")
	}

	amount := r.Order.Value
	if err := s.wallet.Credit(ctx, r.CustomerID, amount); err != nil {
		slog.Error("wallet credit failed", "request_id", r.ID, "amount", amount, "error", err)
		return s.escalate(ctx, r, escalation.ReasonTechnicalError, "wallet credit: "+err.Error())
	}

	r.Resolution = &request.Resolution{
		Kind:         request.ResolutionRefundApproved,
		Answer:       fmt.Sprintf("Refund of %.2f approved for order %s and credited to your wallet.", amount, r.OrderID),
		RefundAmount: amount,
	}
	return s.resolve(ctx, r, fmt.Sprintf("auto-approved refund amount=%.2f", amount))
}

// answer resolves a non-refund intent from data already at hand.
func (s *WorkflowService) answer(ctx context.Context, r *request.Request) (*request.Request, error) {
	s.transition(ctx, r, request.StateOtherIntent, "")

	var text string
	switch r.Intent {
	case intent.StatusQuery:
		if r.Order == nil {
			return s.escalate(ctx, r, escalation.ReasonOrderNotFound, "status query without order reference")
		}
		text = fmt.Sprintf("Order %s is %s.", r.OrderID, r.Order.Status)

	case intent.Tracking:
		if r.Order == nil {
			return s.escalate(ctx, r, escalation.ReasonOrderNotFound, "tracking query without order reference")
		}
		if r.Order.TrackingInfo != "" {
			text = fmt.Sprintf("Order %s: %s", r.OrderID, r.Order.TrackingInfo)
		} else {
			text = fmt.Sprintf("Order %s is %s; tracking details are not available yet.", r.OrderID, r.Order.Status)
		}

	case intent.WalletQuery:
		balance, err := s.wallet.Balance(ctx, r.CustomerID)
		if err != nil {
			slog.Warn("wallet balance lookup failed", "request_id", r.ID, "error", err)
			return s.escalate(ctx, r, escalation.ReasonTechnicalError, "wallet balance: "+err.Error())
		}
		text = fmt.Sprintf("Your wallet balance is %.2f.", balance)

	case intent.SubscriptionUpdate:
		change := subscription.ChangeRequest{
			CustomerID: r.CustomerID,
			Cancel:     strings.Contains(strings.ToLower(r.MessageText), "cancel"),
		}
		if err := s.subs.Update(ctx, change); err != nil {
			slog.Warn("subscription update failed", "request_id", r.ID, "error", err)
			return s.escalate(ctx, r, escalation.ReasonTechnicalError, "subscription update: "+err.Error())
		}
		text = "Your subscription change has been forwarded and will take effect shortly."

	default:
		// Recognized() gates ROUTE, so this is unreachable; fail safe anyway.
		return s.escalate(ctx, r, escalation.ReasonLowIntentConfidence, "unhandled intent "+string(r.Intent))
	}

	r.Resolution = &request.Resolution{Kind: request.ResolutionDirectAnswer, Answer: text}
	return s.resolve(ctx, r, "direct answer")
}

// resolve moves the request to RESOLVED, persists it, and announces it.
func (s *WorkflowService) resolve(ctx context.Context, r *request.Request, detail string) (*request.Request, error) {
	s.transition(ctx, r, request.StateResolved, detail)
	if err := s.store.SaveRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("save resolved request: %w", err)
	}
	s.publish(ctx, messagequeue.SubjectRequestResolved, r)
	slog.Info("request resolved", "request_id", r.ID, "kind", r.Resolution.Kind)
	return r, nil
}

// escalate hands the request to the case manager and terminates the run.
// The snapshot captures the context exactly as it stood at escalation time.
func (s *WorkflowService) escalate(ctx context.Context, r *request.Request, reason escalation.Reason, detail string) (*request.Request, error) {
	s.transition(ctx, r, request.StateEscalated, string(reason)+": "+detail)
	r.Resolution = nil

	c, err := s.escalation.Create(ctx, *r, reason)
	if err != nil {
		return nil, fmt.Errorf("escalate request %s: %w", r.ID, err)
	}
	r.CaseID = c.ID

	if err := s.store.SaveRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("save escalated request: %w", err)
	}
	s.publish(ctx, messagequeue.SubjectRequestEscalated, r)
	slog.Info("request escalated", "request_id", r.ID, "case_id", c.ID, "reason", reason)
	return r, nil
}

// transition moves the request to the next state and audits it.
func (s *WorkflowService) transition(ctx context.Context, r *request.Request, to request.State, detail string) {
	from := r.State
	r.State = to
	s.audit.Record(ctx, r.ID, from, to, detail)
}

// inferOrderID picks the customer's most recent refund-eligible order.
// Lookup failures just mean no inference; the turn proceeds without one.
func (s *WorkflowService) inferOrderID(ctx context.Context, customerID string) string {
	orders, err := s.orders.ListCustomerOrders(ctx, customerID)
	if err != nil {
		slog.Debug("order inference failed", "customer_id", customerID, "error", err)
		return ""
	}
	for _, o := range orders {
		if o.RefundEligible {
			return o.ID
		}
	}
	return ""
}

func (s *WorkflowService) publish(ctx context.Context, subject string, r *request.Request) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		slog.Error("marshal request event", "request_id", r.ID, "error", err)
		return
	}
	if err := s.bus.Publish(ctx, subject, data); err != nil {
		slog.Error("publish request event", "subject", subject, "request_id", r.ID, "error", err)
	}
}
