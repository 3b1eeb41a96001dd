package http

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/careflow-io/careflow/internal/adapter/ws"
	"github.com/careflow-io/careflow/internal/domain/escalation"
	"github.com/careflow-io/careflow/internal/domain/request"
	"github.com/careflow-io/careflow/internal/port/orderstore"
	"github.com/careflow-io/careflow/internal/port/subscription"
	"github.com/careflow-io/careflow/internal/service"
)

// Handlers bundles the services the REST API fronts.
type Handlers struct {
	workflow      *service.WorkflowService
	escalation    *service.EscalationService
	audit         *service.AuditService
	subscriptions *service.SubscriptionService
	orders        orderstore.Store
	hub           *ws.Hub
}

// NewHandlers creates the handler set.
func NewHandlers(
	workflow *service.WorkflowService,
	esc *service.EscalationService,
	audit *service.AuditService,
	subs *service.SubscriptionService,
	orders orderstore.Store,
	hub *ws.Hub,
) *Handlers {
	return &Handlers{
		workflow:      workflow,
		escalation:    esc,
		audit:         audit,
		subscriptions: subs,
		orders:        orders,
		hub:           hub,
	}
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

type messageRequest struct {
	CustomerID  string `json:"customer_id"`
	Message     string `json:"message"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

type messageResponse struct {
	RequestID  string              `json:"request_id"`
	State      request.State       `json:"state"`
	Reply      string              `json:"reply"`
	Resolution *request.Resolution `json:"resolution,omitempty"`
	CaseID     string              `json:"case_id,omitempty"`
}

// SubmitMessage runs one customer turn through the workflow.
func (h *Handlers) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[messageRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.CustomerID, "customer_id") || !requireField(w, req.Message, "message") {
		return
	}

	var image []byte
	if req.ImageBase64 != "" {
		var err error
		image, err = base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "image_base64 is not valid base64")
			return
		}
	}

	res, err := h.workflow.Process(r.Context(), service.ProcessRequest{
		CustomerID: req.CustomerID,
		Message:    req.Message,
		Image:      image,
	})
	if err != nil {
		writeDomainError(w, err, "request could not be processed")
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		RequestID:  res.ID,
		State:      res.State,
		Reply:      replyFor(res),
		Resolution: res.Resolution,
		CaseID:     res.CaseID,
	})
}

// replyFor builds the customer-facing text for a workflow outcome.
// The customer always gets a usable reply, never an internal error.
func replyFor(r *request.Request) string {
	switch r.State {
	case request.StateResolved:
		return r.Resolution.Answer
	case request.StateAwaitingImage:
		return fmt.Sprintf("To process your refund for order %s, please reply with a photo of the damaged item.", r.OrderID)
	case request.StateEscalated:
		return fmt.Sprintf("Your request has been passed to a support specialist. Your case reference is %s.", r.CaseID)
	default:
		return "Your request is being processed."
	}
}

// GetRequest returns a request context by id.
func (h *Handlers) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	res, err := h.workflow.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "request not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetRequestAudit returns the ordered transition trace for a request.
func (h *Handlers) GetRequestAudit(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	entries, err := h.audit.Read(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "audit trail not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request_id": id, "entries": entries})
}

// ---------------------------------------------------------------------------
// Cases
// ---------------------------------------------------------------------------

// ListCases returns the pending review queue, priority first then FIFO.
func (h *Handlers) ListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := h.escalation.ListPending(r.Context())
	if err != nil {
		writeDomainError(w, err, "cases not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cases": cases})
}

// GetCase returns one case by id.
func (h *Handlers) GetCase(w http.ResponseWriter, r *http.Request) {
	c, err := h.escalation.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "case not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type claimRequest struct {
	AgentID string `json:"agent_id"`
}

// ClaimCase assigns a pending case to the requesting agent. Exactly one of
// two concurrent claims wins; the loser gets 409.
func (h *Handlers) ClaimCase(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[claimRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.AgentID, "agent_id") {
		return
	}

	c, err := h.escalation.Claim(r.Context(), urlParam(r, "id"), req.AgentID)
	if err != nil {
		writeDomainError(w, err, "case not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type resolveRequest struct {
	AgentID string `json:"agent_id"`
	Note    string `json:"note"`
	Outcome string `json:"outcome"`
}

// ResolveCase settles an in_review case with the agent's verdict.
func (h *Handlers) ResolveCase(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[resolveRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.AgentID, "agent_id") || !requireField(w, req.Outcome, "outcome") {
		return
	}

	outcome := escalation.Outcome(req.Outcome)
	switch outcome {
	case escalation.OutcomeRefundApproved, escalation.OutcomeRefundDenied, escalation.OutcomeAnswered, escalation.OutcomeClosed:
	default:
		writeError(w, http.StatusBadRequest, "outcome must be one of refund_approved, refund_denied, answered, closed")
		return
	}

	c, err := h.escalation.Resolve(r.Context(), urlParam(r, "id"), req.AgentID, req.Note, outcome)
	if err != nil {
		writeDomainError(w, err, "case not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ListCustomerCases returns a customer's cases, newest first.
func (h *Handlers) ListCustomerCases(w http.ResponseWriter, r *http.Request) {
	cases, err := h.escalation.ListByCustomer(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "cases not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cases": cases})
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

// ListCustomerOrders proxies the customer's order history from the order store.
func (h *Handlers) ListCustomerOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListCustomerOrders(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "orders not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// ---------------------------------------------------------------------------
// Subscriptions
// ---------------------------------------------------------------------------

type createSubscriptionRequest struct {
	CustomerID string `json:"customer_id"`
	Product    string `json:"product"`
	Frequency  string `json:"frequency"`
}

// CreateSubscription registers a new recurring plan.
func (h *Handlers) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[createSubscriptionRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.CustomerID, "customer_id") || !requireField(w, req.Product, "product") || !requireField(w, req.Frequency, "frequency") {
		return
	}

	plan, err := h.subscriptions.Create(r.Context(), req.CustomerID, req.Product, req.Frequency)
	if err != nil {
		writeDomainError(w, err, "subscription could not be created")
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

type cancelSubscriptionRequest struct {
	CustomerID string `json:"customer_id"`
}

// CancelSubscription stops a plan.
func (h *Handlers) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[cancelSubscriptionRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.CustomerID, "customer_id") {
		return
	}

	if err := h.subscriptions.Cancel(r.Context(), req.CustomerID, urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "subscription not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCustomerSubscriptions returns a customer's plans, optionally filtered
// to those renewing within ?renewing_within_days.
func (h *Handlers) ListCustomerSubscriptions(w http.ResponseWriter, r *http.Request) {
	customerID := urlParam(r, "id")

	var (
		plans []subscription.Plan
		err   error
	)
	if days := r.URL.Query().Get("renewing_within_days"); days != "" {
		n, convErr := strconv.Atoi(days)
		if convErr != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "renewing_within_days must be a non-negative integer")
			return
		}
		plans, err = h.subscriptions.UpcomingRenewals(r.Context(), customerID, time.Duration(n)*24*time.Hour)
	} else {
		plans, err = h.subscriptions.List(r.Context(), customerID)
	}
	if err != nil {
		writeDomainError(w, err, "subscriptions not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscriptions": plans})
}

// ---------------------------------------------------------------------------
// Misc
// ---------------------------------------------------------------------------

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"dashboard_clients": h.hub.ConnectionCount(),
	})
}

// HandleWS upgrades dashboard clients onto the case event stream.
func (h *Handlers) HandleWS(w http.ResponseWriter, r *http.Request) {
	h.hub.HandleWS(w, r)
}
