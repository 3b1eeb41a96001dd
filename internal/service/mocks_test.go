package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/careflow-io/careflow/internal/domain"
	"github.com/careflow-io/careflow/internal/domain/audit"
	"github.com/careflow-io/careflow/internal/domain/escalation"
	"github.com/careflow-io/careflow/internal/domain/intent"
	"github.com/careflow-io/careflow/internal/domain/order"
	"github.com/careflow-io/careflow/internal/domain/request"
	"github.com/careflow-io/careflow/internal/port/subscription"
	"github.com/careflow-io/careflow/internal/port/vision"
)

// memStore is an in-memory database.Store with the same lifecycle
// semantics as the postgres adapter: claim and resolve are compare-and-set.
type memStore struct {
	mu       sync.Mutex
	requests map[string]request.Request
	cases    map[string]escalation.Case
}

func newMemStore() *memStore {
	return &memStore{
		requests: make(map[string]request.Request),
		cases:    make(map[string]escalation.Case),
	}
}

func (m *memStore) SaveRequest(_ context.Context, r *request.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.UpdatedAt = time.Now().UTC()
	m.requests[r.ID] = *r
	return nil
}

func (m *memStore) GetRequest(_ context.Context, id string) (*request.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, domain.ErrNotFound)
	}
	return &r, nil
}

func (m *memStore) GetSuspended(_ context.Context, customerID, orderID string) (*request.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.State == request.StateAwaitingImage && r.CustomerID == customerID && r.OrderID == orderID {
			out := r
			return &out, nil
		}
	}
	return nil, fmt.Errorf("suspension %s/%s: %w", customerID, orderID, domain.ErrNotFound)
}

func (m *memStore) ListSuspendedBefore(_ context.Context, cutoff time.Time) ([]request.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []request.Request
	for _, r := range m.requests {
		if r.State == request.StateAwaitingImage && r.UpdatedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) CreateCase(_ context.Context, c *escalation.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases[c.ID] = *c
	return nil
}

func (m *memStore) GetCase(_ context.Context, id string) (*escalation.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return nil, fmt.Errorf("case %s: %w", id, domain.ErrNotFound)
	}
	return &c, nil
}

func (m *memStore) ListPendingCases(_ context.Context) ([]escalation.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []escalation.Case
	for _, c := range m.cases {
		if c.Status == escalation.StatusPending {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memStore) ListCasesByCustomer(_ context.Context, customerID string) ([]escalation.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []escalation.Case
	for _, c := range m.cases {
		if c.CustomerID == customerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ClaimCase(_ context.Context, id, agentID string) (*escalation.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return nil, fmt.Errorf("case %s: %w", id, domain.ErrNotFound)
	}
	if c.Status != escalation.StatusPending {
		return nil, fmt.Errorf("case %s: %w", id, domain.ErrAlreadyClaimed)
	}
	c.Status = escalation.StatusInReview
	c.AgentID = agentID
	m.cases[id] = c
	return &c, nil
}

func (m *memStore) ResolveCase(_ context.Context, id, note string, outcome escalation.Outcome) (*escalation.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return nil, fmt.Errorf("case %s: %w", id, domain.ErrNotFound)
	}
	if c.Status != escalation.StatusInReview {
		return nil, fmt.Errorf("case %s is %s: %w", id, c.Status, domain.ErrInvalidTransition)
	}
	now := time.Now().UTC()
	c.Status = escalation.StatusResolved
	c.ResolutionNote = note
	c.Outcome = outcome
	c.ResolvedAt = &now
	m.cases[id] = c
	return &c, nil
}

// memEvents is an in-memory eventstore.Store assigning per-request seq.
type memEvents struct {
	mu      sync.Mutex
	entries map[string][]audit.Entry
}

func newMemEvents() *memEvents {
	return &memEvents{entries: make(map[string][]audit.Entry)}
}

func (m *memEvents) Append(_ context.Context, e *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Seq = len(m.entries[e.RequestID]) + 1
	m.entries[e.RequestID] = append(m.entries[e.RequestID], *e)
	return nil
}

func (m *memEvents) LoadByRequest(_ context.Context, requestID string) ([]audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audit.Entry, len(m.entries[requestID]))
	copy(out, m.entries[requestID])
	return out, nil
}

type stubOrders struct {
	orders map[string]order.Order
	byCust map[string][]order.Order
	calls  atomic.Int32
}

func (s *stubOrders) GetOrder(_ context.Context, orderID string) (*order.Order, error) {
	s.calls.Add(1)
	o, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return &o, nil
}

func (s *stubOrders) ListCustomerOrders(_ context.Context, customerID string) ([]order.Order, error) {
	s.calls.Add(1)
	return s.byCust[customerID], nil
}

type stubClassifier struct {
	pred  intent.Prediction
	err   error
	calls atomic.Int32
}

func (s *stubClassifier) Classify(context.Context, string) (intent.Prediction, error) {
	s.calls.Add(1)
	if s.err != nil {
		return intent.Prediction{}, s.err
	}
	return s.pred, nil
}

type stubVision struct {
	confidence float64
	err        error
	calls      atomic.Int32
}

func (s *stubVision) Analyze(context.Context, []byte) (vision.Assessment, error) {
	s.calls.Add(1)
	if s.err != nil {
		return vision.Assessment{}, s.err
	}
	return vision.Assessment{Assessment: "visible damage", Confidence: s.confidence}, nil
}

type walletCredit struct {
	customerID string
	amount     float64
}

type stubWallet struct {
	mu        sync.Mutex
	credits   []walletCredit
	balance   float64
	creditErr error
}

func (s *stubWallet) Credit(_ context.Context, customerID string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creditErr != nil {
		return s.creditErr
	}
	s.credits = append(s.credits, walletCredit{customerID, amount})
	return nil
}

func (s *stubWallet) Balance(context.Context, string) (float64, error) {
	return s.balance, nil
}

func (s *stubWallet) allCredits() []walletCredit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]walletCredit, len(s.credits))
	copy(out, s.credits)
	return out
}

type stubSubs struct {
	mu      sync.Mutex
	plans   []subscription.Plan
	changes []subscription.ChangeRequest
	err     error
}

func (s *stubSubs) Create(_ context.Context, plan subscription.Plan) (subscription.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return subscription.Plan{}, s.err
	}
	s.plans = append(s.plans, plan)
	return plan, nil
}

func (s *stubSubs) Update(_ context.Context, req subscription.ChangeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.changes = append(s.changes, req)
	return nil
}

func (s *stubSubs) ListByCustomer(_ context.Context, customerID string) ([]subscription.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []subscription.Plan
	for _, p := range s.plans {
		if p.CustomerID == customerID {
			out = append(out, p)
		}
	}
	return out, nil
}

type publishedEvent struct {
	subject string
	data    []byte
}

type recordPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordPublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{subject, data})
	return nil
}

func (p *recordPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.subject)
	}
	return out
}
