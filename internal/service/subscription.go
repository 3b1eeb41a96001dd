package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/careflow-io/careflow/internal/port/subscription"
)

// SubscriptionService fronts the external subscription scheduler for the
// API surface: customers can create, change, cancel, and list plans
// outside the message workflow as well.
type SubscriptionService struct {
	scheduler subscription.Service
}

func NewSubscriptionService(scheduler subscription.Service) *SubscriptionService {
	return &SubscriptionService{scheduler: scheduler}
}

// Create registers a new recurring plan with the scheduler.
func (s *SubscriptionService) Create(ctx context.Context, customerID, product, frequency string) (subscription.Plan, error) {
	plan := subscription.Plan{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Product:    product,
		Frequency:  frequency,
		Active:     true,
	}
	created, err := s.scheduler.Create(ctx, plan)
	if err != nil {
		return subscription.Plan{}, fmt.Errorf("create subscription: %w", err)
	}
	slog.Info("subscription created", "subscription_id", created.ID, "customer_id", customerID)
	return created, nil
}

// Change forwards a plan change to the scheduler.
func (s *SubscriptionService) Change(ctx context.Context, req subscription.ChangeRequest) error {
	if err := s.scheduler.Update(ctx, req); err != nil {
		return fmt.Errorf("update subscription %s: %w", req.SubscriptionID, err)
	}
	return nil
}

// Cancel stops a plan.
func (s *SubscriptionService) Cancel(ctx context.Context, customerID, subscriptionID string) error {
	req := subscription.ChangeRequest{
		SubscriptionID: subscriptionID,
		CustomerID:     customerID,
		Cancel:         true,
	}
	if err := s.scheduler.Update(ctx, req); err != nil {
		return fmt.Errorf("cancel subscription %s: %w", subscriptionID, err)
	}
	slog.Info("subscription cancelled", "subscription_id", subscriptionID, "customer_id", customerID)
	return nil
}

// List returns the customer's plans.
func (s *SubscriptionService) List(ctx context.Context, customerID string) ([]subscription.Plan, error) {
	plans, err := s.scheduler.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return plans, nil
}

// UpcomingRenewals filters the customer's active plans down to those
// renewing within the window.
func (s *SubscriptionService) UpcomingRenewals(ctx context.Context, customerID string, window time.Duration) ([]subscription.Plan, error) {
	plans, err := s.List(ctx, customerID)
	if err != nil {
		return nil, err
	}
	horizon := time.Now().UTC().Add(window)
	var due []subscription.Plan
	for _, p := range plans {
		if p.Active && !p.NextRenewal.IsZero() && p.NextRenewal.Before(horizon) {
			due = append(due, p)
		}
	}
	return due, nil
}
