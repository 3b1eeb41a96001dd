package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/careflow-io/careflow/internal/domain"
	"github.com/careflow-io/careflow/internal/domain/escalation"
	"github.com/careflow-io/careflow/internal/domain/request"
)

// StartSweeper launches the background loop that escalates suspended
// requests whose image never arrived. It returns a stop function that
// blocks until the loop has exited.
func (s *WorkflowService) StartSweeper(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// sweep escalates every suspension older than the image wait timeout.
func (s *WorkflowService) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.ImageWaitTimeout)
	expired, err := s.store.ListSuspendedBefore(ctx, cutoff)
	if err != nil {
		slog.Error("sweep: list suspended requests", "error", err)
		return
	}

	for i := range expired {
		r := &expired[i]
		if err := s.expireSuspension(ctx, r); err != nil {
			slog.Error("sweep: escalate timed-out request", "request_id", r.ID, "error", err)
		}
	}
}

// expireSuspension escalates one timed-out suspension under its key lock,
// re-reading the row so a concurrently arrived image wins the race.
func (s *WorkflowService) expireSuspension(ctx context.Context, r *request.Request) error {
	key := r.SuspensionKey()
	if err := s.locks.Acquire(ctx, key); err != nil {
		return err
	}
	defer s.locks.Release(key)

	current, err := s.store.GetSuspended(ctx, r.CustomerID, r.OrderID)
	if errors.Is(err, domain.ErrNotFound) {
		// Already resumed or escalated by another path.
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.escalate(ctx, current, escalation.ReasonImageTimeout, "no image within wait window")
	return err
}
