package orderapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/careflow-io/careflow/internal/domain/order"
	"github.com/careflow-io/careflow/internal/port/cache"
	"github.com/careflow-io/careflow/internal/port/orderstore"
)

// CachedStore layers a short-TTL snapshot cache over an order store. Orders
// are effectively immutable for the duration of one workflow run, so a small
// TTL only saves duplicate lookups within a burst of turns.
type CachedStore struct {
	inner orderstore.Store
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedStore wraps inner with the given cache.
func NewCachedStore(inner orderstore.Store, c cache.Cache, ttl time.Duration) *CachedStore {
	return &CachedStore{inner: inner, cache: c, ttl: ttl}
}

// GetOrder serves from cache when possible. Cache failures fall through to
// the inner store; they never fail the lookup.
func (s *CachedStore) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	key := "order/" + orderID
	if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var o order.Order
		if err := json.Unmarshal(data, &o); err == nil {
			return &o, nil
		}
	}

	o, err := s.inner.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(o); err == nil {
		if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
			slog.Debug("order cache set failed", "order_id", orderID, "error", err)
		}
	}
	return o, nil
}

// ListCustomerOrders is not cached; it backs a fallback path that already
// tolerates a slow lookup.
func (s *CachedStore) ListCustomerOrders(ctx context.Context, customerID string) ([]order.Order, error) {
	return s.inner.ListCustomerOrders(ctx, customerID)
}
