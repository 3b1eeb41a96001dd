// Package orderapi provides the HTTP client for the external order store.
package orderapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/careflow-io/careflow/internal/domain"
	"github.com/careflow-io/careflow/internal/domain/order"
	"github.com/careflow-io/careflow/internal/resilience"
)

// Client implements orderstore.Store against the order service REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      resilience.RetryPolicy
	breaker    *resilience.Breaker
}

// NewClient creates an order store client. The retry policy bounds each
// attempt; the breaker sheds load while the service is down.
func NewClient(baseURL string, retry resilience.RetryPolicy, breaker *resilience.Breaker) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		retry:      retry,
		breaker:    breaker,
	}
}

// GetOrder fetches one order snapshot. A 404 maps to domain.ErrNotFound and
// is not retried.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	var o order.Order
	if err := c.getJSON(ctx, "/orders/"+orderID, &o); err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return &o, nil
}

// ListCustomerOrders returns the customer's orders, most recent first.
func (c *Client) ListCustomerOrders(ctx context.Context, customerID string) ([]order.Order, error) {
	var out []order.Order
	if err := c.getJSON(ctx, "/customers/"+customerID+"/orders", &out); err != nil {
		return nil, fmt.Errorf("list orders for %s: %w", customerID, err)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	return c.retry.Do(ctx, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("order store: %w: %w", domain.ErrUnavailable, err)
			}
			defer func() { _ = resp.Body.Close() }()

			switch {
			case resp.StatusCode == http.StatusNotFound:
				return domain.ErrNotFound
			case resp.StatusCode >= 500:
				return fmt.Errorf("order store status %d: %w", resp.StatusCode, domain.ErrUnavailable)
			case resp.StatusCode >= 400:
				return fmt.Errorf("order store status %d", resp.StatusCode)
			}

			if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		})
	})
}
