// Package walletapi provides the HTTP client for the wallet and subscription
// collaborators (they share one billing service).
package walletapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/careflow-io/careflow/internal/domain"
	"github.com/careflow-io/careflow/internal/port/subscription"
	"github.com/careflow-io/careflow/internal/resilience"
)

// Client implements wallet.Service and subscription.Service against the
// billing service REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      resilience.RetryPolicy
	breaker    *resilience.Breaker
}

// NewClient creates a billing client.
func NewClient(baseURL string, retry resilience.RetryPolicy, breaker *resilience.Breaker) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		retry:      retry,
		breaker:    breaker,
	}
}

// Credit instructs the wallet to credit the customer. The instruction is
// fire-and-confirm; any non-2xx response means no ack was received.
func (c *Client) Credit(ctx context.Context, customerID string, amount float64) error {
	body := map[string]any{"customer_id": customerID, "amount": amount}
	if err := c.doJSON(ctx, http.MethodPost, "/wallet/credit", body, nil); err != nil {
		return fmt.Errorf("credit wallet for %s: %w", customerID, err)
	}
	return nil
}

// Balance returns the customer's current wallet balance.
func (c *Client) Balance(ctx context.Context, customerID string) (float64, error) {
	var out struct {
		Balance float64 `json:"balance"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/wallet/"+customerID, nil, &out); err != nil {
		return 0, fmt.Errorf("wallet balance for %s: %w", customerID, err)
	}
	return out.Balance, nil
}

// Create registers a new subscription plan with the scheduler.
func (c *Client) Create(ctx context.Context, plan subscription.Plan) (subscription.Plan, error) {
	var out subscription.Plan
	if err := c.doJSON(ctx, http.MethodPost, "/subscriptions", plan, &out); err != nil {
		return subscription.Plan{}, fmt.Errorf("create subscription: %w", err)
	}
	return out, nil
}

// Update forwards a subscription-change instruction.
func (c *Client) Update(ctx context.Context, req subscription.ChangeRequest) error {
	if err := c.doJSON(ctx, http.MethodPost, "/subscriptions/"+req.SubscriptionID, req, nil); err != nil {
		return fmt.Errorf("update subscription %s: %w", req.SubscriptionID, err)
	}
	return nil
}

// ListByCustomer returns the customer's subscription plans.
func (c *Client) ListByCustomer(ctx context.Context, customerID string) ([]subscription.Plan, error) {
	var out []subscription.Plan
	if err := c.doJSON(ctx, http.MethodGet, "/customers/"+customerID+"/subscriptions", nil, &out); err != nil {
		return nil, fmt.Errorf("list subscriptions for %s: %w", customerID, err)
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	return c.retry.Do(ctx, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			var reader io.Reader
			if body != nil {
				reader = bytes.NewReader(body)
			}
			req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("billing: %w: %w", domain.ErrUnavailable, err)
			}
			defer func() { _ = resp.Body.Close() }()

			switch {
			case resp.StatusCode == http.StatusNotFound:
				return domain.ErrNotFound
			case resp.StatusCode >= 500:
				return fmt.Errorf("billing status %d: %w", resp.StatusCode, domain.ErrUnavailable)
			case resp.StatusCode >= 400:
				return fmt.Errorf("billing status %d", resp.StatusCode)
			}

			if out != nil {
				if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
			}
			return nil
		})
	})
}
