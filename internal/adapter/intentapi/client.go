// Package intentapi provides the HTTP client for the intent classification
// service.
package intentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/careflow-io/careflow/internal/domain"
	"github.com/careflow-io/careflow/internal/domain/intent"
	"github.com/careflow-io/careflow/internal/resilience"
)

// Client implements classifier.Classifier against the NLU service REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      resilience.RetryPolicy
	breaker    *resilience.Breaker
}

// NewClient creates a classifier client.
func NewClient(baseURL string, retry resilience.RetryPolicy, breaker *resilience.Breaker) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		retry:      retry,
		breaker:    breaker,
	}
}

// Classify maps a message to (intent, confidence). Transport failures return
// domain.ErrUnavailable after retries; out-of-range confidences are clamped
// to [0,1] since the model contract promises that interval.
func (c *Client) Classify(ctx context.Context, text string) (intent.Prediction, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return intent.Prediction{}, fmt.Errorf("marshal classify request: %w", err)
	}

	var pred intent.Prediction
	err = c.retry.Do(ctx, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("classifier: %w: %w", domain.ErrUnavailable, err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode >= 500 {
				return fmt.Errorf("classifier status %d: %w", resp.StatusCode, domain.ErrUnavailable)
			}
			if resp.StatusCode >= 400 {
				return fmt.Errorf("classifier status %d", resp.StatusCode)
			}

			if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
				return fmt.Errorf("decode prediction: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return intent.Prediction{}, fmt.Errorf("classify: %w", err)
	}

	if pred.Confidence < 0 {
		pred.Confidence = 0
	}
	if pred.Confidence > 1 {
		pred.Confidence = 1
	}
	return pred, nil
}
