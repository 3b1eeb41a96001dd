// Package visionapi provides the HTTP client for the image damage-assessment
// service.
package visionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/careflow-io/careflow/internal/domain"
	"github.com/careflow-io/careflow/internal/port/vision"
	"github.com/careflow-io/careflow/internal/resilience"
)

// Client implements vision.Analyzer against the vision service REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      resilience.RetryPolicy
	breaker    *resilience.Breaker
}

// NewClient creates a vision analyzer client.
func NewClient(baseURL string, retry resilience.RetryPolicy, breaker *resilience.Breaker) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		retry:      retry,
		breaker:    breaker,
	}
}

// Analyze posts the raw image bytes and returns the damage assessment.
// Transport failures return domain.ErrUnavailable after retries.
func (c *Client) Analyze(ctx context.Context, image []byte) (vision.Assessment, error) {
	var out vision.Assessment
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(image))
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/octet-stream")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("vision: %w: %w", domain.ErrUnavailable, err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode >= 500 {
				return fmt.Errorf("vision status %d: %w", resp.StatusCode, domain.ErrUnavailable)
			}
			if resp.StatusCode >= 400 {
				return fmt.Errorf("vision status %d", resp.StatusCode)
			}

			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return fmt.Errorf("decode assessment: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return vision.Assessment{}, fmt.Errorf("analyze: %w", err)
	}

	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	return out, nil
}
