package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const requestIDKey ctxKey = 0

// WithRequestID stores the HTTP request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the HTTP request ID from the context, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithRequest returns a logger carrying the workflow request and customer
// IDs that every workflow log line should include.
func WithRequest(l *slog.Logger, requestID, customerID string) *slog.Logger {
	return l.With("request_id", requestID, "customer_id", customerID)
}
