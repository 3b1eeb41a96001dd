// Package otel provides tracing hooks for the workflow engine. Exporter
// wiring is left to the deployment; with no SDK installed these are no-ops.
package otel

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "careflow"

// HTTPMiddleware returns a chi-compatible middleware that creates spans for HTTP requests.
func HTTPMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName)
	}
}

// StartWorkflowSpan starts a span covering one workflow run. The request ID
// is attached later once the run has created or resumed a context.
func StartWorkflowSpan(ctx context.Context, customerID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "workflow.run",
		trace.WithAttributes(attribute.String("customer.id", customerID)),
	)
}

// RequestIDAttr tags a span with the workflow request ID.
func RequestIDAttr(span trace.Span, requestID string) {
	span.SetAttributes(attribute.String("request.id", requestID))
}
