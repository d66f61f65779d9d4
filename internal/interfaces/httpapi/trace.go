package httpapi

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var apiTracer = otel.Tracer("bolao-alviverde/internal/interfaces/httpapi")

// untracedPaths are probes and scrapes; they never get a server span or an
// access log line.
var untracedPaths = map[string]struct{}{
	"/healthz": {},
	"/health":  {},
	"/livez":   {},
	"/readyz":  {},
	"/metrics": {},
}

func shouldTraceRequest(path string) bool {
	_, skip := untracedPaths[strings.ToLower(strings.TrimSpace(path))]
	return !skip
}

// RequestTracing opens the server span. Handlers rename it to the matched
// route pattern once the mux has resolved one.
func RequestTracing(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, "bolao-alviverde-http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return shouldTraceRequest(r.URL.Path)
		}),
	)
}

// startSpan opens a child span for a handler. Without a sampled server span
// above it, it returns the context unchanged and the no-op span.
func startSpan(r *http.Request, handler string) (context.Context, trace.Span) {
	ctx := r.Context()
	server := trace.SpanFromContext(ctx)
	if !server.SpanContext().IsValid() {
		return ctx, server
	}
	if r.Pattern != "" {
		server.SetName(r.Pattern)
	}
	return apiTracer.Start(ctx, handlerSpanName(handler), trace.WithAttributes(requestAttributes(r)...))
}

func handlerSpanName(handler string) string {
	return "httpapi." + handler
}

func requestAttributes(r *http.Request) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if r.Pattern != "" {
		attrs = append(attrs, attribute.String("http.route", r.Pattern))
	}
	if matchID := r.PathValue("matchID"); matchID != "" {
		attrs = append(attrs, attribute.String("bolao.match_id", matchID))
	}
	if userID, ok := userIDFromContext(r.Context()); ok {
		attrs = append(attrs, attribute.String("enduser.id", userID))
	}
	return attrs
}
