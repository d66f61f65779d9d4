package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestShouldTraceRequest(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"/healthz", "/health", "/livez", "/readyz", " /HEALTHZ ", "/metrics"} {
		if shouldTraceRequest(path) {
			t.Fatalf("expected no tracing for probe path %q", path)
		}
	}
	for _, path := range []string{"/v1/rankings", "/v1/matches/m1/guess", "/", "/v1/me/guesses"} {
		if !shouldTraceRequest(path) {
			t.Fatalf("expected tracing for path %q", path)
		}
	}
}

func TestStartSpan_WithoutServerSpanIsNoop(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/v1/rankings", nil)
	ctx, span := startSpan(req, "GetLeaderboard")
	defer span.End()

	if span.SpanContext().IsValid() || ctx != req.Context() {
		t.Fatalf("expected untouched context and no-op span")
	}
}

func TestStartSpan_RenamesServerSpanToRoute(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	var attrs []attribute.KeyValue
	mux := http.NewServeMux()
	mux.Handle("PUT /v1/matches/{matchID}/guess", RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attrs = requestAttributes(r)
		_, span := startSpan(r, "SubmitGuess")
		span.End()
		w.WriteHeader(http.StatusNoContent)
	})))

	ctx, server := provider.Tracer("test").Start(t.Context(), "PUT /v1/matches/m7/guess", trace.WithSpanKind(trace.SpanKindServer))
	req := httptest.NewRequest(http.MethodPut, "/v1/matches/m7/guess", nil).WithContext(ctx)
	req.Header.Set(UserIDHeader, "ana")
	mux.ServeHTTP(httptest.NewRecorder(), req)
	server.End()

	ended := recorder.Ended()
	if len(ended) != 1 || ended[0].Name() != "PUT /v1/matches/{matchID}/guess" {
		t.Fatalf("expected server span renamed to route, got %+v", ended)
	}

	want := map[attribute.Key]string{
		"http.route":     "PUT /v1/matches/{matchID}/guess",
		"bolao.match_id": "m7",
		"enduser.id":     "ana",
	}
	if len(attrs) != len(want) {
		t.Fatalf("unexpected attributes: %v", attrs)
	}
	for _, kv := range attrs {
		if want[kv.Key] != kv.Value.AsString() {
			t.Fatalf("attribute %s=%q, want %q", kv.Key, kv.Value.AsString(), want[kv.Key])
		}
	}
}

func TestHandlerSpanName(t *testing.T) {
	t.Parallel()

	if got := handlerSpanName("RecordMatchResult"); got != "httpapi.RecordMatchResult" {
		t.Fatalf("unexpected span name %q", got)
	}
}
