package usecase

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var usecaseTracer = otel.Tracer("bolao-alviverde/internal/usecase")

// startUsecaseSpan only opens a child when the caller is already traced, so
// background work such as bus handlers without a parent stays span-free.
func startUsecaseSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if parent := trace.SpanFromContext(ctx); !parent.SpanContext().IsValid() {
		return ctx, parent
	}
	return usecaseTracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// failSpan marks span as failed. Expected rejections like ErrInvalidInput are
// recorded as events only.
func failSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	if isClientError(err) {
		return
	}
	span.SetStatus(codes.Error, err.Error())
}

func traceMetaFromContext(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
