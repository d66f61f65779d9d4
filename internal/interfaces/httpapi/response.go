package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	sonic "github.com/bytedance/sonic"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/scoring"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/usecase"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	apiVersion      = "2.0"
	errorDomain     = "bolao-alviverde"
	internalMessage = "internal server error"
)

// envelope follows the Google JSON style guide: exactly one of data or error.
type envelope struct {
	APIVersion string    `json:"apiVersion"`
	Data       any       `json:"data,omitempty"`
	Error      *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Status  string      `json:"status"`
	Errors  []errorItem `json:"errors,omitempty"`
}

type errorItem struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type errorClass struct {
	httpStatus int
	reason     string
	status     string
}

var internalClass = errorClass{http.StatusInternalServerError, "internalError", "INTERNAL"}

// errorClasses is checked in order; the first sentinel found in the chain wins.
var errorClasses = []struct {
	sentinels []error
	class     errorClass
}{
	{[]error{usecase.ErrInvalidInput, scoring.ErrInvalidScore}, errorClass{http.StatusBadRequest, "invalidInput", "INVALID_ARGUMENT"}},
	{[]error{usecase.ErrNotFound}, errorClass{http.StatusNotFound, "notFound", "NOT_FOUND"}},
	{[]error{usecase.ErrUnauthorized}, errorClass{http.StatusUnauthorized, "unauthorized", "UNAUTHENTICATED"}},
	{[]error{usecase.ErrGuessLocked}, errorClass{http.StatusConflict, "guessLocked", "FAILED_PRECONDITION"}},
	{[]error{usecase.ErrBatchCommitFailure}, errorClass{http.StatusConflict, "batchCommitFailure", "ABORTED"}},
	{[]error{usecase.ErrDependencyUnavailable}, errorClass{http.StatusServiceUnavailable, "dependencyUnavailable", "UNAVAILABLE"}},
}

func classifyError(err error) errorClass {
	for _, candidate := range errorClasses {
		for _, sentinel := range candidate.sentinels {
			if errors.Is(err, sentinel) {
				return candidate.class
			}
		}
	}
	return internalClass
}

// writeJSON renders into a pooled buffer first so an encoding failure can
// still become a clean 500 instead of a truncated body.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(payload); err != nil {
		markSpanError(ctx, err)
		http.Error(w, internalMessage, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	_, _ = w.Write(buf.B)
}

func writeSuccess(ctx context.Context, w http.ResponseWriter, status int, data any) {
	writeJSON(ctx, w, status, envelope{APIVersion: apiVersion, Data: data})
}

// writeError never leaks the text of unclassified errors; those only reach
// the span.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	class := classifyError(err)
	message := err.Error()
	if class == internalClass {
		markSpanError(ctx, err)
		message = internalMessage
	}
	writeJSON(ctx, w, class.httpStatus, errorEnvelope(class, message))
}

func writeInternalError(ctx context.Context, w http.ResponseWriter) {
	writeJSON(ctx, w, internalClass.httpStatus, errorEnvelope(internalClass, internalMessage))
}

func errorEnvelope(class errorClass, message string) envelope {
	return envelope{
		APIVersion: apiVersion,
		Error: &apiError{
			Code:    class.httpStatus,
			Message: message,
			Status:  class.status,
			Errors:  []errorItem{{Domain: errorDomain, Reason: class.reason, Message: message}},
		},
	}
}

func markSpanError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
