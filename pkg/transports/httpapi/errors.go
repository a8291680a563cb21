package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/canonical"
	"github.com/harunnryd/voxa/pkg/cost"
	"github.com/harunnryd/voxa/pkg/dispatch"
	"github.com/harunnryd/voxa/pkg/errorsx"
	"github.com/harunnryd/voxa/pkg/genlog"
	"github.com/harunnryd/voxa/pkg/resilience"
	"github.com/harunnryd/voxa/pkg/segment"
	"github.com/harunnryd/voxa/pkg/templates"
	"github.com/harunnryd/voxa/pkg/voxa"
)

var errDraining = errors.New("server is draining")

// retryAfter is advertised on 429 and 503 responses.
const retryAfter = "5"

type errorBody struct {
	Error     string             `json:"error"`
	Reason    errorsx.ReasonCode `json:"reason,omitempty"`
	Retryable bool               `json:"retryable,omitempty"`
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errDraining), errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, dispatch.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case resilience.IsRateLimit(err):
		return http.StatusTooManyRequests
	case errors.Is(err, templates.ErrUnknownTemplate),
		errors.Is(err, cost.ErrNoRecords),
		errors.Is(err, voxa.ErrNoGenerationLog):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, segment.ErrInvalidConfig),
		errors.Is(err, segment.ErrInvalidMode),
		errors.Is(err, segment.ErrEmptyText),
		errors.Is(err, canonical.ErrInvalidText),
		errors.Is(err, cost.ErrInvalidProfile),
		errors.Is(err, genlog.ErrInvalidRange),
		errors.Is(err, templates.ErrMissingVar):
		return http.StatusBadRequest
	}
	if pe, ok := tts.AsProviderError(err); ok {
		if pe.Status == http.StatusBadRequest {
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfter)
	}
	writeJSON(w, status, newErrorBody(err))
}

func newErrorBody(err error) errorBody {
	reason := errorsx.Reason(err)
	if reason == errorsx.ReasonUnknown {
		reason = ""
	}
	return errorBody{Error: err.Error(), Reason: reason, Retryable: errorsx.Retryable(err) || errors.Is(err, errDraining)}
}
