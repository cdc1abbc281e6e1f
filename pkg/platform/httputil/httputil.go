// Package httputil centralizes JSON response and domain error translation for
// HTTP handlers, keeping a consistent error envelope across modules.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "linkforge/pkg/domain-errors"
)

// statusByCode maps domain error codes to HTTP statuses. The boundary mapping
// lives here so services stay wire-agnostic.
var statusByCode = map[dErrors.Code]int{
	dErrors.CodeValidation:            http.StatusBadRequest,
	dErrors.CodeInvalidInput:          http.StatusBadRequest,
	dErrors.CodeBadRequest:            http.StatusBadRequest,
	dErrors.CodeInvalidHostname:       http.StatusBadRequest,
	dErrors.CodeNotFound:              http.StatusNotFound,
	dErrors.CodeConflict:              http.StatusConflict,
	dErrors.CodeDuplicateDomain:       http.StatusConflict,
	dErrors.CodeVersionConflict:       http.StatusConflict,
	dErrors.CodeInvariantViolation:    http.StatusConflict,
	dErrors.CodeQuotaExceeded:         http.StatusPaymentRequired,
	dErrors.CodeForbidden:             http.StatusForbidden,
	dErrors.CodeUnauthorized:          http.StatusUnauthorized,
	dErrors.CodeNotVerified:           http.StatusConflict,
	dErrors.CodeVerificationExhausted: http.StatusConflict,
	dErrors.CodeCertificateTransient:  http.StatusServiceUnavailable,
	dErrors.CodeCertificatePermanent:  http.StatusConflict,
	dErrors.CodeTimeout:               http.StatusGatewayTimeout,
}

// WriteError renders a coded domain error as the standard JSON envelope.
// Internal errors omit the description so store/provider details never leak.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		if msg := dErrors.MessageOf(err); msg != "" {
			body["error_description"] = msg
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Validatable is implemented by request DTOs that validate and parse their
// own fields after JSON decoding.
type Validatable interface {
	Validate() error
}

// validatablePtr constrains PT to a pointer to T that implements Validatable,
// so DecodeAndPrepare can be called with the value type alone.
type validatablePtr[T any] interface {
	*T
	Validatable
}

// DecodeAndPrepare decodes the request body into T, runs its Validate method,
// and writes the error response itself on failure. The second return value is
// false when a response has already been written.
func DecodeAndPrepare[T any, PT validatablePtr[T]](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (PT, bool) {
	var body T
	req := PT(&body)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		logger.WarnContext(ctx, "request decode failed",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body must be valid JSON"))
		return nil, false
	}
	if err := req.Validate(); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return req, true
}

// WriteJSON renders v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
