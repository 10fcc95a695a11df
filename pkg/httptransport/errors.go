package httptransport

import (
	"net/http"

	sharederrors "github.com/qualitymesh/aat-core/pkg/shared/errors"
)

// ErrorResponse is the structured body returned for HTTP 422
// (malformed/invalid request) and HTTP 5xx (service health failure)
// responses.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteValidationError writes a 422 with a structured single-field
// validation failure, the shape every service's request decoding uses
// when a body fails contract validation.
func WriteValidationError(w http.ResponseWriter, field, reason string) {
	WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "validation_failed",
		Message: sharederrors.ValidationError(field, reason).Error(),
		Details: map[string]string{field: reason},
	})
}

// WriteDecodeError writes a 422 for a request body that failed to
// decode as JSON at all (as opposed to decoding but failing field
// validation).
func WriteDecodeError(w http.ResponseWriter, cause error) {
	WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "malformed_request",
		Message: cause.Error(),
	})
}

// WriteError maps err to an HTTP status and writes it as an
// ErrorResponse. Per the platform's propagation policy, this is for
// the handful of cases where a handler itself fails (not a test
// failure, which always reports HTTP 200 with passed=false) — an
// *OperationError's Kind selects the status; KindInput maps to 422,
// KindConfiguration and KindCapacity to 503, KindPermanentIO to 502,
// everything else to 500.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	errType := "internal_error"

	switch sharederrors.KindOf(err) {
	case sharederrors.KindInput:
		status = http.StatusUnprocessableEntity
		errType = "validation_failed"
	case sharederrors.KindConfiguration:
		status = http.StatusServiceUnavailable
		errType = "configuration_error"
	case sharederrors.KindCapacity:
		status = http.StatusServiceUnavailable
		errType = "capacity_exceeded"
	case sharederrors.KindPermanentIO:
		status = http.StatusBadGateway
		errType = "upstream_error"
	}

	WriteJSON(w, status, ErrorResponse{Error: errType, Message: err.Error()})
}
