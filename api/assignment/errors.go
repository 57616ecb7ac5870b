package assignment

import (
	"errors"
	"net/http"

	"github.com/kilianp07/fleetassign/core/dispatch"
	"github.com/kilianp07/fleetassign/core/store"
)

type errorBody struct {
	Error            string                    `json:"error"`
	Reason           dispatch.Reason           `json:"reason,omitempty"`
	IneligibleReason dispatch.IneligibleReason `json:"ineligible_reason,omitempty"`
}

// statusFor maps engine errors to HTTP status codes. A guard rejection
// during commit carries both ErrConflict and ErrIneligible and is reported
// as a conflict.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, dispatch.ErrIneligible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dispatch.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) fail(w http.ResponseWriter, err error, out *dispatch.Outcome) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	if out != nil && status != http.StatusNotFound && status != http.StatusBadRequest {
		body.Reason = out.Reason
	}
	var ie *dispatch.IneligibleError
	if errors.As(err, &ie) {
		body.IneligibleReason = ie.Reason
	}
	if status >= http.StatusInternalServerError {
		h.log.Errorf("request failed: %v", err)
	}
	writeJSON(w, status, body)
}
