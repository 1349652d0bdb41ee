package httpapi

import (
	"encoding/json"
	"net/http"
)

// HTTPError is the JSON error body returned by every endpoint.
type HTTPError struct {
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e HTTPError) Error() string {
	return e.Message
}

// WithMessage returns a copy of the error with a custom message.
func (e HTTPError) WithMessage(message string) HTTPError {
	e.Message = message
	return e
}

// WithError returns a copy of the error with an error cause.
func (e HTTPError) WithError(err error) HTTPError {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details["cause"] = err.Error()
	e.Details = details
	return e
}

var (
	ErrBadRequest = HTTPError{
		Status:  http.StatusBadRequest,
		Code:    "bad_request",
		Message: http.StatusText(http.StatusBadRequest),
	}
	ErrNotFound = HTTPError{
		Status:  http.StatusNotFound,
		Code:    "not_found",
		Message: http.StatusText(http.StatusNotFound),
	}
	ErrServiceUnavailable = HTTPError{
		Status:  http.StatusServiceUnavailable,
		Code:    "service_unavailable",
		Message: http.StatusText(http.StatusServiceUnavailable),
	}
	ErrInternalServerError = HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_server_error",
		Message: http.StatusText(http.StatusInternalServerError),
	}
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if status == http.StatusNoContent || v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, e HTTPError) {
	writeJSON(w, e.Status, e)
}
