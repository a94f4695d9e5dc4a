package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"accountservice/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteDomainError maps the error taxonomy to stable status codes. A failed
// registration may wrap an unavailable gateway, so it is matched first.
func WriteDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{
			Code:    "validation_error",
			Message: "invalid request",
			Fields:  verr.Fields,
		}})
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, http.StatusBadRequest, "validation_error", "invalid request")
	case errors.Is(err, domain.ErrRegistrationFailed):
		WriteError(w, http.StatusBadGateway, "registration_failed", "account registration failed, retry with a new request")
	case errors.Is(err, domain.ErrEmailExists):
		WriteError(w, http.StatusConflict, "email_exists", "email already in use")
	case errors.Is(err, domain.ErrPasswordInvalid):
		WriteError(w, http.StatusUnauthorized, "password_invalid", "password is invalid")
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		w.Header().Set("Retry-After", "1")
		WriteError(w, http.StatusServiceUnavailable, "upstream_unavailable", "credential service unavailable")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func isClientError(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrEmailExists) ||
		errors.Is(err, domain.ErrPasswordInvalid) ||
		errors.Is(err, domain.ErrNotFound)
}
