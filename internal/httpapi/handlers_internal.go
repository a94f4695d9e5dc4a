package httpapi

import (
	"net/http"
	"strings"

	"accountservice/internal/domain"
)

func (a *api) handleInternalVerify(w http.ResponseWriter, r *http.Request) {
	if err := a.accounts.VerifyAccount(r.Context(), accountIDParam(r)); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleInternalAuthDetails(w http.ResponseWriter, r *http.Request) {
	details, err := a.accounts.GetAuthDetails(r.Context(), accountIDParam(r))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, details)
}

func (a *api) handleInternalAuthDetailsByEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"email": "required"}))
		return
	}

	details, err := a.accounts.GetAuthDetailsByEmail(r.Context(), email)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, details)
}
