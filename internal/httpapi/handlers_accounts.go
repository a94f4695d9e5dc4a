package httpapi

import (
	"net/http"
	"strings"

	"accountservice/internal/domain"
)

type createAccountRequest struct {
	FirstName string `json:"first_name" validate:"notblank,max=100"`
	LastName  string `json:"last_name" validate:"notblank,max=100"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Country   string `json:"country" validate:"max=100"`
	Password  string `json:"password" validate:"required,password"`
}

type updateProfileRequest struct {
	FirstName string `json:"first_name" validate:"notblank,max=100"`
	LastName  string `json:"last_name" validate:"notblank,max=100"`
	Country   string `json:"country" validate:"max=100"`
}

type changeEmailRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

type deleteAccountRequest struct {
	Password string `json:"password" validate:"required"`
}

func (r *createAccountRequest) normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
	r.Country = strings.TrimSpace(r.Country)
}

func (r *updateProfileRequest) normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Country = strings.TrimSpace(r.Country)
}

func (r *changeEmailRequest) normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

func (a *api) handleUsersCreate(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !bindJSON(w, r, &req) {
		return
	}

	view, err := a.accounts.CreateAccount(r.Context(), domain.NewAccount{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Country:   req.Country,
		Password:  req.Password,
	})
	if err != nil {
		a.logFailure(r, "create account", err)
		WriteDomainError(w, err)
		return
	}
	noteAccount(r.Context(), view.ID)

	w.Header().Set("Location", "/v1/users/"+view.ID)
	WriteJSON(w, http.StatusCreated, view)
}

func (a *api) handleUsersGet(w http.ResponseWriter, r *http.Request) {
	view, err := a.accounts.GetAccount(r.Context(), accountIDParam(r))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=0")
	WriteJSON(w, http.StatusOK, view)
}

func (a *api) handleUsersUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if !bindJSON(w, r, &req) {
		return
	}

	view, err := a.accounts.UpdateProfile(r.Context(), accountIDParam(r), domain.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Country:   req.Country,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

func (a *api) handleUsersChangeEmail(w http.ResponseWriter, r *http.Request) {
	var req changeEmailRequest
	if !bindJSON(w, r, &req) {
		return
	}

	change, err := a.accounts.ChangeEmail(r.Context(), accountIDParam(r), req.Email, req.Password)
	if err != nil {
		a.logFailure(r, "change email", err)
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, change)
}

func (a *api) handleUsersDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteAccountRequest
	if !bindJSON(w, r, &req) {
		return
	}

	if err := a.accounts.DeleteAccount(r.Context(), accountIDParam(r), req.Password); err != nil {
		a.logFailure(r, "delete account", err)
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// logFailure records errors the caller cannot act on. Client errors are
// already visible in the response.
func (a *api) logFailure(r *http.Request, op string, err error) {
	if isClientError(err) {
		return
	}
	fields := []any{"op", op, "err", err}
	if rid, ok := GetRequestID(r.Context()); ok {
		fields = append(fields, "request_id", rid)
	}
	a.logger.WarnContext(r.Context(), "http: operation failed", fields...)
}
