package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"accountservice/internal/domain"
)

type adminAccountsResponse struct {
	Accounts []domain.AdminAccountView `json:"accounts"`
	Limit    int                       `json:"limit"`
	Offset   int                       `json:"offset"`
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (a *api) handleAdminList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"limit": "must be a non-negative integer"}))
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"offset": "must be a non-negative integer"}))
		return
	}

	accounts, err := a.admin.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if accounts == nil {
		accounts = []domain.AdminAccountView{}
	}
	WriteJSON(w, http.StatusOK, adminAccountsResponse{Accounts: accounts, Limit: limit, Offset: offset})
}

func (a *api) handleAdminGrantRole(w http.ResponseWriter, r *http.Request) {
	a.adminChange(w, r, r.PathValue("role"), a.admin.GrantRole)
}

func (a *api) handleAdminRevokeRole(w http.ResponseWriter, r *http.Request) {
	a.adminChange(w, r, r.PathValue("role"), a.admin.RevokeRole)
}

func (a *api) handleAdminGrantAuthority(w http.ResponseWriter, r *http.Request) {
	a.adminChange(w, r, r.PathValue("authority"), a.admin.GrantAuthority)
}

func (a *api) handleAdminRevokeAuthority(w http.ResponseWriter, r *http.Request) {
	a.adminChange(w, r, r.PathValue("authority"), a.admin.RevokeAuthority)
}

func (a *api) handleAdminSetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if !bindJSON(w, r, &req) {
		return
	}
	a.adminChange(w, r, req.Status, a.admin.SetStatus)
}

func (a *api) adminChange(w http.ResponseWriter, r *http.Request, token string, fn func(context.Context, string, string) error) {
	if err := fn(r.Context(), accountIDParam(r), token); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
