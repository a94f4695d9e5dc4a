package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"accountservice/internal/domain"
)

func TestAdminRoles(t *testing.T) {
	s := newTestServer(t, "")
	view := s.createAccount(t, "john@example.com")
	base := "/v1/admin/users/" + view.ID

	rr := s.do(t, http.MethodPost, base+"/roles/admin", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("grant: unexpected status %d: %s", rr.Code, rr.Body.String())
	}
	rr = s.do(t, http.MethodPost, base+"/roles/OWNER", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown role: unexpected status %d", rr.Code)
	}
	rr = s.do(t, http.MethodDelete, base+"/roles/USER", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("revoke: unexpected status %d", rr.Code)
	}
	rr = s.do(t, http.MethodDelete, base+"/roles/ADMIN", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("revoking the last role should fail, got %d", rr.Code)
	}

	a, err := s.store.GetAccountByID(context.Background(), view.ID)
	if err != nil {
		t.Fatalf("GetAccountByID: %v", err)
	}
	if len(a.Roles) != 1 || a.Roles[0] != domain.RoleAdmin {
		t.Fatalf("unexpected roles: %v", a.Roles)
	}
}

func TestAdminAuthoritiesAndStatus(t *testing.T) {
	s := newTestServer(t, "")
	view := s.createAccount(t, "john@example.com")
	base := "/v1/admin/users/" + view.ID

	if rr := s.do(t, http.MethodPost, base+"/authorities/REPORTS_VIEW", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("grant authority: unexpected status %d", rr.Code)
	}
	if rr := s.do(t, http.MethodPut, base+"/status", `{"status":"ACTIVE"}`); rr.Code != http.StatusNoContent {
		t.Fatalf("set status: unexpected status %d", rr.Code)
	}
	if rr := s.do(t, http.MethodPut, base+"/status", `{"status":"GONE"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad status: unexpected status %d", rr.Code)
	}
	if rr := s.do(t, http.MethodPut, "/v1/admin/users/missing/status", `{"status":"ACTIVE"}`); rr.Code != http.StatusNotFound {
		t.Fatalf("missing account: unexpected status %d", rr.Code)
	}

	a, err := s.store.GetAccountByID(context.Background(), view.ID)
	if err != nil {
		t.Fatalf("GetAccountByID: %v", err)
	}
	if a.Status != domain.StatusActive || !a.HasAuthority(domain.AuthorityReportsView) {
		t.Fatalf("unexpected account: %+v", a)
	}

	if rr := s.do(t, http.MethodDelete, base+"/authorities/REPORTS_VIEW", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("revoke authority: unexpected status %d", rr.Code)
	}
}

func TestAdminList(t *testing.T) {
	s := newTestServer(t, "")
	ctx := context.Background()
	for i, email := range []string{"a@example.com", "b@example.com"} {
		_, err := s.store.CreateAccount(ctx, domain.Account{
			ID:        email,
			FirstName: "A",
			LastName:  "B",
			Email:     email,
			Status:    domain.StatusPending,
			Roles:     []domain.Role{domain.RoleUser},
			CreatedAt: time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}
	}

	rr := s.do(t, http.MethodGet, "/v1/admin/users?limit=1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	var resp adminAccountsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Accounts) != 1 || resp.Accounts[0].ID != "b@example.com" {
		t.Fatalf("unexpected page: %+v", resp.Accounts)
	}

	rr = s.do(t, http.MethodGet, "/v1/admin/users?offset=-1", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected negative offset to be rejected, got %d", rr.Code)
	}
}
