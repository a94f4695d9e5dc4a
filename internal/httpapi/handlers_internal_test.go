package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"accountservice/internal/domain"
)

func TestInternalRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, "s3cret")
	view := s.createAccount(t, "john@example.com")

	rr := s.do(t, http.MethodGet, "/v1/internal/users/"+view.ID+"/auth-details", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
	rr = s.do(t, http.MethodGet, "/v1/internal/users/"+view.ID+"/auth-details", "", internalTokenHeader, "nope")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rr.Code)
	}
	rr = s.do(t, http.MethodGet, "/v1/internal/users/"+view.ID+"/auth-details", "", internalTokenHeader, "s3cret")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}
	rr = s.do(t, http.MethodGet, "/v1/admin/users", "", "Authorization", "Bearer s3cret")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected bearer token to be accepted, got %d", rr.Code)
	}
}

func TestInternalVerify(t *testing.T) {
	s := newTestServer(t, "")
	view := s.createAccount(t, "john@example.com")

	for i := 0; i < 2; i++ {
		rr := s.do(t, http.MethodPost, "/v1/internal/users/"+view.ID+"/verify", "")
		if rr.Code != http.StatusNoContent {
			t.Fatalf("verify #%d: unexpected status %d", i+1, rr.Code)
		}
	}
	a, err := s.store.GetAccountByID(context.Background(), view.ID)
	if err != nil {
		t.Fatalf("GetAccountByID: %v", err)
	}
	if !a.EmailVerified || a.Status != domain.StatusPending {
		t.Fatalf("unexpected account after verify: %+v", a)
	}

	rr := s.do(t, http.MethodPost, "/v1/internal/users/missing/verify", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", rr.Code)
	}
}

func TestInternalAuthDetailsByEmail(t *testing.T) {
	s := newTestServer(t, "")
	view := s.createAccount(t, "john@example.com")

	rr := s.do(t, http.MethodGet, "/v1/internal/auth-details?email=JOHN@example.com", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "john@example.com") {
		t.Fatalf("auth details must not expose the email: %s", rr.Body.String())
	}
	var details domain.AuthDetails
	if err := json.Unmarshal(rr.Body.Bytes(), &details); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if details.ID != view.ID || len(details.Roles) != 1 || details.Roles[0] != domain.RoleUser {
		t.Fatalf("unexpected details: %+v", details)
	}

	rr = s.do(t, http.MethodGet, "/v1/internal/auth-details", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected missing email to be rejected, got %d", rr.Code)
	}
	rr = s.do(t, http.MethodGet, "/v1/internal/auth-details?email=ghost@example.com", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := NewRouter(RouterOpts{DBPing: func(context.Context) error { return nil }})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected response %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected a request id header")
	}

	h = NewRouter(RouterOpts{DBPing: func(context.Context) error { return errors.New("down") }})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status %d", rr.Code)
	}
}

func TestUnknownV1RouteIsJSONNotFound(t *testing.T) {
	s := newTestServer(t, "")
	rr := s.do(t, http.MethodGet, "/v1/nope", "")
	if rr.Code != http.StatusNotFound || errorCode(t, rr) != "not_found" {
		t.Fatalf("unexpected response %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	s := newTestServer(t, "")
	rr := s.do(t, http.MethodGet, "/healthz", "", "X-Request-Id", "abc-123")
	if got := rr.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Fatalf("unexpected request id %q", got)
	}
}

func TestRecovererWritesInternalError(t *testing.T) {
	h := Recoverer(nil, true)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError || errorCode(t, rr) != "internal_error" {
		t.Fatalf("unexpected response %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRequestIDReplacesUnusableValues(t *testing.T) {
	s := newTestServer(t, "")
	for name, incoming := range map[string]string{
		"too long":  strings.Repeat("a", maxRequestIDLen+1),
		"has space": "abc 123",
		"has quote": `abc"123`,
	} {
		t.Run(name, func(t *testing.T) {
			rr := s.do(t, http.MethodGet, "/healthz", "", "X-Request-Id", incoming)
			got := rr.Header().Get("X-Request-Id")
			if got == incoming {
				t.Fatalf("expected %q to be replaced", incoming)
			}
			if _, err := uuid.Parse(got); err != nil {
				t.Fatalf("expected a generated uuid, got %q", got)
			}
		})
	}
}
