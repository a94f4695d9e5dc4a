package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"accountservice/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Accounts *service.AccountService
	Admin    *service.AdminService

	// InternalToken guards the internal and admin routes. Empty disables
	// the check.
	InternalToken string

	// TrustProxy makes the attempt limiter key on X-Forwarded-For. Only set
	// it when a proxy in front of the service overwrites that header.
	TrustProxy bool
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := &api{
		logger:        logger,
		isProd:        opts.IsProd,
		dbPing:        opts.DBPing,
		accounts:      opts.Accounts,
		admin:         opts.Admin,
		internalToken: opts.InternalToken,
		trustProxy:    opts.TrustProxy,
		attempts:      newAttemptLimiter(),
	}

	publicMux := http.NewServeMux()
	apiMux := http.NewServeMux()

	publicMux.HandleFunc("GET /healthz", api.handleHealthz)

	if api.accounts == nil {
		apiMux.HandleFunc("POST /v1/users", handleNotImplemented)
		apiMux.HandleFunc("GET /v1/users/{id}", handleNotImplemented)
	} else {
		apiMux.HandleFunc("POST /v1/users", api.handleUsersCreate)
		apiMux.HandleFunc("GET /v1/users/{id}", api.handleUsersGet)
		apiMux.HandleFunc("PATCH /v1/users/{id}", api.handleUsersUpdate)
		apiMux.HandleFunc("PUT /v1/users/{id}/email", api.limitPasswordAttempts(api.handleUsersChangeEmail))
		apiMux.HandleFunc("DELETE /v1/users/{id}", api.limitPasswordAttempts(api.handleUsersDelete))

		apiMux.HandleFunc("POST /v1/internal/users/{id}/verify", api.requireInternal(api.handleInternalVerify))
		apiMux.HandleFunc("GET /v1/internal/users/{id}/auth-details", api.requireInternal(api.handleInternalAuthDetails))
		apiMux.HandleFunc("GET /v1/internal/auth-details", api.requireInternal(api.handleInternalAuthDetailsByEmail))
	}

	if api.admin != nil {
		apiMux.HandleFunc("GET /v1/admin/users", api.requireInternal(api.handleAdminList))
		apiMux.HandleFunc("POST /v1/admin/users/{id}/roles/{role}", api.requireInternal(api.handleAdminGrantRole))
		apiMux.HandleFunc("DELETE /v1/admin/users/{id}/roles/{role}", api.requireInternal(api.handleAdminRevokeRole))
		apiMux.HandleFunc("POST /v1/admin/users/{id}/authorities/{authority}", api.requireInternal(api.handleAdminGrantAuthority))
		apiMux.HandleFunc("DELETE /v1/admin/users/{id}/authorities/{authority}", api.requireInternal(api.handleAdminRevokeAuthority))
		apiMux.HandleFunc("PUT /v1/admin/users/{id}/status", api.requireInternal(api.handleAdminSetStatus))
	}

	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, pattern := apiMux.Handler(r)
		if pattern == "" {
			handleV1NotFound(w, r)
			return
		}
		noteRoute(r.Context(), pattern)
		apiMux.ServeHTTP(w, r)
	})

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || r.URL.Path == "/v1" {
			apiHandler.ServeHTTP(w, r)
			return
		}
		if _, pattern := publicMux.Handler(r); pattern != "" {
			noteRoute(r.Context(), pattern)
		}
		publicMux.ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotImplemented, "not_implemented", "not implemented")
}

func handleV1NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing func(context.Context) error

	accounts *service.AccountService
	admin    *service.AdminService

	internalToken string

	trustProxy bool
	attempts   *attemptLimiter
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			a.logger.WarnContext(ctx, "healthz: store ping failed", "err", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
