package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const internalTokenHeader = "X-Internal-Token"

// requireInternal restricts service-to-service and admin routes to callers
// presenting the shared internal token.
func (a *api) requireInternal(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.internalToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		got := strings.TrimSpace(r.Header.Get(internalTokenHeader))
		if got == "" {
			if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
				got = strings.TrimSpace(v)
			}
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(a.internalToken)) != 1 {
			WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	}
}
