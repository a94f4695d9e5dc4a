package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"accountservice/internal/domain"
)

// attemptLimiter bounds password-checked requests per key within a sliding
// window. Each allowed call counts as an attempt.
type attemptLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	entries   map[string][]time.Time
	lastSweep time.Time
}

func newAttemptLimiter() *attemptLimiter {
	return &attemptLimiter{
		window:  5 * time.Minute,
		max:     10,
		entries: make(map[string][]time.Time),
	}
}

func (l *attemptLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)

	cutoff := now.Add(-l.window)
	ts := l.entries[key]

	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	ts = kept
	if len(ts) >= l.max {
		l.entries[key] = ts
		return false
	}

	l.entries[key] = append(ts, now)
	return true
}

// sweepLocked drops keys with no attempt left in the window. It runs at
// most once per window.
func (l *attemptLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	cutoff := now.Add(-l.window)
	for k, ts := range l.entries {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(l.entries, k)
		}
	}
}

func (l *attemptLimiter) keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// limitPasswordAttempts guards routes that forward a password to the
// credential service. Attempts are counted per client address and per
// canonical account id, so spelling variants of one id share a bucket.
func (a *api) limitPasswordAttempts(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.attempts == nil {
			next.ServeHTTP(w, r)
			return
		}
		id, ok := canonicalAccountID(r.PathValue("id"))
		if !ok {
			WriteDomainError(w, domain.ErrNotFound)
			return
		}
		now := time.Now()
		if !a.attempts.Allow("ip:"+a.clientIP(r), now) || !a.attempts.Allow("account:"+id, now) {
			noteAccount(r.Context(), id)
			w.Header().Set("Retry-After", "60")
			WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
			return
		}
		next.ServeHTTP(w, r)
	}
}

// clientIP returns the peer address. X-Forwarded-For is only honoured
// behind a trusted proxy, and then only its last entry, which the proxy
// itself appended.
func (a *api) clientIP(r *http.Request) string {
	if a.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if ip := strings.TrimSpace(parts[len(parts)-1]); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
