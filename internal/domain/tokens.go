package domain

import (
	"fmt"
	"strings"
)

// AccountStatus is an open set of tokens. The coordinator only relies on
// StatusPending being the initial value; the others are assigned by admins.
type AccountStatus string

const (
	StatusPending   AccountStatus = "PENDING"
	StatusActive    AccountStatus = "ACTIVE"
	StatusInactive  AccountStatus = "INACTIVE"
	StatusSuspended AccountStatus = "SUSPENDED"
)

var knownStatuses = []AccountStatus{StatusPending, StatusActive, StatusInactive, StatusSuspended}

type Role string

const (
	RoleUser      Role = "USER"
	RoleAdmin     Role = "ADMIN"
	RoleModerator Role = "MODERATOR"
)

// DefaultRole is granted to every account at creation.
const DefaultRole = RoleUser

var knownRoles = []Role{RoleUser, RoleAdmin, RoleModerator}

type Authority string

const (
	AuthorityContentCreate Authority = "CONTENT_CREATE"
	AuthorityContentEdit   Authority = "CONTENT_EDIT"
	AuthorityContentDelete Authority = "CONTENT_DELETE"
	AuthorityUserManage    Authority = "USER_MANAGE"
	AuthorityReportsView   Authority = "REPORTS_VIEW"
)

var knownAuthorities = []Authority{
	AuthorityContentCreate,
	AuthorityContentEdit,
	AuthorityContentDelete,
	AuthorityUserManage,
	AuthorityReportsView,
}

func ParseAccountStatus(s string) (AccountStatus, error) {
	return parseToken(s, knownStatuses, "status")
}

func ParseRole(s string) (Role, error) {
	return parseToken(s, knownRoles, "role")
}

func ParseAuthority(s string) (Authority, error) {
	return parseToken(s, knownAuthorities, "authority")
}

func parseToken[T ~string](s string, known []T, field string) (T, error) {
	v := T(strings.ToUpper(strings.TrimSpace(s)))
	if containsToken(known, v) {
		return v, nil
	}
	return "", NewValidationError(map[string]string{field: fmt.Sprintf("unknown value %q", s)})
}

// AddToken returns set with v appended, and whether the set changed.
func AddToken[T ~string](set []T, v T) ([]T, bool) {
	if containsToken(set, v) {
		return set, false
	}
	out := make([]T, 0, len(set)+1)
	out = append(out, set...)
	return append(out, v), true
}

// RemoveToken returns set without v, and whether the set changed.
func RemoveToken[T ~string](set []T, v T) ([]T, bool) {
	if !containsToken(set, v) {
		return set, false
	}
	out := make([]T, 0, len(set))
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out, true
}

// DedupeTokens drops empty and repeated tokens, keeping first-seen order.
func DedupeTokens[T ~string](set []T) []T {
	out := make([]T, 0, len(set))
	for _, s := range set {
		if s == "" || containsToken(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func containsToken[T ~string](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
