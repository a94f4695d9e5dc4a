package domain

import (
	"strings"
	"time"
)

type Account struct {
	ID            string
	FirstName     string
	LastName      string
	Email         string
	Country       string
	EmailVerified bool
	Status        AccountStatus
	Roles         []Role
	Authorities   []Authority
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastActive    time.Time
}

func (a Account) DisplayName() string {
	return strings.TrimSpace(a.FirstName)
}

func (a Account) HasRole(r Role) bool {
	return containsToken(a.Roles, r)
}

func (a Account) HasAuthority(au Authority) bool {
	return containsToken(a.Authorities, au)
}

// NewAccount carries the already validated fields of a create request.
type NewAccount struct {
	FirstName string
	LastName  string
	Email     string
	Country   string
	Password  string
}

type ProfileUpdate struct {
	FirstName string
	LastName  string
	Country   string
}

// AccountUpdate is a partial update; only non-nil fields are written.
type AccountUpdate struct {
	FirstName     *string
	LastName      *string
	Country       *string
	Email         *string
	EmailVerified *bool
	Status        *AccountStatus
}

func (u AccountUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Country == nil &&
		u.Email == nil && u.EmailVerified == nil && u.Status == nil
}

// Apply returns a copy of a with the update applied.
func (u AccountUpdate) Apply(a Account) Account {
	if u.FirstName != nil {
		a.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		a.LastName = *u.LastName
	}
	if u.Country != nil {
		a.Country = *u.Country
	}
	if u.Email != nil {
		a.Email = NormalizeEmail(*u.Email)
	}
	if u.EmailVerified != nil {
		a.EmailVerified = *u.EmailVerified
	}
	if u.Status != nil {
		a.Status = *u.Status
	}
	return a
}

type CredentialsRequest struct {
	AccountID   string
	DisplayName string
	Email       string
	Password    string
}

type AccountView struct {
	ID            string    `json:"id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Email         string    `json:"email"`
	Country       string    `json:"country"`
	EmailVerified bool      `json:"email_verified"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	LastActive    time.Time `json:"last_active"`
}

func (a Account) View() AccountView {
	return AccountView{
		ID:            a.ID,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		Email:         a.Email,
		Country:       a.Country,
		EmailVerified: a.EmailVerified,
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt,
		LastActive:    a.LastActive,
	}
}

// AuthDetails is the machine-to-machine authorization view. It never carries
// email or names.
type AuthDetails struct {
	ID          string      `json:"id"`
	Roles       []Role      `json:"roles"`
	Authorities []Authority `json:"authorities"`
	Status      string      `json:"status"`
}

func (a Account) AuthDetails() AuthDetails {
	roles := append([]Role{}, a.Roles...)
	authorities := append([]Authority{}, a.Authorities...)
	return AuthDetails{
		ID:          a.ID,
		Roles:       roles,
		Authorities: authorities,
		Status:      string(a.Status),
	}
}

type EmailChange struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

type AdminAccountView struct {
	AccountView
	Roles       []Role      `json:"roles"`
	Authorities []Authority `json:"authorities"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (a Account) AdminView() AdminAccountView {
	return AdminAccountView{
		AccountView: a.View(),
		Roles:       append([]Role{}, a.Roles...),
		Authorities: append([]Authority{}, a.Authorities...),
		UpdatedAt:   a.UpdatedAt,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
