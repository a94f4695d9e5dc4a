package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"accountservice/internal/activity"
	"accountservice/internal/domain"
	"accountservice/internal/events"
)

const (
	DefaultCredentialTimeout   = 5 * time.Second
	DefaultCompensationTimeout = 10 * time.Second
	asyncPublishTimeout        = 5 * time.Second
)

type AccountStore interface {
	CreateAccount(ctx context.Context, a domain.Account) (domain.Account, error)
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdateAccount(ctx context.Context, id string, upd domain.AccountUpdate) (domain.Account, error)
	DeleteAccount(ctx context.Context, id string) error
	TouchLastActive(ctx context.Context, id string, at time.Time) error
}

type CredentialGateway interface {
	RegisterCredentials(ctx context.Context, req domain.CredentialsRequest) error
	VerifyPassword(ctx context.Context, accountID, password string) error
}

// AccountService sequences account store writes with the credential gateway
// and downstream notifications.
//
// Synchronous gateway failures are compensated (create) or stop the
// operation before any write (email change, delete). Notifications are
// published after the write commits and their failures are only logged.
type AccountService struct {
	Store       AccountStore
	Credentials CredentialGateway
	Events      events.Publisher
	// Activity records last-active on auth-detail reads. When nil the store
	// is written directly.
	Activity activity.Recorder
	Logger   *slog.Logger

	Now   func() time.Time
	NewID func() string

	CredentialTimeout   time.Duration
	CompensationTimeout time.Duration
}

func (s *AccountService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *AccountService) newID() string {
	if s.NewID == nil {
		return uuid.NewString()
	}
	return s.NewID()
}

func (s *AccountService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *AccountService) recorder() activity.Recorder {
	if s.Activity != nil {
		return s.Activity
	}
	return activity.StoreRecorder{Store: s.Store}
}

func (s *AccountService) CreateAccount(ctx context.Context, req domain.NewAccount) (domain.AccountView, error) {
	email := domain.NormalizeEmail(req.Email)

	exists, err := s.Store.EmailExists(ctx, email)
	if err != nil {
		return domain.AccountView{}, err
	}
	if exists {
		return domain.AccountView{}, domain.ErrEmailExists
	}
	if err := ctx.Err(); err != nil {
		return domain.AccountView{}, err
	}

	now := s.now()
	id := s.newID()
	created, err := s.Store.CreateAccount(ctx, domain.Account{
		ID:          id,
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Email:       email,
		Country:     strings.TrimSpace(req.Country),
		Status:      domain.StatusPending,
		Roles:       []domain.Role{domain.DefaultRole},
		Authorities: []domain.Authority{},
		CreatedAt:   now,
		LastActive:  now,
	})
	if err != nil {
		// A cancelled insert may still have committed.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.compensateCreate(ctx, id, err)
		}
		return domain.AccountView{}, err
	}

	err = s.callGateway(ctx, func(ctx context.Context) error {
		return s.Credentials.RegisterCredentials(ctx, domain.CredentialsRequest{
			AccountID:   created.ID,
			DisplayName: created.DisplayName(),
			Email:       created.Email,
			Password:    req.Password,
		})
	})
	if err != nil {
		s.compensateCreate(ctx, created.ID, err)
		return domain.AccountView{}, &domain.RegistrationError{AccountID: created.ID, Cause: classifyRegistration(err)}
	}

	s.publish(ctx, events.NewProfileProvision(created.ID, created.DisplayName()))

	s.logger().InfoContext(ctx, "accounts: created", "account_id", created.ID)
	return created.View(), nil
}

// compensateCreate removes an account whose credentials could not be
// registered. It runs to completion even if the caller has gone away.
func (s *AccountService) compensateCreate(ctx context.Context, id string, cause error) {
	timeout := s.CompensationTimeout
	if timeout <= 0 {
		timeout = DefaultCompensationTimeout
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	err := s.Store.DeleteAccount(cctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger().ErrorContext(ctx, "accounts: compensation delete failed",
			"account_id", id,
			"cause", cause,
			"err", err,
		)
		return
	}
	s.logger().WarnContext(ctx, "accounts: registration rolled back", "account_id", id, "cause", cause)
}

func (s *AccountService) GetAccount(ctx context.Context, id string) (domain.AccountView, error) {
	a, err := s.Store.GetAccountByID(ctx, id)
	if err != nil {
		return domain.AccountView{}, err
	}
	return a.View(), nil
}

// UpdateProfile changes display fields only. Email has its own operation.
func (s *AccountService) UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate) (domain.AccountView, error) {
	firstName := strings.TrimSpace(upd.FirstName)
	lastName := strings.TrimSpace(upd.LastName)
	country := strings.TrimSpace(upd.Country)

	if err := ctx.Err(); err != nil {
		return domain.AccountView{}, err
	}
	a, err := s.Store.UpdateAccount(ctx, id, domain.AccountUpdate{
		FirstName: &firstName,
		LastName:  &lastName,
		Country:   &country,
	})
	if err != nil {
		return domain.AccountView{}, err
	}
	return a.View(), nil
}

func (s *AccountService) ChangeEmail(ctx context.Context, id, newEmail, password string) (domain.EmailChange, error) {
	a, err := s.Store.GetAccountByID(ctx, id)
	if err != nil {
		return domain.EmailChange{}, err
	}

	if err := s.verifyPassword(ctx, a.ID, password); err != nil {
		return domain.EmailChange{}, err
	}

	newEmail = domain.NormalizeEmail(newEmail)
	if newEmail != a.Email {
		exists, err := s.Store.EmailExists(ctx, newEmail)
		if err != nil {
			return domain.EmailChange{}, err
		}
		if exists {
			return domain.EmailChange{}, domain.ErrEmailExists
		}
	}
	if err := ctx.Err(); err != nil {
		return domain.EmailChange{}, err
	}

	verified := false
	updated, err := s.Store.UpdateAccount(ctx, a.ID, domain.AccountUpdate{
		Email:         &newEmail,
		EmailVerified: &verified,
	})
	if err != nil {
		return domain.EmailChange{}, err
	}

	s.publish(ctx, events.NewPasscodeReset(updated.ID, updated.Email))

	s.logger().InfoContext(ctx, "accounts: email changed", "account_id", updated.ID)
	return domain.EmailChange{ID: updated.ID, Email: updated.Email, EmailVerified: updated.EmailVerified}, nil
}

// VerifyAccount marks the email as verified. Verifying twice is not an
// error.
func (s *AccountService) VerifyAccount(ctx context.Context, id string) error {
	a, err := s.Store.GetAccountByID(ctx, id)
	if err != nil {
		return err
	}
	if a.EmailVerified {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	verified := true
	if _, err := s.Store.UpdateAccount(ctx, a.ID, domain.AccountUpdate{EmailVerified: &verified}); err != nil {
		return err
	}
	s.logger().InfoContext(ctx, "accounts: verified", "account_id", a.ID)
	return nil
}

func (s *AccountService) GetAuthDetails(ctx context.Context, id string) (domain.AuthDetails, error) {
	a, err := s.Store.GetAccountByID(ctx, id)
	if err != nil {
		return domain.AuthDetails{}, err
	}
	s.touch(ctx, a.ID)
	return a.AuthDetails(), nil
}

func (s *AccountService) GetAuthDetailsByEmail(ctx context.Context, email string) (domain.AuthDetails, error) {
	a, err := s.Store.GetAccountByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return domain.AuthDetails{}, err
	}
	s.touch(ctx, a.ID)
	return a.AuthDetails(), nil
}

// touch records activity for an auth-detail read. A failed touch never fails
// the read.
func (s *AccountService) touch(ctx context.Context, id string) {
	if err := s.recorder().RecordActivity(ctx, id, s.now()); err != nil {
		s.logger().WarnContext(ctx, "accounts: record activity failed", "account_id", id, "err", err)
	}
}

func (s *AccountService) DeleteAccount(ctx context.Context, id, password string) error {
	if err := s.verifyPassword(ctx, id, password); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.Store.DeleteAccount(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, events.NewDeleteUserData(id))

	s.logger().InfoContext(ctx, "accounts: deleted", "account_id", id)
	return nil
}

// ApplyLastActive writes back a last-active timestamp computed elsewhere.
// Older timestamps never overwrite newer ones.
func (s *AccountService) ApplyLastActive(ctx context.Context, id string, at time.Time) error {
	return s.Store.TouchLastActive(ctx, id, at.UTC())
}

func (s *AccountService) HandleAccountVerified(ctx context.Context, msg events.AccountVerified) error {
	return s.VerifyAccount(ctx, msg.AccountID)
}

func (s *AccountService) HandleLastActiveChanged(ctx context.Context, msg events.LastActiveChanged) error {
	return s.ApplyLastActive(ctx, msg.AccountID, msg.LastActive)
}

func (s *AccountService) verifyPassword(ctx context.Context, id, password string) error {
	err := s.callGateway(ctx, func(ctx context.Context) error {
		return s.Credentials.VerifyPassword(ctx, id, password)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrPasswordInvalid), errors.Is(err, domain.ErrUpstreamUnavailable):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fmt.Errorf("%w: verify password: %v", domain.ErrUpstreamUnavailable, err)
	}
}

// callGateway bounds a gateway call by CredentialTimeout. A call that runs
// out of time is reported as upstream unavailable.
func (s *AccountService) callGateway(ctx context.Context, fn func(ctx context.Context) error) error {
	timeout := s.CredentialTimeout
	if timeout <= 0 {
		timeout = DefaultCredentialTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(cctx)
	if err != nil && ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrUpstreamUnavailable) {
		return fmt.Errorf("%w: credential gateway timed out after %s: %v", domain.ErrUpstreamUnavailable, timeout, err)
	}
	return err
}

func classifyRegistration(err error) error {
	if errors.Is(err, domain.ErrCredentialsRejected) || errors.Is(err, domain.ErrUpstreamUnavailable) ||
		errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: register credentials: %v", domain.ErrUpstreamUnavailable, err)
}

// publish sends a notification after the local write committed. It is
// detached from the caller so a dropped request does not drop the event.
func (s *AccountService) publish(ctx context.Context, ev events.Event) {
	if s.Events == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), asyncPublishTimeout)
	defer cancel()

	if err := s.Events.Publish(pctx, ev); err != nil {
		s.logger().WarnContext(ctx, "accounts: publish failed",
			"kind", ev.Kind,
			"account_id", ev.AccountID,
			"err", err,
		)
	}
}
