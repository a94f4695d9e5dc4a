package service

import (
	"context"
	"log/slog"

	"accountservice/internal/domain"
)

type AdminAccountsStore interface {
	ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, error)
	UpdateAccount(ctx context.Context, id string, upd domain.AccountUpdate) (domain.Account, error)
	AddRole(ctx context.Context, id string, role domain.Role) (domain.Account, error)
	RemoveRole(ctx context.Context, id string, role domain.Role) (domain.Account, error)
	AddAuthority(ctx context.Context, id string, authority domain.Authority) (domain.Account, error)
	RemoveAuthority(ctx context.Context, id string, authority domain.Authority) (domain.Account, error)
}

// AdminService holds the role, authority and status mutations. Grants of a
// token already held and revokes of a token not held succeed without change.
type AdminService struct {
	Accounts AdminAccountsStore
	Logger   *slog.Logger
}

func (s *AdminService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *AdminService) ListAccounts(ctx context.Context, limit, offset int) ([]domain.AdminAccountView, error) {
	accounts, err := s.Accounts.ListAccounts(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AdminAccountView, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.AdminView())
	}
	return out, nil
}

func (s *AdminService) GrantRole(ctx context.Context, id, role string) error {
	r, err := domain.ParseRole(role)
	if err != nil {
		return err
	}
	if _, err := s.Accounts.AddRole(ctx, id, r); err != nil {
		return err
	}
	s.logger().InfoContext(ctx, "admin: role granted", "account_id", id, "role", r)
	return nil
}

// RevokeRole refuses to remove the last role an account holds.
func (s *AdminService) RevokeRole(ctx context.Context, id, role string) error {
	r, err := domain.ParseRole(role)
	if err != nil {
		return err
	}
	if _, err := s.Accounts.RemoveRole(ctx, id, r); err != nil {
		return err
	}
	s.logger().InfoContext(ctx, "admin: role revoked", "account_id", id, "role", r)
	return nil
}

func (s *AdminService) GrantAuthority(ctx context.Context, id, authority string) error {
	a, err := domain.ParseAuthority(authority)
	if err != nil {
		return err
	}
	if _, err := s.Accounts.AddAuthority(ctx, id, a); err != nil {
		return err
	}
	s.logger().InfoContext(ctx, "admin: authority granted", "account_id", id, "authority", a)
	return nil
}

func (s *AdminService) RevokeAuthority(ctx context.Context, id, authority string) error {
	a, err := domain.ParseAuthority(authority)
	if err != nil {
		return err
	}
	if _, err := s.Accounts.RemoveAuthority(ctx, id, a); err != nil {
		return err
	}
	s.logger().InfoContext(ctx, "admin: authority revoked", "account_id", id, "authority", a)
	return nil
}

func (s *AdminService) SetStatus(ctx context.Context, id, status string) error {
	st, err := domain.ParseAccountStatus(status)
	if err != nil {
		return err
	}
	if _, err := s.Accounts.UpdateAccount(ctx, id, domain.AccountUpdate{Status: &st}); err != nil {
		return err
	}
	s.logger().InfoContext(ctx, "admin: status set", "account_id", id, "status", st)
	return nil
}
