package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"accountservice/internal/domain"
)

type AccountsStore struct {
	pool *pgxpool.Pool
}

func NewAccountsStore(pool *pgxpool.Pool) *AccountsStore {
	return &AccountsStore{pool: pool}
}

func (s *AccountsStore) CreateAccount(ctx context.Context, a domain.Account) (domain.Account, error) {
	if _, err := uuid.Parse(a.ID); err != nil {
		return domain.Account{}, domain.NewValidationError(map[string]string{"id": "must be a uuid"})
	}

	const q = `
		INSERT INTO accounts (id, first_name, last_name, email, country, email_verified, status, roles, authorities, created_at, last_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()), COALESCE($11, now()))
		RETURNING ` + accountColumns

	created, err := scanAccount(s.pool.QueryRow(ctx, q,
		a.ID,
		a.FirstName,
		a.LastName,
		domain.NormalizeEmail(a.Email),
		a.Country,
		a.EmailVerified,
		string(a.Status),
		fromTokens(a.Roles),
		fromTokens(a.Authorities),
		timeOrNil(a.CreatedAt),
		timeOrNil(a.LastActive),
	))
	if err != nil {
		return domain.Account{}, mapAccountWriteError("create account", err)
	}
	return created, nil
}

func (s *AccountsStore) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Account{}, domain.ErrNotFound
	}

	q := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	a, err := scanAccount(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("get account by id: %w", err)
	}
	return a, nil
}

func (s *AccountsStore) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	a, err := scanAccount(s.pool.QueryRow(ctx, q, domain.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("get account by email: %w", err)
	}
	return a, nil
}

func (s *AccountsStore) EmailExists(ctx context.Context, email string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`

	var exists bool
	if err := s.pool.QueryRow(ctx, q, domain.NormalizeEmail(email)).Scan(&exists); err != nil {
		return false, fmt.Errorf("email exists: %w", err)
	}
	return exists, nil
}

func (s *AccountsStore) UpdateAccount(ctx context.Context, id string, upd domain.AccountUpdate) (domain.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Account{}, domain.ErrNotFound
	}

	sets := make([]string, 0, 7)
	args := []any{id}
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}
	if upd.FirstName != nil {
		set("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		set("last_name", *upd.LastName)
	}
	if upd.Country != nil {
		set("country", *upd.Country)
	}
	if upd.Email != nil {
		set("email", domain.NormalizeEmail(*upd.Email))
	}
	if upd.EmailVerified != nil {
		set("email_verified", *upd.EmailVerified)
	}
	if upd.Status != nil {
		set("status", string(*upd.Status))
	}
	if len(sets) == 0 {
		return domain.Account{}, domain.NewValidationError(map[string]string{"update": "no fields to update"})
	}
	sets = append(sets, "updated_at = now()")

	q := `UPDATE accounts SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + accountColumns
	a, err := scanAccount(s.pool.QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, mapAccountWriteError("update account", err)
	}
	return a, nil
}

func (s *AccountsStore) DeleteAccount(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// TouchLastActive only ever moves last_active forward, so replays and
// out-of-order deliveries are harmless.
func (s *AccountsStore) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}

	const q = `
		UPDATE accounts
		SET last_active = GREATEST(last_active, $2)
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, q, id, at)
	if err != nil {
		return fmt.Errorf("touch last active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AccountsStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func mapAccountWriteError(op string, err error) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		switch pgerr.Code {
		case "23505":
			if pgerr.ConstraintName == "accounts_email_uq" {
				return domain.ErrEmailExists
			}
			return fmt.Errorf("%s: unique violation (%s): %w", op, pgerr.ConstraintName, err)
		case "23514":
			if pgerr.ConstraintName == "accounts_roles_nonempty_ck" {
				return domain.NewValidationError(map[string]string{"roles": "cannot remove the last role"})
			}
			return fmt.Errorf("%s: check violation (%s): %w", op, pgerr.ConstraintName, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func timeOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
