package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"accountservice/internal/domain"
)

func (s *AccountsStore) ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT ` + accountColumns + `
		FROM accounts
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`

	rows, err := s.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	out := []domain.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	return out, nil
}

// Role and authority changes are single statements so two admins editing
// the same account cannot lose each other's writes.

func (s *AccountsStore) AddRole(ctx context.Context, id string, role domain.Role) (domain.Account, error) {
	const set = `roles = CASE WHEN $2 = ANY(roles) THEN roles ELSE array_append(roles, $2) END`
	return s.updateTokens(ctx, "add role", id, set, string(role))
}

func (s *AccountsStore) RemoveRole(ctx context.Context, id string, role domain.Role) (domain.Account, error) {
	const set = `roles = array_remove(roles, $2)`
	return s.updateTokens(ctx, "remove role", id, set, string(role))
}

func (s *AccountsStore) AddAuthority(ctx context.Context, id string, authority domain.Authority) (domain.Account, error) {
	const set = `authorities = CASE WHEN $2 = ANY(authorities) THEN authorities ELSE array_append(authorities, $2) END`
	return s.updateTokens(ctx, "add authority", id, set, string(authority))
}

func (s *AccountsStore) RemoveAuthority(ctx context.Context, id string, authority domain.Authority) (domain.Account, error) {
	const set = `authorities = array_remove(authorities, $2)`
	return s.updateTokens(ctx, "remove authority", id, set, string(authority))
}

func (s *AccountsStore) updateTokens(ctx context.Context, op, id, set, token string) (domain.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Account{}, domain.ErrNotFound
	}

	q := `UPDATE accounts SET ` + set + `, updated_at = now() WHERE id = $1 RETURNING ` + accountColumns
	a, err := scanAccount(s.pool.QueryRow(ctx, q, id, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, mapAccountWriteError(op, err)
	}
	return a, nil
}
