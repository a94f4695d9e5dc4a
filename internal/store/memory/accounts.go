// Package memory keeps accounts in process memory. It backs the server when
// no database is configured and is used by tests that need real store
// semantics.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"accountservice/internal/domain"
)

type AccountsStore struct {
	mu      sync.RWMutex
	byID    map[string]domain.Account
	byEmail map[string]string
	now     func() time.Time
}

func NewAccountsStore() *AccountsStore {
	return &AccountsStore{
		byID:    make(map[string]domain.Account),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (s *AccountsStore) CreateAccount(ctx context.Context, a domain.Account) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}
	a.Email = domain.NormalizeEmail(a.Email)
	a.Roles = domain.DedupeTokens(a.Roles)
	a.Authorities = domain.DedupeTokens(a.Authorities)
	if len(a.Roles) == 0 {
		return domain.Account{}, domain.NewValidationError(map[string]string{"roles": "must not be empty"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[a.ID]; ok {
		return domain.Account{}, domain.NewValidationError(map[string]string{"id": "already exists"})
	}
	if _, ok := s.byEmail[a.Email]; ok {
		return domain.Account{}, domain.ErrEmailExists
	}

	now := s.now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.LastActive.IsZero() {
		a.LastActive = now
	}
	a.UpdatedAt = now

	s.byID[a.ID] = a
	s.byEmail[a.Email] = a.ID
	return clone(a), nil
}

func (s *AccountsStore) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return clone(a), nil
}

func (s *AccountsStore) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *AccountsStore) EmailExists(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byEmail[domain.NormalizeEmail(email)]
	return ok, nil
}

func (s *AccountsStore) UpdateAccount(ctx context.Context, id string, upd domain.AccountUpdate) (domain.Account, error) {
	return s.mutate(ctx, id, func(a domain.Account) (domain.Account, error) {
		if upd.Empty() {
			return a, domain.NewValidationError(map[string]string{"update": "no fields to update"})
		}
		return upd.Apply(a), nil
	})
}

func (s *AccountsStore) DeleteAccount(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(s.byID, id)
	delete(s.byEmail, a.Email)
	return nil
}

func (s *AccountsStore) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if at.After(a.LastActive) {
		a.LastActive = at.UTC()
		s.byID[id] = a
	}
	return nil
}

func (s *AccountsStore) AddRole(ctx context.Context, id string, role domain.Role) (domain.Account, error) {
	return s.mutate(ctx, id, func(a domain.Account) (domain.Account, error) {
		a.Roles, _ = domain.AddToken(a.Roles, role)
		return a, nil
	})
}

func (s *AccountsStore) RemoveRole(ctx context.Context, id string, role domain.Role) (domain.Account, error) {
	return s.mutate(ctx, id, func(a domain.Account) (domain.Account, error) {
		roles, changed := domain.RemoveToken(a.Roles, role)
		if changed && len(roles) == 0 {
			return a, domain.NewValidationError(map[string]string{"roles": "cannot remove the last role"})
		}
		a.Roles = roles
		return a, nil
	})
}

func (s *AccountsStore) AddAuthority(ctx context.Context, id string, authority domain.Authority) (domain.Account, error) {
	return s.mutate(ctx, id, func(a domain.Account) (domain.Account, error) {
		a.Authorities, _ = domain.AddToken(a.Authorities, authority)
		return a, nil
	})
}

func (s *AccountsStore) RemoveAuthority(ctx context.Context, id string, authority domain.Authority) (domain.Account, error) {
	return s.mutate(ctx, id, func(a domain.Account) (domain.Account, error) {
		a.Authorities, _ = domain.RemoveToken(a.Authorities, authority)
		return a, nil
	})
}

func (s *AccountsStore) ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	all := make([]domain.Account, 0, len(s.byID))
	for _, a := range s.byID {
		all = append(all, clone(a))
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return []domain.Account{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *AccountsStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len reports the number of stored accounts.
func (s *AccountsStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *AccountsStore) mutate(ctx context.Context, id string, fn func(domain.Account) (domain.Account, error)) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	next, err := fn(clone(cur))
	if err != nil {
		return domain.Account{}, err
	}
	if next.Email != cur.Email {
		if owner, taken := s.byEmail[next.Email]; taken && owner != id {
			return domain.Account{}, domain.ErrEmailExists
		}
		delete(s.byEmail, cur.Email)
		s.byEmail[next.Email] = id
	}
	next.UpdatedAt = s.now().UTC()
	s.byID[id] = next
	return clone(next), nil
}

func clone(a domain.Account) domain.Account {
	a.Roles = append([]domain.Role(nil), a.Roles...)
	a.Authorities = append([]domain.Authority{}, a.Authorities...)
	return a
}
