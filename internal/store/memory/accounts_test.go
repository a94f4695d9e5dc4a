package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountservice/internal/domain"
)

func newAccount(id, email string) domain.Account {
	return domain.Account{
		ID:        id,
		FirstName: "John",
		LastName:  "Doe",
		Email:     email,
		Country:   "UK",
		Status:    domain.StatusPending,
		Roles:     []domain.Role{domain.DefaultRole},
	}
}

func TestCreateAccountRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := NewAccountsStore()

	created, err := s.CreateAccount(ctx, newAccount("a-1", "John@Example.com"))
	require.NoError(t, err)
	assert.Equal(t, "john@example.com", created.Email)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = s.CreateAccount(ctx, newAccount("a-2", "john@example.com "))
	assert.ErrorIs(t, err, domain.ErrEmailExists)
	assert.Equal(t, 1, s.Len())
}

func TestCreateAccountRequiresRole(t *testing.T) {
	a := newAccount("a-1", "john@example.com")
	a.Roles = nil

	_, err := NewAccountsStore().CreateAccount(context.Background(), a)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestConcurrentCreatesWithSameEmailLeaveOneAccount(t *testing.T) {
	ctx := context.Background()
	s := NewAccountsStore()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		conflicts int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateAccount(ctx, newAccount(string(rune('a'+i)), "race@example.com"))
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrEmailExists)
				mu.Lock()
				conflicts++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 19, conflicts)
}

func TestUpdateAccountEmailIsUniqueAndReindexed(t *testing.T) {
	ctx := context.Background()
	s := NewAccountsStore()
	_, err := s.CreateAccount(ctx, newAccount("a-1", "one@example.com"))
	require.NoError(t, err)
	_, err = s.CreateAccount(ctx, newAccount("a-2", "two@example.com"))
	require.NoError(t, err)

	taken := "two@example.com"
	_, err = s.UpdateAccount(ctx, "a-1", domain.AccountUpdate{Email: &taken})
	assert.ErrorIs(t, err, domain.ErrEmailExists)

	fresh := "three@example.com"
	updated, err := s.UpdateAccount(ctx, "a-1", domain.AccountUpdate{Email: &fresh})
	require.NoError(t, err)
	assert.Equal(t, fresh, updated.Email)

	exists, err := s.EmailExists(ctx, "one@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := s.GetAccountByEmail(ctx, "THREE@example.com")
	require.NoError(t, err)
	assert.Equal(t, "a-1", got.ID)
}

func TestUpdateAccountNotFound(t *testing.T) {
	verified := true
	_, err := NewAccountsStore().UpdateAccount(context.Background(), "missing", domain.AccountUpdate{EmailVerified: &verified})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	s := NewAccountsStore()
	_, err := s.CreateAccount(ctx, newAccount("a-1", "john@example.com"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteAccount(ctx, "a-1"))
	assert.ErrorIs(t, s.DeleteAccount(ctx, "a-1"), domain.ErrNotFound)

	_, err = s.GetAccountByID(ctx, "a-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// the email is free again
	_, err = s.CreateAccount(ctx, newAccount("a-2", "john@example.com"))
	assert.NoError(t, err)
}

func TestTouchLastActiveNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	s := NewAccountsStore()
	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return base }
	_, err := s.CreateAccount(ctx, newAccount("a-1", "john@example.com"))
	require.NoError(t, err)

	require.NoError(t, s.TouchLastActive(ctx, "a-1", base.Add(time.Hour)))
	require.NoError(t, s.TouchLastActive(ctx, "a-1", base.Add(time.Minute)))

	got, err := s.GetAccountByID(ctx, "a-1")
	require.NoError(t, err)
	assert.True(t, got.LastActive.Equal(base.Add(time.Hour)), "last active: %s", got.LastActive)

	assert.ErrorIs(t, s.TouchLastActive(ctx, "missing", base), domain.ErrNotFound)
}

func TestRoleAndAuthoritySetOperations(t *testing.T) {
	ctx := context.Background()
	s := NewAccountsStore()
	_, err := s.CreateAccount(ctx, newAccount("a-1", "john@example.com"))
	require.NoError(t, err)

	a, err := s.AddRole(ctx, "a-1", domain.RoleAdmin)
	require.NoError(t, err)
	a, err = s.AddRole(ctx, "a-1", domain.RoleAdmin)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.Role{domain.RoleUser, domain.RoleAdmin}, a.Roles)

	a, err = s.RemoveRole(ctx, "a-1", domain.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, []domain.Role{domain.RoleAdmin}, a.Roles)

	_, err = s.RemoveRole(ctx, "a-1", domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrValidation)

	a, err = s.AddAuthority(ctx, "a-1", domain.AuthorityReportsView)
	require.NoError(t, err)
	assert.Equal(t, []domain.Authority{domain.AuthorityReportsView}, a.Authorities)

	a, err = s.RemoveAuthority(ctx, "a-1", domain.AuthorityUserManage)
	require.NoError(t, err)
	assert.Len(t, a.Authorities, 1)
}

func TestListAccountsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewAccountsStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a-1", "a-2", "a-3"} {
		a := newAccount(id, id+"@example.com")
		a.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		_, err := s.CreateAccount(ctx, a)
		require.NoError(t, err)
	}

	got, err := s.ListAccounts(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a-3", got[0].ID)
	assert.Equal(t, "a-2", got[1].ID)

	got, err = s.ListAccounts(ctx, 2, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
