package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountservice/internal/domain"
	"accountservice/internal/store/memory"
)

func newAdminFixture(t *testing.T) (*AdminService, *memory.AccountsStore, string) {
	t.Helper()
	store := memory.NewAccountsStore()
	a, err := store.CreateAccount(context.Background(), domain.Account{
		ID:        "acc-1",
		FirstName: "John",
		LastName:  "Doe",
		Email:     "john@example.com",
		Status:    domain.StatusPending,
		Roles:     []domain.Role{domain.RoleUser},
	})
	require.NoError(t, err)
	return &AdminService{Accounts: store}, store, a.ID
}

func TestAdminGrantAndRevokeRole(t *testing.T) {
	svc, store, id := newAdminFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.GrantRole(ctx, id, "admin"))
	require.NoError(t, svc.GrantRole(ctx, id, "ADMIN"))
	a, err := store.GetAccountByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []domain.Role{domain.RoleUser, domain.RoleAdmin}, a.Roles)

	require.NoError(t, svc.RevokeRole(ctx, id, "ADMIN"))
	require.NoError(t, svc.RevokeRole(ctx, id, "ADMIN"))
	a, err = store.GetAccountByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []domain.Role{domain.RoleUser}, a.Roles)
}

func TestAdminRevokeLastRoleIsRejected(t *testing.T) {
	svc, store, id := newAdminFixture(t)

	err := svc.RevokeRole(context.Background(), id, "USER")
	require.ErrorIs(t, err, domain.ErrValidation)

	a, err := store.GetAccountByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []domain.Role{domain.RoleUser}, a.Roles)
}

func TestAdminAuthorities(t *testing.T) {
	svc, store, id := newAdminFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.GrantAuthority(ctx, id, "content_create"))
	require.NoError(t, svc.GrantAuthority(ctx, id, "CONTENT_CREATE"))
	require.NoError(t, svc.GrantAuthority(ctx, id, "REPORTS_VIEW"))
	a, err := store.GetAccountByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []domain.Authority{domain.AuthorityContentCreate, domain.AuthorityReportsView}, a.Authorities)

	require.NoError(t, svc.RevokeAuthority(ctx, id, "CONTENT_CREATE"))
	require.NoError(t, svc.RevokeAuthority(ctx, id, "CONTENT_CREATE"))
	require.NoError(t, svc.RevokeAuthority(ctx, id, "REPORTS_VIEW"))
	a, err = store.GetAccountByID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, a.Authorities)
}

func TestAdminSetStatus(t *testing.T) {
	svc, store, id := newAdminFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SetStatus(ctx, id, "suspended"))
	a, err := store.GetAccountByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuspended, a.Status)

	assert.ErrorIs(t, svc.SetStatus(ctx, id, "BANISHED"), domain.ErrValidation)
	assert.ErrorIs(t, svc.SetStatus(ctx, "missing", "ACTIVE"), domain.ErrNotFound)
}

func TestAdminRejectsUnknownTokens(t *testing.T) {
	svc, _, id := newAdminFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.GrantRole(ctx, id, "OWNER"), domain.ErrValidation)
	assert.ErrorIs(t, svc.RevokeRole(ctx, id, ""), domain.ErrValidation)
	assert.ErrorIs(t, svc.GrantAuthority(ctx, id, "EVERYTHING"), domain.ErrValidation)
	assert.ErrorIs(t, svc.RevokeAuthority(ctx, id, "nope"), domain.ErrValidation)
	assert.ErrorIs(t, svc.GrantRole(ctx, "missing", "ADMIN"), domain.ErrNotFound)
}

func TestAdminListAccounts(t *testing.T) {
	svc, store, _ := newAdminFixture(t)
	ctx := context.Background()
	_, err := store.CreateAccount(ctx, domain.Account{
		ID:        "acc-2",
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@example.com",
		Status:    domain.StatusActive,
		Roles:     []domain.Role{domain.RoleUser, domain.RoleModerator},
		CreatedAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	got, err := svc.ListAccounts(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "acc-2", got[0].ID)
	assert.Equal(t, []domain.Role{domain.RoleUser, domain.RoleModerator}, got[0].Roles)
	assert.Equal(t, "acc-1", got[1].ID)
}
