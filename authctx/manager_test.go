package authctx_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/airdrop-session/authctx"
	"github.com/jrsteele09/airdrop-session/backend"
	"github.com/jrsteele09/airdrop-session/internal/errors"
	"github.com/jrsteele09/airdrop-session/storage"
	"github.com/jrsteele09/airdrop-session/storage/memstore"
	"github.com/stretchr/testify/require"
)

type fakeProfiles struct {
	calls  int
	tokens map[string]*backend.Profile
}

func (f *fakeProfiles) Me(_ context.Context, token string) (*backend.Profile, error) {
	f.calls++
	p, ok := f.tokens[token]
	if !ok {
		return nil, &backend.APIError{Endpoint: backend.PathMe, StatusCode: 401, Detail: "Could not validate credentials"}
	}
	return p, nil
}

func newManager(t *testing.T) (*authctx.Manager, *memstore.MemStore) {
	t.Helper()
	store := memstore.New()
	m, err := authctx.New(store, nil)
	require.NoError(t, err)
	return m, store
}

func TestManager_RoleIsolation(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	require.NoError(t, m.SetContext(ctx, authctx.RoleAdmin))
	require.NoError(t, m.SetToken(ctx, "A"))
	require.NoError(t, m.SetContext(ctx, authctx.RoleUser))
	require.NoError(t, m.SetToken(ctx, "B"))

	require.NoError(t, m.SetContext(ctx, authctx.RoleAdmin))
	tok, ok := m.Token(ctx)
	require.True(t, ok)
	require.Equal(t, "A", tok)

	require.NoError(t, m.SetContext(ctx, authctx.RoleUser))
	tok, ok = m.Token(ctx)
	require.True(t, ok)
	require.Equal(t, "B", tok)
}

func TestManager_ClearAll(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)

	require.NoError(t, store.Set(ctx, storage.KeyLegacyToken, "legacy"))
	require.NoError(t, m.SetContext(ctx, authctx.RoleAdmin))
	require.NoError(t, m.SetToken(ctx, "A"))
	require.NoError(t, m.SetContext(ctx, authctx.RoleUser))
	require.NoError(t, m.SetToken(ctx, "B"))

	require.NoError(t, m.ClearAll(ctx))

	_, ok := m.Token(ctx)
	require.False(t, ok)
	for _, role := range authctx.Roles {
		require.NoError(t, m.SetContext(ctx, role))
		_, ok := m.Token(ctx)
		require.False(t, ok, "role %s still has a token", role)
	}
	require.False(t, store.Has(storage.KeyLegacyToken))
	require.False(t, store.Has(storage.KeyUserToken))
	require.False(t, store.Has(storage.KeyAdminToken))
}

func TestManager_IdempotentSetContext(t *testing.T) {
	ctx := context.Background()

	t.Run("no token before", func(t *testing.T) {
		m, _ := newManager(t)
		require.NoError(t, m.SetContext(ctx, authctx.RoleUser))
		require.NoError(t, m.SetContext(ctx, authctx.RoleUser))
		_, ok := m.Token(ctx)
		require.False(t, ok)
	})

	t.Run("token before", func(t *testing.T) {
		m, _ := newManager(t)
		require.NoError(t, m.SetContext(ctx, authctx.RoleUser))
		require.NoError(t, m.SetToken(ctx, "B"))
		require.NoError(t, m.SetContext(ctx, authctx.RoleUser))
		require.NoError(t, m.SetContext(ctx, authctx.RoleUser))
		tok, ok := m.Token(ctx)
		require.True(t, ok)
		require.Equal(t, "B", tok)
	})
}

func TestManager_SetTokenWithoutContext(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)

	err := m.SetToken(ctx, "orphan")
	require.True(t, errors.Is(err, errors.ErrNoActiveRole))
	require.Empty(t, store.Snapshot())

	require.NoError(t, m.SetContext(ctx, authctx.RoleUser))
	require.True(t, errors.Is(m.SetToken(ctx, ""), errors.ErrEmptyToken))
}

func TestManager_ContextFromStorage(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.Set(ctx, storage.KeyAuthContext, "admin"))
	require.NoError(t, store.Set(ctx, storage.KeyAdminToken, "A"))

	m, err := authctx.New(store, nil)
	require.NoError(t, err)

	role, ok := m.Context(ctx)
	require.True(t, ok)
	require.Equal(t, authctx.RoleAdmin, role)
	require.True(t, m.IsAuthenticated(ctx))

	t.Run("unknown stored value", func(t *testing.T) {
		s := memstore.New()
		require.NoError(t, s.Set(ctx, storage.KeyAuthContext, "superuser"))
		m, err := authctx.New(s, nil)
		require.NoError(t, err)
		_, ok := m.Context(ctx)
		require.False(t, ok)
	})
}

func TestManager_ClearContextAndToken(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)

	require.NoError(t, m.SetContext(ctx, authctx.RoleAdmin))
	require.NoError(t, m.SetToken(ctx, "A"))
	require.NoError(t, m.SetContext(ctx, authctx.RoleUser))
	require.NoError(t, m.SetToken(ctx, "B"))

	require.NoError(t, m.ClearToken(ctx))
	require.False(t, m.IsAuthenticated(ctx))
	require.True(t, store.Has(storage.KeyAdminToken))

	require.NoError(t, m.ClearContext(ctx))
	_, ok := m.Context(ctx)
	require.False(t, ok)
	require.False(t, store.Has(storage.KeyAuthContext))
	require.NoError(t, m.ClearToken(ctx))

	tok, ok := m.TokenFor(ctx, authctx.RoleAdmin)
	require.True(t, ok)
	require.Equal(t, "A", tok)

	t.Run("user clear removes the legacy token", func(t *testing.T) {
		m, store := newManager(t)
		require.NoError(t, store.Set(ctx, storage.KeyLegacyToken, "legacy"))
		require.NoError(t, store.Set(ctx, storage.KeyAdminToken, "A"))
		require.NoError(t, m.SetContext(ctx, authctx.RoleUser))
		require.NoError(t, m.SetToken(ctx, "B"))

		require.NoError(t, m.ClearToken(ctx))
		tok, ok := m.Token(ctx)
		require.False(t, ok, "still authenticated with %q", tok)
		require.False(t, store.Has(storage.KeyLegacyToken))
		require.True(t, store.Has(storage.KeyAdminToken))
	})

	t.Run("admin clear keeps the legacy token", func(t *testing.T) {
		m, store := newManager(t)
		require.NoError(t, store.Set(ctx, storage.KeyLegacyToken, "legacy"))
		require.NoError(t, m.SetContext(ctx, authctx.RoleAdmin))
		require.NoError(t, m.SetToken(ctx, "A"))

		require.NoError(t, m.ClearToken(ctx))
		require.False(t, m.IsAuthenticated(ctx))
		require.True(t, store.Has(storage.KeyLegacyToken))
	})
}

func TestManager_LegacyTokenFallback(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)
	require.NoError(t, store.Set(ctx, storage.KeyLegacyToken, "legacy"))

	require.NoError(t, m.SetContext(ctx, authctx.RoleUser))
	tok, ok := m.Token(ctx)
	require.True(t, ok)
	require.Equal(t, "legacy", tok)

	require.NoError(t, m.SetContext(ctx, authctx.RoleAdmin))
	_, ok = m.Token(ctx)
	require.False(t, ok)
}

func TestManager_Activate(t *testing.T) {
	ctx := context.Background()

	t.Run("user login clears admin token", func(t *testing.T) {
		m, store := newManager(t)
		require.NoError(t, store.Set(ctx, storage.KeyAdminToken, "old-admin"))

		require.NoError(t, m.Activate(ctx, authctx.RoleUser, "tok123"))

		snap := store.Snapshot()
		require.Equal(t, "tok123", snap[storage.KeyUserToken])
		require.Equal(t, "user", snap[storage.KeyAuthContext])
		require.NotContains(t, snap, storage.KeyAdminToken)
	})

	t.Run("admin login clears user and legacy tokens", func(t *testing.T) {
		m, store := newManager(t)
		require.NoError(t, store.Set(ctx, storage.KeyUserToken, "old-user"))
		require.NoError(t, store.Set(ctx, storage.KeyLegacyToken, "legacy"))

		require.NoError(t, m.Activate(ctx, authctx.RoleAdmin, "adm"))

		snap := store.Snapshot()
		require.Equal(t, map[string]string{
			storage.KeyAdminToken:  "adm",
			storage.KeyAuthContext: "admin",
		}, snap)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		m, _ := newManager(t)
		require.True(t, errors.Is(m.Activate(ctx, authctx.Role("root"), "x"), errors.ErrInvalidRole))
		require.True(t, errors.Is(m.Activate(ctx, authctx.RoleUser, ""), errors.ErrEmptyToken))
	})
}

func TestManager_FailClosed(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)
	require.NoError(t, m.Activate(ctx, authctx.RoleUser, "tok"))

	store.SetFailing(true)
	defer store.SetFailing(false)

	// The cached role survives but the token read fails closed
	_, ok := m.Token(ctx)
	require.False(t, ok)
	require.False(t, m.IsAuthenticated(ctx))
	require.Error(t, m.SetToken(ctx, "new"))
	require.Error(t, m.ClearAll(ctx))

	fresh, err := authctx.New(store, nil)
	require.NoError(t, err)
	_, ok = fresh.Context(ctx)
	require.False(t, ok)
}

func TestManager_UserData(t *testing.T) {
	ctx := context.Background()
	profiles := &fakeProfiles{tokens: map[string]*backend.Profile{
		"good": {ID: 1, Email: "user@example.com", EmailVerified: true},
	}}
	m, err := authctx.New(memstore.New(), profiles)
	require.NoError(t, err)

	_, ok := m.UserData(ctx)
	require.False(t, ok)
	require.Equal(t, 0, profiles.calls)

	require.NoError(t, m.Activate(ctx, authctx.RoleUser, "good"))
	p, ok := m.UserData(ctx)
	require.True(t, ok)
	require.Equal(t, "user@example.com", p.Email)

	require.NoError(t, m.Activate(ctx, authctx.RoleUser, "bad"))
	_, ok = m.UserData(ctx)
	require.False(t, ok)
	require.Equal(t, 2, profiles.calls)
}

func TestParseRole(t *testing.T) {
	r, err := authctx.ParseRole("admin")
	require.NoError(t, err)
	require.Equal(t, authctx.RoleAdmin, r)
	require.Equal(t, authctx.RoleUser, r.Other())

	_, err = authctx.ParseRole("")
	require.True(t, errors.Is(err, errors.ErrInvalidRole))

	_, err = authctx.New(nil, nil)
	require.Error(t, err)
}
