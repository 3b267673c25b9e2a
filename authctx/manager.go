// Package authctx tracks which role is acting and which bearer token belongs
// to it. The Manager is the only component that writes the role-scoped token
// keys; login flows go through Activate.
//
// Each role is an independent Unauthenticated/Authenticated slot. The active
// role pointer selects which slot Token, SetToken and ClearToken operate on.
package authctx

import (
	"context"
	"sync"

	"github.com/jrsteele09/airdrop-session/backend"
	"github.com/jrsteele09/airdrop-session/internal/errors"
	"github.com/jrsteele09/airdrop-session/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ProfileFetcher loads the identity behind a bearer token
type ProfileFetcher interface {
	Me(ctx context.Context, token string) (*backend.Profile, error)
}

type Manager struct {
	store    storage.Store
	profiles ProfileFetcher
	logger   zerolog.Logger

	mu      sync.Mutex
	current Role // cached active role, "" when unknown
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

func WithLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// New creates a Manager over store. profiles may be nil when UserData is not needed.
func New(store storage.Store, profiles ProfileFetcher, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[authctx New] store is required")
	}
	m := &Manager{
		store:    store,
		profiles: profiles,
		logger:   log.Logger,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// SetContext records role as the active role. Setting the same role again
// is a no-op apart from re-persisting the marker.
func (m *Manager) SetContext(ctx context.Context, role Role) error {
	if !role.Valid() {
		return errors.Wrapf(errors.ErrInvalidRole, "[authctx SetContext] %q", role)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = role
	if err := m.store.Set(ctx, storage.KeyAuthContext, string(role)); err != nil {
		return errors.Wrapf(err, "[authctx SetContext] persist %s", role)
	}
	return nil
}

// Context returns the active role, consulting storage when nothing is cached
func (m *Manager) Context(ctx context.Context) (Role, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contextLocked(ctx)
}

func (m *Manager) contextLocked(ctx context.Context) (Role, bool) {
	if m.current != "" {
		return m.current, true
	}
	v, err := m.store.Get(ctx, storage.KeyAuthContext)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn().Err(err).Msg("auth context unreadable, treating as unauthenticated")
		}
		return "", false
	}
	role, err := ParseRole(v)
	if err != nil {
		m.logger.Warn().Str("auth_context", v).Msg("ignoring unknown stored auth context")
		return "", false
	}
	m.current = role
	return role, true
}

// ClearContext forgets the active role in memory and in storage
func (m *Manager) ClearContext(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearContextLocked(ctx)
}

func (m *Manager) clearContextLocked(ctx context.Context) error {
	m.current = ""
	if err := m.store.Delete(ctx, storage.KeyAuthContext); err != nil {
		return errors.Wrapf(err, "[authctx ClearContext]")
	}
	return nil
}

// Token returns the token for the active role. Storage failures read as no token.
func (m *Manager) Token(ctx context.Context) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	role, ok := m.contextLocked(ctx)
	if !ok {
		return "", false
	}
	return m.tokenForLocked(ctx, role)
}

// TokenFor returns the token stored for role without changing the active role
func (m *Manager) TokenFor(ctx context.Context, role Role) (string, bool) {
	if !role.Valid() {
		return "", false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenForLocked(ctx, role)
}

func (m *Manager) tokenForLocked(ctx context.Context, role Role) (string, bool) {
	if tok, ok := m.read(ctx, role.TokenKey()); ok {
		return tok, true
	}
	// Tokens written before role separation live under the unscoped key
	if role == RoleUser {
		return m.read(ctx, storage.KeyLegacyToken)
	}
	return "", false
}

func (m *Manager) read(ctx context.Context, key string) (string, bool) {
	v, err := m.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn().Err(err).Str("key", key).Msg("token unreadable, treating as unauthenticated")
		}
		return "", false
	}
	if v == "" {
		return "", false
	}
	return v, true
}

// SetToken stores token under the active role. It fails with ErrNoActiveRole
// when SetContext has not been called.
func (m *Manager) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return errors.Wrapf(errors.ErrEmptyToken, "[authctx SetToken]")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	role, ok := m.contextLocked(ctx)
	if !ok {
		m.logger.Error().Msg("SetToken called without an active auth context")
		return errors.Wrapf(errors.ErrNoActiveRole, "[authctx SetToken]")
	}
	if err := m.store.Set(ctx, role.TokenKey(), token); err != nil {
		return errors.Wrapf(err, "[authctx SetToken] persist %s token", role)
	}
	return nil
}

// ClearToken removes the active role's token only. For the user role that
// includes the legacy unscoped token, which would otherwise still be read.
func (m *Manager) ClearToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	role, ok := m.contextLocked(ctx)
	if !ok {
		return nil
	}
	keys := []string{role.TokenKey()}
	if role == RoleUser {
		keys = append(keys, storage.KeyLegacyToken)
	}
	for _, key := range keys {
		if err := m.store.Delete(ctx, key); err != nil {
			return errors.Wrapf(err, "[authctx ClearToken] %s", key)
		}
	}
	return nil
}

// ClearAll is the full logout: both role tokens, the legacy token and the
// role marker. Every delete is attempted even if an earlier one fails.
func (m *Manager) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, key := range []string{storage.KeyUserToken, storage.KeyAdminToken, storage.KeyLegacyToken} {
		if err := m.store.Delete(ctx, key); err != nil {
			errs = append(errs, errors.Wrapf(err, "delete %s", key))
		}
	}
	if err := m.clearContextLocked(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return errors.Wrapf(err, "[authctx ClearAll]")
	}
	return nil
}

func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	_, ok := m.Token(ctx)
	return ok
}

// Activate makes role the active role with token and drops the other role's
// token so no stale credential from a previous login stays attached. An admin
// login also drops the legacy unscoped token.
func (m *Manager) Activate(ctx context.Context, role Role, token string) error {
	if !role.Valid() {
		return errors.Wrapf(errors.ErrInvalidRole, "[authctx Activate] %q", role)
	}
	if token == "" {
		return errors.Wrapf(errors.ErrEmptyToken, "[authctx Activate]")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(ctx, role.TokenKey(), token); err != nil {
		return errors.Wrapf(err, "[authctx Activate] persist %s token", role)
	}
	m.current = role
	if err := m.store.Set(ctx, storage.KeyAuthContext, string(role)); err != nil {
		return errors.Wrapf(err, "[authctx Activate] persist context")
	}

	stale := []string{role.Other().TokenKey()}
	if role == RoleAdmin {
		stale = append(stale, storage.KeyLegacyToken)
	}
	for _, key := range stale {
		if err := m.store.Delete(ctx, key); err != nil {
			return errors.Wrapf(err, "[authctx Activate] clear %s", key)
		}
	}

	m.logger.Debug().Str("role", string(role)).Msg("auth context activated")
	return nil
}

// UserData fetches the profile for the active token. Failures are logged and
// reported as false; callers that need the cause should call the backend
// themselves.
func (m *Manager) UserData(ctx context.Context) (*backend.Profile, bool) {
	token, ok := m.Token(ctx)
	if !ok || m.profiles == nil {
		return nil, false
	}
	p, err := m.profiles.Me(ctx, token)
	if err != nil {
		m.logger.Debug().Err(err).Msg("profile fetch failed")
		return nil, false
	}
	return p, true
}
