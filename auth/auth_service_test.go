package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/airdrop-session/auth"
	"github.com/jrsteele09/airdrop-session/authctx"
	"github.com/jrsteele09/airdrop-session/backend"
	apperrors "github.com/jrsteele09/airdrop-session/internal/errors"
	"github.com/jrsteele09/airdrop-session/navigation"
	"github.com/jrsteele09/airdrop-session/session"
	"github.com/jrsteele09/airdrop-session/storage"
	"github.com/jrsteele09/airdrop-session/storage/memstore"
	"github.com/stretchr/testify/require"
)

const (
	testUserEmail    = "user@example.com"
	testUserPassword = "password123"
)

// testFixture holds all test dependencies
type testFixture struct {
	mux      *http.ServeMux
	store    *memstore.MemStore
	manager  *authctx.Manager
	nav      *navigation.Recorder
	sessions *session.Store
	service  *auth.Service
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store := memstore.New()
	manager, err := authctx.New(store, nil)
	require.NoError(t, err)

	nav := navigation.NewRecorder()
	sessions := session.NewStore(store)
	service, err := auth.NewService(backend.New(srv.URL), manager, nav, auth.WithOAuthSessions(sessions))
	require.NoError(t, err)

	return &testFixture{
		mux:      mux,
		store:    store,
		manager:  manager,
		nav:      nav,
		sessions: sessions,
		service:  service,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *testFixture) handleLogin(t *testing.T, token string) {
	f.mux.HandleFunc(backend.PathLogin, func(w http.ResponseWriter, r *http.Request) {
		var creds backend.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Email != testUserEmail || creds.Password != testUserPassword {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
	})
}

func (f *testFixture) handleMe(profiles map[string]*backend.Profile) {
	f.mux.HandleFunc(backend.PathMe, func(w http.ResponseWriter, r *http.Request) {
		p, ok := profiles[r.Header.Get("Authorization")]
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
			return
		}
		writeJSON(w, http.StatusOK, p)
	})
}

func TestService_PasswordLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		f := setupTestFixture(t)
		f.handleLogin(t, "tok123")
		require.NoError(t, f.store.Set(ctx, storage.KeyAdminToken, "stale-admin"))

		require.NoError(t, f.service.PasswordLogin(ctx, testUserEmail, testUserPassword))

		snap := f.store.Snapshot()
		require.Equal(t, "tok123", snap[storage.KeyUserToken])
		require.Equal(t, "user", snap[storage.KeyAuthContext])
		require.NotContains(t, snap, storage.KeyAdminToken)
		require.Equal(t, navigation.RouteDashboard, f.nav.Last())
	})

	t.Run("wrong password surfaces server text", func(t *testing.T) {
		f := setupTestFixture(t)
		f.handleLogin(t, "tok123")

		err := f.service.PasswordLogin(ctx, testUserEmail, "nope")
		require.Error(t, err)
		require.Equal(t, "Incorrect email or password", backend.Detail(err))
		require.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
		require.Empty(t, f.nav.Targets())
		require.False(t, f.store.Has(storage.KeyUserToken))
	})

	t.Run("unverified email", func(t *testing.T) {
		f := setupTestFixture(t)
		f.mux.HandleFunc(backend.PathLogin, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Please verify your email before logging in"})
		})

		err := f.service.PasswordLogin(ctx, testUserEmail, testUserPassword)
		require.True(t, apperrors.Is(err, apperrors.ErrEmailNotVerified))
		require.Equal(t, navigation.RouteVerificationRequired, f.nav.Last())
	})

	t.Run("invalid form", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.service.PasswordLogin(ctx, "not-an-email", testUserPassword)
		require.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest))
		require.Contains(t, err.Error(), "invalid email format")
	})
}

func TestService_AdminLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("verified admin", func(t *testing.T) {
		f := setupTestFixture(t)
		f.handleLogin(t, "admin-tok")
		f.handleMe(map[string]*backend.Profile{
			"Bearer admin-tok": {Email: testUserEmail, EmailVerified: true, IsAdmin: true},
		})
		require.NoError(t, f.store.Set(ctx, storage.KeyUserToken, "old-user"))
		require.NoError(t, f.store.Set(ctx, storage.KeyLegacyToken, "legacy"))

		require.NoError(t, f.service.AdminLogin(ctx, testUserEmail, testUserPassword))

		snap := f.store.Snapshot()
		require.Equal(t, "admin-tok", snap[storage.KeyAdminToken])
		require.Equal(t, "admin", snap[storage.KeyAuthContext])
		require.NotContains(t, snap, storage.KeyUserToken)
		require.NotContains(t, snap, storage.KeyLegacyToken)
		require.Equal(t, navigation.RouteAdminDashboard, f.nav.Last())
	})

	t.Run("unverified admin", func(t *testing.T) {
		f := setupTestFixture(t)
		f.handleLogin(t, "admin-tok")
		f.handleMe(map[string]*backend.Profile{
			"Bearer admin-tok": {Email: testUserEmail, EmailVerified: false},
		})

		err := f.service.AdminLogin(ctx, testUserEmail, testUserPassword)
		require.True(t, apperrors.Is(err, apperrors.ErrEmailNotVerified))
		require.False(t, f.store.Has(storage.KeyAdminToken))
		require.Empty(t, f.nav.Targets())
	})
}

func TestService_RequireSession(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected token tears everything down", func(t *testing.T) {
		f := setupTestFixture(t)
		f.handleMe(map[string]*backend.Profile{})
		require.NoError(t, f.manager.Activate(ctx, authctx.RoleUser, "expired"))
		require.NoError(t, f.store.Set(ctx, storage.KeyAdminToken, "a"))
		require.NoError(t, f.store.Set(ctx, storage.KeyLegacyToken, "l"))

		_, err := f.service.RequireSession(ctx, authctx.RoleUser)
		require.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

		for _, key := range []string{storage.KeyUserToken, storage.KeyAdminToken, storage.KeyLegacyToken, storage.KeyAuthContext} {
			require.False(t, f.store.Has(key), key)
		}
		require.Equal(t, navigation.RouteUserLogin, f.nav.Last())
	})

	t.Run("no token", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.RequireSession(ctx, authctx.RoleAdmin)
		require.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
		require.Equal(t, navigation.RouteAdminLogin, f.nav.Last())
	})

	t.Run("valid user session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.handleMe(map[string]*backend.Profile{"Bearer good": {Email: testUserEmail}})
		require.NoError(t, f.store.Set(ctx, storage.KeyUserToken, "good"))

		p, err := f.service.RequireSession(ctx, authctx.RoleUser)
		require.NoError(t, err)
		require.Equal(t, testUserEmail, p.Email)
		require.Empty(t, f.nav.Targets())

		role, ok := f.manager.Context(ctx)
		require.True(t, ok)
		require.Equal(t, authctx.RoleUser, role)
	})

	t.Run("legacy token still opens the dashboard", func(t *testing.T) {
		f := setupTestFixture(t)
		f.handleMe(map[string]*backend.Profile{"Bearer legacy": {Email: testUserEmail}})
		require.NoError(t, f.store.Set(ctx, storage.KeyLegacyToken, "legacy"))

		_, err := f.service.RequireSession(ctx, authctx.RoleUser)
		require.NoError(t, err)
	})

	t.Run("server error keeps the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.mux.HandleFunc(backend.PathMe, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "db down"})
		})
		require.NoError(t, f.manager.Activate(ctx, authctx.RoleUser, "good"))

		_, err := f.service.RequireSession(ctx, authctx.RoleUser)
		require.Error(t, err)
		require.Equal(t, http.StatusInternalServerError, backend.StatusCode(err))
		require.True(t, f.store.Has(storage.KeyUserToken))
		require.Empty(t, f.nav.Targets())
	})
}

func TestService_Logout(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	require.NoError(t, f.manager.Activate(ctx, authctx.RoleUser, "tok"))
	require.NoError(t, f.sessions.Save(ctx, session.Password(authctx.RoleUser, "tok")))

	require.NoError(t, f.service.Logout(ctx, authctx.RoleUser))

	require.Empty(t, f.store.Snapshot())
	require.Equal(t, navigation.RouteUserLogin, f.nav.Last())
}

func TestService_Referral(t *testing.T) {
	ctx := context.Background()

	t.Run("submit", func(t *testing.T) {
		f := setupTestFixture(t)
		f.mux.HandleFunc(backend.PathSubmitReferral, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "FRIEND1", body["referral_code"])
			writeJSON(w, http.StatusOK, backend.ReferralResponse{Message: "ok", ReferralCode: "FRIEND1"})
		})
		require.NoError(t, f.manager.Activate(ctx, authctx.RoleUser, "tok"))

		resp, err := f.service.SubmitReferral(ctx, "  FRIEND1 ")
		require.NoError(t, err)
		require.Equal(t, "FRIEND1", resp.ReferralCode)
		require.Equal(t, navigation.RouteDashboard, f.nav.Last())
	})

	t.Run("no token", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.SubmitReferral(ctx, "FRIEND1")
		require.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
	})

	t.Run("rejected code", func(t *testing.T) {
		f := setupTestFixture(t)
		f.mux.HandleFunc(backend.PathSubmitReferral, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid referral code"})
		})
		require.NoError(t, f.manager.Activate(ctx, authctx.RoleUser, "tok"))

		_, err := f.service.SubmitReferral(ctx, "BOGUS")
		require.Equal(t, "Invalid referral code", backend.Detail(err))
		require.Empty(t, f.nav.Targets())
	})

	t.Run("skip", func(t *testing.T) {
		f := setupTestFixture(t)
		f.service.SkipReferral()
		require.Equal(t, navigation.RouteDashboard, f.nav.Last())
	})
}

func TestService_PasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("forgot then reset", func(t *testing.T) {
		f := setupTestFixture(t)
		f.mux.HandleFunc(backend.PathForgotPassword, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, backend.MessageResponse{Message: "sent"})
		})
		f.mux.HandleFunc(backend.PathResetPassword, func(w http.ResponseWriter, r *http.Request) {
			var req backend.ResetPasswordRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "123456", req.OTP)
			writeJSON(w, http.StatusOK, backend.MessageResponse{Message: "reset"})
		})

		_, err := f.service.ForgotPassword(ctx, testUserEmail)
		require.NoError(t, err)
		require.Equal(t, "/reset-password?email=user%40example.com", f.nav.Last())

		_, err = f.service.ResetPassword(ctx, testUserEmail, "123456", "newpassword", "newpassword")
		require.NoError(t, err)
		require.Equal(t, navigation.RouteUserLogin, f.nav.Last())
	})

	t.Run("mismatch", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.ResetPassword(ctx, testUserEmail, "123456", "newpassword", "different")
		require.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest))
		require.Contains(t, err.Error(), "passwords do not match")
	})

	t.Run("too short", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.ResetPassword(ctx, testUserEmail, "123456", "short", "short")
		require.Contains(t, err.Error(), "at least 8 characters")
	})
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.mux.HandleFunc(backend.PathRegister, func(w http.ResponseWriter, r *http.Request) {
		var req backend.RegisterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "REF", req.ReferralCode)
		writeJSON(w, http.StatusOK, backend.RegisterResponse{Message: "check your email", UserID: 7})
	})

	resp, err := f.service.Register(ctx, backend.RegisterRequest{
		Email:           testUserEmail,
		Username:        "user",
		Password:        testUserPassword,
		ConfirmPassword: testUserPassword,
		ReferralCode:    " REF ",
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), resp.UserID)
	require.Equal(t, "/registration-success?email=user%40example.com", f.nav.Last())
	require.Empty(t, f.store.Snapshot())
}
