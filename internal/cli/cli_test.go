package cli_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/airdrop-session/identity/identitytest"
	"github.com/jrsteele09/airdrop-session/internal/cli"
	"github.com/jrsteele09/airdrop-session/session"
	"github.com/jrsteele09/airdrop-session/storage"
	"github.com/jrsteele09/airdrop-session/storage/memstore"
	"github.com/stretchr/testify/require"
)

const (
	testClientID = "airdrop-client"
	testAppURL   = "http://app.invalid"
)

// syncBuffer is a bytes.Buffer safe to read while a command writes to it
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testFixture struct {
	store   *memstore.MemStore
	api     *httptest.Server
	mux     *http.ServeMux
	stdout  *syncBuffer
	stderr  *syncBuffer
	stdin   string
	profile map[string]any
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		store:  memstore.New(),
		mux:    http.NewServeMux(),
		stdout: &syncBuffer{},
		stderr: &syncBuffer{},
		profile: map[string]any{
			"id":             1,
			"email":          "user@example.com",
			"referral_code":  "ABC123",
			"email_verified": true,
		},
	}
	f.mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Password != "secret123" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok123", "token_type": "bearer"})
	})
	f.mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok123" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
			return
		}
		writeJSON(w, http.StatusOK, f.profile)
	})
	f.api = httptest.NewServer(f.mux)
	t.Cleanup(f.api.Close)

	t.Setenv("ENV", "TEST")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("API_URL", f.api.URL)
	t.Setenv("APP_URL", testAppURL)
	return f
}

func (f *testFixture) run(t *testing.T, args ...string) error {
	t.Helper()
	return f.runContext(context.Background(), t, args...)
}

func (f *testFixture) runContext(ctx context.Context, t *testing.T, args ...string) error {
	t.Helper()
	cmd := cli.NewRootCommand(cli.WithStore(f.store))
	cmd.SetArgs(args)
	cmd.SetOut(f.stdout)
	cmd.SetErr(f.stderr)
	cmd.SetIn(strings.NewReader(f.stdin))
	return cmd.ExecuteContext(ctx)
}

func (f *testFixture) result(t *testing.T) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(f.stdout.String()), &out))
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestLogin(t *testing.T) {
	t.Run("password from flag", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.run(t, "login", "--email", "user@example.com", "--password", "secret123", "-o", "json"))

		out := f.result(t)
		require.Equal(t, "/dashboard", out["next"])
		require.Equal(t, "tok123", f.store.Snapshot()[storage.KeyUserToken])
		require.Equal(t, "user", f.store.Snapshot()[storage.KeyAuthContext])
	})

	t.Run("password from stdin", func(t *testing.T) {
		f := setupTestFixture(t)
		f.stdin = "secret123\n"
		require.NoError(t, f.run(t, "login", "--email", "user@example.com"))
		require.Contains(t, f.stdout.String(), "next: /dashboard")
		require.Contains(t, f.stderr.String(), "Password: ")
	})

	t.Run("wrong password", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.run(t, "login", "--email", "user@example.com", "--password", "nope-nope")
		require.Error(t, err)
		require.Contains(t, err.Error(), "Incorrect email or password")
		require.False(t, f.store.Has(storage.KeyUserToken))
	})

	t.Run("unknown output format", func(t *testing.T) {
		f := setupTestFixture(t)
		require.Error(t, f.run(t, "status", "-o", "xml"))
	})
}

func TestStatus(t *testing.T) {
	f := setupTestFixture(t)
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	userToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user@example.com",
		"exp": exp.Unix(),
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, storage.KeyUserToken, userToken))
	require.NoError(t, f.store.Set(ctx, storage.KeyAuthContext, "user"))

	require.NoError(t, f.run(t, "status", "-o", "json"))

	var view struct {
		Context       string `json:"context"`
		Authenticated bool   `json:"authenticated"`
		Roles         []struct {
			Role      string     `json:"role"`
			Stored    bool       `json:"stored"`
			Subject   string     `json:"subject"`
			ExpiresAt *time.Time `json:"expires_at"`
		} `json:"roles"`
	}
	require.NoError(t, json.Unmarshal([]byte(f.stdout.String()), &view))
	require.Equal(t, "user", view.Context)
	require.True(t, view.Authenticated)
	require.Len(t, view.Roles, 2)
	require.True(t, view.Roles[0].Stored)
	require.Equal(t, "user@example.com", view.Roles[0].Subject)
	require.NotNil(t, view.Roles[0].ExpiresAt)
	require.True(t, exp.Equal(*view.Roles[0].ExpiresAt))
	require.False(t, view.Roles[1].Stored)
}

func TestMe(t *testing.T) {
	t.Run("valid session", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.run(t, "login", "--email", "user@example.com", "--password", "secret123"))
		f.stdout = &syncBuffer{}

		require.NoError(t, f.run(t, "me"))
		require.Contains(t, f.stdout.String(), "email:          user@example.com")
		require.Contains(t, f.stdout.String(), "referral code:  ABC123")
	})

	t.Run("rejected token tears the session down", func(t *testing.T) {
		f := setupTestFixture(t)
		ctx := context.Background()
		require.NoError(t, f.store.Set(ctx, storage.KeyUserToken, "stale"))
		require.NoError(t, f.store.Set(ctx, storage.KeyAuthContext, "user"))

		require.Error(t, f.run(t, "me"))
		require.Empty(t, f.store.Snapshot())
	})
}

func TestLogout(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, storage.KeyAdminToken, "admin-tok"))
	require.NoError(t, f.store.Set(ctx, storage.KeyAuthContext, "admin"))
	require.NoError(t, f.store.Set(ctx, storage.KeyLegacyToken, "legacy"))

	require.NoError(t, f.run(t, "logout", "--role", "admin", "-o", "json"))
	require.Equal(t, "/admin", f.result(t)["next"])
	require.Empty(t, f.store.Snapshot())

	require.Error(t, f.run(t, "logout", "--role", "superuser"))
}

func TestReferralSkip(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.run(t, "referral", "skip", "-o", "yaml"))
	require.Contains(t, f.stdout.String(), "next: /dashboard")
}

func TestRefreshWithoutSession(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.run(t, "refresh"))
	require.Contains(t, f.stdout.String(), "no Google session stored")
}

func TestRefresh(t *testing.T) {
	setup := func(t *testing.T) (*testFixture, *identitytest.Provider) {
		f := setupTestFixture(t)
		p := identitytest.NewProvider(t, testClientID, "user@example.com")
		t.Setenv("GOOGLE_CLIENT_ID", testClientID)
		t.Setenv("GOOGLE_TOKEN_URL", p.Issuer()+identitytest.PathToken)

		require.NoError(t, session.NewStore(f.store).Save(context.Background(), session.Session{
			Role:         "user",
			Token:        "expired-access",
			IssuedVia:    session.IssuedViaOAuth,
			ExpiresAt:    time.Now().Add(-time.Minute).UnixMilli(),
			RefreshToken: "refresh-1",
		}))
		return f, p
	}

	t.Run("expired token is refreshed once", func(t *testing.T) {
		f, p := setup(t)
		require.NoError(t, f.run(t, "refresh"))
		require.Contains(t, f.stdout.String(), "access token refreshed")
		require.Equal(t, 1, p.Refreshes())

		sess, err := session.NewStore(f.store).Load(context.Background())
		require.NoError(t, err)
		require.NotEqual(t, "expired-access", sess.Token)
		require.Equal(t, "refresh-1", sess.RefreshToken)
		require.False(t, sess.Expired(time.Now()))

		f.stdout = &syncBuffer{}
		require.NoError(t, f.run(t, "refresh"))
		require.Contains(t, f.stdout.String(), "access token valid until")
		require.Equal(t, 1, p.Refreshes())
	})

	t.Run("failed refresh requires sign-in", func(t *testing.T) {
		f, p := setup(t)
		p.FailRefresh(true)
		err := f.run(t, "refresh")
		require.Error(t, err)
		require.Contains(t, err.Error(), "oauth login")

		sess, err := session.NewStore(f.store).Load(context.Background())
		require.NoError(t, err)
		require.True(t, sess.NeedsReauth())
	})
}

func TestOAuthLogin_NewAccount(t *testing.T) {
	f := setupTestFixture(t)
	p := identitytest.NewProvider(t, testClientID, "new@example.com")

	f.mux.HandleFunc("/api/auth/check-ban-status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"is_banned": false})
	})
	f.mux.HandleFunc("/api/auth/check-user", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "User not found"})
	})
	f.mux.HandleFunc("/api/auth/google-oauth", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "tok456", "is_new_user": true})
	})

	t.Setenv("GOOGLE_ISSUER", p.Issuer())
	t.Setenv("GOOGLE_CLIENT_ID", testClientID)
	t.Setenv("GOOGLE_CLIENT_SECRET", "test-secret")
	t.Setenv("GOOGLE_AUTH_URL", p.Issuer()+identitytest.PathAuthorize)
	t.Setenv("GOOGLE_TOKEN_URL", p.Issuer()+identitytest.PathToken)
	t.Setenv("OAUTH_CALLBACK_ADDR", "127.0.0.1:0")

	errc := make(chan error, 1)
	go func() {
		errc <- f.run(t, "oauth", "login", "--wait", "30s", "-o", "json")
	}()

	var authURL string
	require.Eventually(t, func() bool {
		scanner := bufio.NewScanner(strings.NewReader(f.stderr.String()))
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); strings.HasPrefix(line, p.Issuer()) {
				authURL = line
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	// the browser follows every redirect until it reaches the app
	browser := &http.Client{
		CheckRedirect: func(req *http.Request, _ []*http.Request) error {
			if req.URL.Host == "app.invalid" {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	resp, err := browser.Get(authURL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	landing, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/referral", landing.Path)
	require.Equal(t, "new@example.com", landing.Query().Get("email"))

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("oauth login did not return")
	}

	out := f.result(t)
	require.Equal(t, "/referral?email=new%40example.com", out["next"])

	snap := f.store.Snapshot()
	require.Equal(t, "tok456", snap[storage.KeyUserToken])
	require.Equal(t, "user", snap[storage.KeyAuthContext])
	require.NotContains(t, snap, storage.KeyAdminToken)
	require.Contains(t, snap, storage.KeyOAuthSession)
}

func TestOAuthLogin_NoBrowser(t *testing.T) {
	f := setupTestFixture(t)
	p := identitytest.NewProvider(t, testClientID, "new@example.com")
	t.Setenv("GOOGLE_ISSUER", p.Issuer())
	t.Setenv("GOOGLE_CLIENT_ID", testClientID)
	t.Setenv("OAUTH_CALLBACK_ADDR", "127.0.0.1:0")

	err := f.run(t, "oauth", "login", "--wait", "50ms")
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
