// Package identitytest runs an in-process OpenID provider for tests. It
// serves discovery, JWKS, an authorize endpoint that grants immediately and
// a token endpoint supporting the authorization code (with PKCE) and refresh
// token grants.
package identitytest

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	PathDiscovery = "/.well-known/openid-configuration"
	PathAuthorize = "/authorize"
	PathToken     = "/token"
	PathJWKS      = "/jwks"
)

// InvalidCode is never granted by the token endpoint
const InvalidCode = "bad-code"

type grant struct {
	nonce     string
	challenge string
}

// Provider is a fake OpenID provider bound to one client
type Provider struct {
	ClientID string
	Email    string
	Name     string

	srv  *httptest.Server
	keys *KeyPair

	mu            sync.Mutex
	grants        map[string]grant
	nonceOverride string
	failRefresh   bool
	refreshes     int
	expiresIn     int
}

// NewProvider starts a provider that signs in email for clientID
func NewProvider(t *testing.T, clientID, email string) *Provider {
	t.Helper()
	keys, err := GenerateRSAKeyPair(uuid.NewString(), 2048)
	require.NoError(t, err)

	p := &Provider{
		ClientID:  clientID,
		Email:     email,
		Name:      "Test User",
		keys:      keys,
		grants:    make(map[string]grant),
		expiresIn: 3600,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(PathDiscovery, p.discovery)
	mux.HandleFunc(PathJWKS, p.jwks)
	mux.HandleFunc(PathAuthorize, p.authorize)
	mux.HandleFunc(PathToken, p.token)
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

// Issuer is the provider's base URL and iss claim
func (p *Provider) Issuer() string {
	return p.srv.URL
}

func (p *Provider) PublicKey() any {
	return p.keys.PublicKey
}

// OAuth2Config returns a client configuration pointing at the provider
func (p *Provider) OAuth2Config(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: "test-secret",
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.srv.URL + PathAuthorize,
			TokenURL:  p.srv.URL + PathToken,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{"openid", "profile", "email"},
	}
}

// Grant approves the sign-in described by an authorization URL without a
// browser round trip. It returns the code and the state to send back.
func (p *Provider) Grant(t *testing.T, authURL string) (code, state string) {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, p.ClientID, q.Get("client_id"))
	return p.issueCode(q), q.Get("state")
}

// OverrideNonce makes every later ID token carry nonce instead of the requested one
func (p *Provider) OverrideNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nonceOverride = nonce
}

// FailRefresh makes the refresh token grant return invalid_grant
func (p *Provider) FailRefresh(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failRefresh = fail
}

// SetExpiresIn sets the lifetime of issued access tokens in seconds
func (p *Provider) SetExpiresIn(secs int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiresIn = secs
}

// Refreshes counts refresh token grants served
func (p *Provider) Refreshes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshes
}

func (p *Provider) issueCode(q url.Values) string {
	code := uuid.NewString()
	p.mu.Lock()
	p.grants[code] = grant{nonce: q.Get("nonce"), challenge: q.Get("code_challenge")}
	p.mu.Unlock()
	return code
}

func (p *Provider) discovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                p.srv.URL,
		"authorization_endpoint":                p.srv.URL + PathAuthorize,
		"token_endpoint":                        p.srv.URL + PathToken,
		"jwks_uri":                              p.srv.URL + PathJWKS,
		"id_token_signing_alg_values_supported": []string{RS256},
		"response_types_supported":              []string{"code"},
	})
}

func (p *Provider) jwks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, JWKS{Keys: []JWK{p.keys.ToJWK()}})
}

func (p *Provider) authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	redirectURI, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || q.Get("client_id") != p.ClientID || redirectURI.String() == "" {
		http.Error(w, "invalid authorization request", http.StatusBadRequest)
		return
	}
	back := redirectURI.Query()
	back.Set("code", p.issueCode(q))
	back.Set("state", q.Get("state"))
	redirectURI.RawQuery = back.Encode()
	http.Redirect(w, r, redirectURI.String(), http.StatusFound)
}

func (p *Provider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		tokenError(w, "invalid_request")
		return
	}
	if r.PostForm.Get("client_id") != p.ClientID {
		tokenError(w, "invalid_client")
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		p.exchangeCode(w, r.PostForm)
	case "refresh_token":
		p.exchangeRefresh(w, r.PostForm)
	default:
		tokenError(w, "unsupported_grant_type")
	}
}

func (p *Provider) exchangeCode(w http.ResponseWriter, form url.Values) {
	p.mu.Lock()
	g, ok := p.grants[form.Get("code")]
	delete(p.grants, form.Get("code"))
	nonce := g.nonce
	if p.nonceOverride != "" {
		nonce = p.nonceOverride
	}
	expiresIn := p.expiresIn
	p.mu.Unlock()

	if !ok || form.Get("code") == InvalidCode {
		tokenError(w, "invalid_grant")
		return
	}
	if g.challenge != "" && s256(form.Get("code_verifier")) != g.challenge {
		tokenError(w, "invalid_grant")
		return
	}

	idToken, err := p.idToken(nonce)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  "access-" + uuid.NewString(),
		"token_type":    "Bearer",
		"expires_in":    expiresIn,
		"refresh_token": "refresh-" + uuid.NewString(),
		"id_token":      idToken,
	})
}

func (p *Provider) exchangeRefresh(w http.ResponseWriter, form url.Values) {
	p.mu.Lock()
	p.refreshes++
	fail := p.failRefresh
	expiresIn := p.expiresIn
	p.mu.Unlock()

	if fail || form.Get("refresh_token") == "" {
		tokenError(w, "invalid_grant")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": "access-" + uuid.NewString(),
		"token_type":   "Bearer",
		"expires_in":   expiresIn,
	})
}

// idToken creates an OpenID Connect ID token for the provider's user
func (p *Provider) idToken(nonce string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   p.srv.URL,
		"sub":   "provider-" + p.Email,
		"aud":   p.ClientID,
		"email": p.Email,
		"name":  p.Name,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"jti":   uuid.NewString(),
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	return p.keys.Sign(claims)
}

func s256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func tokenError(w http.ResponseWriter, code string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": code})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
