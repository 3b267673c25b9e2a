// Package server is the loopback HTTP surface the browser returns to after a
// Google sign-in. It exchanges the code, verifies the ID token, applies the
// sign-in policy and runs the account resolver once.
package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/airdrop-session/auth"
	"github.com/jrsteele09/airdrop-session/backend"
	"github.com/jrsteele09/airdrop-session/internal/config"
	"github.com/jrsteele09/airdrop-session/oauthflow"
	"github.com/jrsteele09/airdrop-session/server/authflowrepo"
	"github.com/jrsteele09/airdrop-session/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// IDTokenVerifier turns a provider ID token into an identity
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken, nonce string) (backend.Identity, error)
}

// SignInGate decides whether an identity may sign in at all
type SignInGate interface {
	Allow(ctx context.Context, email string) bool
}

// AccountResolver routes a completed sign-in
type AccountResolver interface {
	Resolve(ctx context.Context, id backend.Identity, query url.Values) oauthflow.Outcome
}

// Deps holds the collaborators of the callback server
type Deps struct {
	OAuth2   *oauth2.Config    // provider client; RedirectURL must point at RouteCallback
	Verifier IDTokenVerifier   // ID token verification
	Policy   SignInGate        // ban gate
	Resolver AccountResolver   // new or existing account routing
	Sessions *session.Store    // persisted OAuth session
	Flows    authflowrepo.Repo // state, nonce and PKCE verifier per redirect
}

// Result is what the browser was finally sent to
type Result struct {
	Target   string // app route, e.g. /dashboard
	Identity backend.Identity
	Err      error
}

type Server struct {
	env     string
	appURL  string
	baseURL string
	router  chi.Router
	routes  []string
	deps    Deps
	nowTime func() time.Time
	expiry  time.Duration
	logger  zerolog.Logger

	mu       sync.Mutex
	identity *backend.Identity
	result   Result
	done     chan struct{}
	doneOnce sync.Once
}

// ServerOption defines a function type to modify the Server instance.
type ServerOption func(*Server)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServerOption {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

// WithDefaultExpiry applies when the provider's token carries no expiry
func WithDefaultExpiry(d time.Duration) ServerOption {
	return func(s *Server) {
		s.expiry = d
	}
}

func WithLogger(l zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// New builds the callback server. baseURL is where the server itself is
// reachable, e.g. http://127.0.0.1:8765.
func New(c config.EnvConfig, baseURL string, deps Deps, options ...ServerOption) (*Server, error) {
	switch {
	case deps.OAuth2 == nil:
		return nil, fmt.Errorf("[Server New] oauth2 config is required")
	case deps.Verifier == nil:
		return nil, fmt.Errorf("[Server New] ID token verifier is required")
	case deps.Policy == nil:
		return nil, fmt.Errorf("[Server New] sign-in policy is required")
	case deps.Resolver == nil:
		return nil, fmt.Errorf("[Server New] resolver is required")
	case deps.Sessions == nil:
		return nil, fmt.Errorf("[Server New] session store is required")
	}
	if err := auth.ValidateRedirectURI(deps.OAuth2.RedirectURL); err != nil {
		return nil, fmt.Errorf("[Server New] %w", err)
	}
	if callback := strings.TrimSuffix(baseURL, "/") + RouteCallback; deps.OAuth2.RedirectURL != callback {
		return nil, fmt.Errorf("[Server New] redirect_uri %q does not point at %s", deps.OAuth2.RedirectURL, callback)
	}
	if deps.Flows == nil {
		deps.Flows = authflowrepo.NewInMemoryRepo()
	}

	s := &Server{
		env:     c.GetEnv(),
		appURL:  strings.TrimSuffix(c.GetAppURL(), "/"),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		router:  chi.NewRouter(),
		deps:    deps,
		nowTime: time.Now,
		expiry:  time.Hour,
		logger:  log.Logger,
		done:    make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Done is closed once the browser has been sent to its final destination
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Result is only meaningful after Done is closed
func (s *Server) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// CallbackURL is the redirect URI to register with the provider
func (s *Server) CallbackURL() string {
	return s.baseURL + RouteCallback
}

func (s *Server) finish(res Result) {
	s.doneOnce.Do(func() {
		s.mu.Lock()
		s.result = res
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *Server) setIdentity(id backend.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = &id
}

func (s *Server) currentIdentity() (backend.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return backend.Identity{}, false
	}
	return *s.identity, true
}

// appRedirect sends the browser to route on the web app
func (s *Server) appRedirect(w http.ResponseWriter, r *http.Request, route string) {
	http.Redirect(w, r, s.appURL+route, http.StatusSeeOther)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

var (
	_ AccountResolver = (*oauthflow.Resolver)(nil)
	_ SignInGate      = (*oauthflow.SignInPolicy)(nil)
)
