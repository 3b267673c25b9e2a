// Package oauthflow decides where a user goes once a third-party sign-in
// completes, and holds the sign-in and redirect policies applied around it.
package oauthflow

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/jrsteele09/airdrop-session/authctx"
	"github.com/jrsteele09/airdrop-session/backend"
	"github.com/jrsteele09/airdrop-session/navigation"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a single resolution before the dashboard is forced
const DefaultTimeout = 8 * time.Second

const (
	fallbackLookupFailed = "lookup_failed"
	fallbackCreateFailed = "create_failed"
)

// AccountService looks up and creates platform accounts for a third-party identity
type AccountService interface {
	CheckUser(ctx context.Context, id backend.Identity) (*backend.AccountResponse, error)
	GoogleOAuth(ctx context.Context, id backend.Identity) (*backend.AccountResponse, error)
}

// Activator stores a role-scoped login token
type Activator interface {
	Activate(ctx context.Context, role authctx.Role, token string) error
}

// Outcome describes what a call to Resolve did
type Outcome struct {
	Target    string // navigation target, empty when nothing navigated
	Skipped   bool   // no OAuth completion signal
	Duplicate bool   // an earlier call already handled this completion; Target is its settled target, if any
	TimedOut  bool   // the deadline forced the dashboard
	Fallback  bool   // lookup or creation failed and the referral page was used
}

// Resolver handles one OAuth completion. The first qualifying call to Resolve
// does the work; later calls are no-ops.
type Resolver struct {
	accounts AccountService
	auth     Activator
	nav      navigation.Navigator
	timeout  time.Duration
	logger   zerolog.Logger

	mu        sync.Mutex
	processed bool
	attempt   uint64
	settled   bool
	target    string // where the settled resolution navigated
	inflight  sync.WaitGroup
}

// ResolverOption defines a function type to modify the Resolver instance.
type ResolverOption func(*Resolver)

// WithTimeout sets the resolution deadline
func WithTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.timeout = d
	}
}

func WithLogger(l zerolog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

func NewResolver(accounts AccountService, auth Activator, nav navigation.Navigator, options ...ResolverOption) *Resolver {
	r := &Resolver{
		accounts: accounts,
		auth:     auth,
		nav:      nav,
		timeout:  DefaultTimeout,
		logger:   log.Logger,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

type decision struct {
	target   string
	token    string
	fallback bool
}

// Resolve routes id after an OAuth completion. query must carry
// oauth_success=true for anything to happen.
func (r *Resolver) Resolve(ctx context.Context, id backend.Identity, query url.Values) Outcome {
	if !completed(query) {
		return Outcome{Skipped: true}
	}

	r.mu.Lock()
	if r.processed {
		target := r.target
		r.mu.Unlock()
		return Outcome{Duplicate: true, Target: target}
	}
	r.processed = true
	r.attempt++
	attempt := r.attempt
	r.mu.Unlock()

	if id.Email == "" {
		r.settle(ctx, attempt, decision{target: navigation.RouteAirdrop})
		return Outcome{Target: navigation.RouteAirdrop}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results := make(chan Outcome, 1)
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		d := r.decide(runCtx, id)
		if runCtx.Err() != nil {
			// the deadline path owns navigation now
			results <- Outcome{}
			return
		}
		if !r.settle(ctx, attempt, d) {
			results <- Outcome{}
			return
		}
		results <- Outcome{Target: d.target, Fallback: d.fallback}
	}()

	select {
	case out := <-results:
		if out.Target != "" {
			return out
		}
		out, _ = r.expire(attempt, ctx.Err())
		return out
	case <-runCtx.Done():
		if out, ok := r.expire(attempt, ctx.Err()); ok {
			return out
		}
		// the in-flight resolution settled first
		return <-results
	}
}

// Wait blocks until any abandoned resolution has returned. Its result has
// already been discarded.
func (r *Resolver) Wait() {
	r.inflight.Wait()
}

func completed(query url.Values) bool {
	return query.Get(navigation.OAuthSuccessParam) == "true"
}

func (r *Resolver) decide(ctx context.Context, id backend.Identity) decision {
	logger := r.logger.With().Str("email", id.Email).Logger()
	referral := navigation.ReferralPage(id.Email)

	acct, err := r.accounts.CheckUser(ctx, id)
	if err == nil {
		target := navigation.RouteDashboard
		if acct.User == nil || !acct.User.HasReferral() {
			target = referral
		}
		if acct.AccessToken == "" {
			logger.Warn().Msg("account found without an access token, user stays signed out")
		}
		return decision{target: target, token: acct.AccessToken}
	}
	if ctx.Err() != nil {
		// abandoned; the deadline path decides where the user goes
		return decision{}
	}
	if backend.StatusCode(err) == 0 {
		logger.Error().Err(err).Str("fallback", fallbackLookupFailed).Msg("account lookup failed, sending user to referral entry")
		return decision{target: referral, fallback: true}
	}
	logger.Debug().Err(err).Msg("no account found, creating one")

	created, err := r.accounts.GoogleOAuth(ctx, id)
	if err != nil && ctx.Err() != nil {
		return decision{}
	}
	if err != nil || created.AccessToken == "" {
		logger.Error().Err(err).Str("fallback", fallbackCreateFailed).Msg("account creation failed, sending user to referral entry")
		return decision{target: referral, fallback: true}
	}
	if created.IsNewUser != nil && !*created.IsNewUser {
		return decision{target: navigation.RouteDashboard, token: created.AccessToken}
	}
	return decision{target: referral, token: created.AccessToken}
}

// settle applies d unless attempt is stale or something already navigated
func (r *Resolver) settle(ctx context.Context, attempt uint64, d decision) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if attempt != r.attempt || r.settled {
		r.logger.Debug().Uint64("attempt", attempt).Msg("discarding stale resolution")
		return false
	}
	r.settled = true
	r.target = d.target
	if d.token != "" {
		if err := r.auth.Activate(ctx, authctx.RoleUser, d.token); err != nil {
			r.logger.Error().Err(err).Msg("failed to store oauth session token")
		}
	}
	r.nav.Navigate(d.target)
	return true
}

// expire abandons attempt and forces the dashboard. A cancelled parent
// context abandons without navigating.
func (r *Resolver) expire(attempt uint64, parentErr error) (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if attempt != r.attempt || r.settled {
		return Outcome{}, false
	}
	r.attempt++
	r.settled = true
	if parentErr != nil {
		r.logger.Warn().Err(parentErr).Msg("oauth resolution abandoned")
		return Outcome{}, true
	}
	r.logger.Warn().Dur("timeout", r.timeout).Msg("oauth resolution timed out, forcing dashboard")
	r.target = navigation.RouteDashboard
	r.nav.Navigate(navigation.RouteDashboard)
	return Outcome{Target: navigation.RouteDashboard, TimedOut: true}, true
}
