package oauthflow

import (
	"context"
	"strings"

	"github.com/jrsteele09/airdrop-session/backend"
	"github.com/jrsteele09/airdrop-session/navigation"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// BanChecker reports whether an email is barred from signing in
type BanChecker interface {
	CheckBanStatus(ctx context.Context, email string) (*backend.BanStatus, error)
}

// SignInPolicy gates third-party sign-ins on the platform's ban list
type SignInPolicy struct {
	bans   BanChecker
	logger zerolog.Logger
}

// PolicyOption defines a function type to modify the SignInPolicy instance.
type PolicyOption func(*SignInPolicy)

func WithPolicyLogger(l zerolog.Logger) PolicyOption {
	return func(p *SignInPolicy) {
		p.logger = l
	}
}

func NewSignInPolicy(bans BanChecker, options ...PolicyOption) *SignInPolicy {
	p := &SignInPolicy{
		bans:   bans,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Allow refuses banned emails only. A failed ban check lets the user through
// so an unreachable backend never locks legitimate users out.
func (p *SignInPolicy) Allow(ctx context.Context, email string) bool {
	if email == "" {
		return true
	}
	status, err := p.bans.CheckBanStatus(ctx, email)
	if err != nil {
		p.logger.Warn().Err(err).Str("email", email).Msg("ban check failed, allowing sign-in")
		return true
	}
	if status.IsBanned {
		p.logger.Info().Str("email", email).Msg("sign-in refused for banned account")
		return false
	}
	return true
}

// RedirectTarget picks where the browser goes after the provider hands
// control back. rawURL is the requested destination and baseURL the app root.
func RedirectTarget(rawURL, baseURL string) string {
	baseURL = strings.TrimSuffix(baseURL, "/")
	switch {
	case strings.Contains(rawURL, "error="):
		return baseURL + navigation.AuthErrorPage("AccessDenied")
	case strings.Contains(rawURL, navigation.RouteCheckUserStatus):
		return rawURL
	case strings.Contains(rawURL, navigation.RouteDashboard):
		return baseURL + navigation.CheckUserStatusPage()
	default:
		return baseURL + navigation.RouteDashboard
	}
}
