// Package session models an authenticated client session and persists the
// OAuth-issued one between runs.
package session

import (
	"time"

	"github.com/jrsteele09/airdrop-session/authctx"
	"golang.org/x/oauth2"
)

// IssuedVia records how a session was obtained
type IssuedVia string

const (
	IssuedViaPassword IssuedVia = "password"
	IssuedViaOAuth    IssuedVia = "oauth"
)

// ErrorRefreshAccessToken marks a session whose refresh attempt failed
const ErrorRefreshAccessToken = "RefreshAccessTokenError"

// Session is an authenticated identity as seen by the client. ExpiresAt and
// RefreshToken are only meaningful for OAuth sessions; password sessions
// never expire client-side.
type Session struct {
	Role         authctx.Role `json:"role" yaml:"role"`
	Token        string       `json:"token" yaml:"-"`
	IssuedVia    IssuedVia    `json:"issued_via" yaml:"issued_via"`
	ExpiresAt    int64        `json:"expires_at,omitempty" yaml:"expires_at,omitempty"` // epoch milliseconds
	RefreshToken string       `json:"refresh_token,omitempty" yaml:"-"`
	Error        string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// IsOAuth reports whether the session carries provider refresh semantics
func (s Session) IsOAuth() bool {
	return s.IssuedVia == IssuedViaOAuth
}

// Expired reports whether an OAuth session's access token has expired at now
func (s Session) Expired(now time.Time) bool {
	if !s.IsOAuth() {
		return false
	}
	return now.UnixMilli() >= s.ExpiresAt
}

// NeedsReauth is true once a refresh has failed; the token must not be trusted
func (s Session) NeedsReauth() bool {
	return s.Error == ErrorRefreshAccessToken
}

// Expiry returns ExpiresAt as a time, zero for sessions without an expiry
func (s Session) Expiry() time.Time {
	if s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.ExpiresAt)
}

// FromOAuthToken builds the session recorded on initial OAuth sign-in. When
// the provider reports no expiry the token is assumed to live defaultExpiry.
func FromOAuthToken(tok *oauth2.Token, now time.Time, defaultExpiry time.Duration) Session {
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = now.Add(defaultExpiry)
	}
	return Session{
		Role:         authctx.RoleUser,
		Token:        tok.AccessToken,
		IssuedVia:    IssuedViaOAuth,
		ExpiresAt:    expiry.UnixMilli(),
		RefreshToken: tok.RefreshToken,
	}
}

// Password builds a session for a password login
func Password(role authctx.Role, token string) Session {
	return Session{
		Role:      role,
		Token:     token,
		IssuedVia: IssuedViaPassword,
	}
}
