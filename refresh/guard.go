// Package refresh keeps OAuth-issued access tokens usable by exchanging the
// refresh token once the access token has expired.
package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/airdrop-session/internal/config"
	"github.com/jrsteele09/airdrop-session/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Guard refreshes expired OAuth sessions against the provider token endpoint
type Guard struct {
	oauth         *oauth2.Config
	httpClient    *http.Client
	nowTime       func() time.Time
	defaultExpiry time.Duration
	logger        zerolog.Logger
}

// GuardOption defines a function type to modify the Guard instance.
type GuardOption func(*Guard)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) GuardOption {
	return func(g *Guard) {
		g.nowTime = nowFunc
	}
}

// WithHTTPClient sets the client used to reach the token endpoint
func WithHTTPClient(hc *http.Client) GuardOption {
	return func(g *Guard) {
		g.httpClient = hc
	}
}

// WithDefaultExpiry applies when the provider omits expires_in
func WithDefaultExpiry(d time.Duration) GuardOption {
	return func(g *Guard) {
		g.defaultExpiry = d
	}
}

func WithLogger(l zerolog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = l
	}
}

func New(oauthConfig *oauth2.Config, options ...GuardOption) *Guard {
	g := &Guard{
		oauth:         oauthConfig,
		nowTime:       NowTimeFunc,
		defaultExpiry: time.Hour,
		logger:        log.Logger,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// ProviderConfig builds the OAuth client configuration for the identity
// provider. Client credentials are sent in the request body.
func ProviderConfig(c config.OAuthConfig, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.GetGoogleClientID(),
		ClientSecret: c.GetGoogleClientSecret(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.GetGoogleAuthURL(),
			TokenURL:  c.GetGoogleTokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: redirectURL,
		Scopes:      []string{oidc.ScopeOpenID, "profile", "email"},
	}
}

// EnsureFreshToken returns s unchanged unless it is an expired OAuth session
// holding a refresh token, in which case exactly one refresh exchange is made.
// A failed exchange returns s marked with ErrorRefreshAccessToken; callers
// must treat that as re-authentication required.
func (g *Guard) EnsureFreshToken(ctx context.Context, s session.Session) session.Session {
	if !s.IsOAuth() {
		return s
	}
	now := g.nowTime()
	if now.UnixMilli() < s.ExpiresAt {
		return s
	}
	if s.RefreshToken == "" {
		g.logger.Debug().Msg("oauth session expired without a refresh token")
		return s
	}

	if g.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	}
	// An empty access token forces the source to refresh immediately
	src := g.oauth.TokenSource(ctx, &oauth2.Token{
		RefreshToken: s.RefreshToken,
		Expiry:       time.UnixMilli(s.ExpiresAt),
	})
	tok, err := src.Token()
	if err != nil {
		evt := g.logger.Warn().Err(err)
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			evt = evt.Int("status", re.Response.StatusCode).Str("error_code", re.ErrorCode)
		}
		evt.Msg("oauth token refresh failed")

		failed := s
		failed.Error = session.ErrorRefreshAccessToken
		return failed
	}

	refreshed := s
	refreshed.Token = tok.AccessToken
	refreshed.ExpiresAt = g.expiry(now, tok).UnixMilli()
	if tok.RefreshToken != "" {
		refreshed.RefreshToken = tok.RefreshToken
	}
	refreshed.Error = ""

	g.logger.Debug().Time("expires_at", refreshed.Expiry()).Msg("oauth token refreshed")
	return refreshed
}

func (g *Guard) expiry(now time.Time, tok *oauth2.Token) time.Time {
	if secs := expiresIn(tok); secs > 0 {
		return now.Add(time.Duration(secs) * time.Second)
	}
	if !tok.Expiry.IsZero() {
		return tok.Expiry
	}
	return now.Add(g.defaultExpiry)
}

// expiresIn reads the wire "expires_in" value, which providers send as a
// number or a numeric string.
func expiresIn(tok *oauth2.Token) int64 {
	if tok.ExpiresIn > 0 {
		return tok.ExpiresIn
	}
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case json.Number:
		i, _ := v.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(v, 10, 64)
		return i
	}
	return 0
}
