package config

import "time"

type OAuthConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleAuthURL() string
	GetGoogleTokenURL() string
	GetGoogleIssuer() string
	GetCallbackAddr() string
	GetResolveTimeout() time.Duration
	GetDefaultAccessTokenExpiry() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", "")
}

func (OAuth) GetGoogleClientSecret() string {
	return GetEnv("GOOGLE_CLIENT_SECRET", "")
}

func (OAuth) GetGoogleAuthURL() string {
	return GetEnv("GOOGLE_AUTH_URL", "https://accounts.google.com/o/oauth2/v2/auth")
}

func (OAuth) GetGoogleTokenURL() string {
	return GetEnv("GOOGLE_TOKEN_URL", "https://oauth2.googleapis.com/token")
}

func (OAuth) GetGoogleIssuer() string {
	return GetEnv("GOOGLE_ISSUER", "https://accounts.google.com")
}

// GetCallbackAddr is the loopback address the OAuth callback server binds to
func (OAuth) GetCallbackAddr() string {
	return GetEnv("OAUTH_CALLBACK_ADDR", "127.0.0.1:8765")
}

// GetResolveTimeout bounds how long account resolution may keep the browser
// waiting before it is sent to the dashboard.
func (OAuth) GetResolveTimeout() time.Duration {
	return GetDuration("OAUTH_RESOLVE_TIMEOUT", 8*time.Second)
}

// GetDefaultAccessTokenExpiry applies when the provider reports no expiry
func (OAuth) GetDefaultAccessTokenExpiry() time.Duration {
	return 1 * time.Hour
}
