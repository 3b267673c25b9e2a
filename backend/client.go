// Package backend is the REST client for the airdrop platform API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Endpoints
const (
	PathMe                 = "/api/auth/me"
	PathLogin              = "/api/auth/login"
	PathRegister           = "/api/auth/register"
	PathCheckUser          = "/api/auth/check-user"
	PathGoogleOAuth        = "/api/auth/google-oauth"
	PathCheckBanStatus     = "/api/auth/check-ban-status"
	PathSubmitReferral     = "/api/auth/submit-referral"
	PathForgotPassword     = "/api/auth/forgot-password"
	PathResetPassword      = "/api/auth/reset-password"
	PathVerifyEmail        = "/api/auth/verify-email"
	PathResendVerification = "/api/auth/resend-verification"
)

const (
	headerRequestID = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the timeout on the client's http.Client
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

func New(baseURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// BaseURL returns the configured API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Me fetches the profile of the identity the bearer token belongs to
func (c *Client) Me(ctx context.Context, token string) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, PathMe, token, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Login exchanges email and password for a bearer token
func (c *Client) Login(ctx context.Context, creds Credentials) (*TokenResponse, error) {
	var resp TokenResponse
	if err := c.do(ctx, http.MethodPost, PathLogin, "", creds, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%s: response has no access_token", PathLogin)
	}
	return &resp, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.do(ctx, http.MethodPost, PathRegister, "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckUser looks up an existing account for a third-party identity. A
// missing account is an *APIError matching errors.ErrNotFound.
func (c *Client) CheckUser(ctx context.Context, id Identity) (*AccountResponse, error) {
	var resp AccountResponse
	if err := c.do(ctx, http.MethodPost, PathCheckUser, "", id, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GoogleOAuth creates an account for a third-party identity, or logs into the
// existing one when it already exists server-side.
func (c *Client) GoogleOAuth(ctx context.Context, id Identity) (*AccountResponse, error) {
	var resp AccountResponse
	if err := c.do(ctx, http.MethodPost, PathGoogleOAuth, "", id, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CheckBanStatus(ctx context.Context, email string) (*BanStatus, error) {
	var resp BanStatus
	body := map[string]string{"email": email}
	if err := c.do(ctx, http.MethodPost, PathCheckBanStatus, "", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SubmitReferral(ctx context.Context, token, referralCode string) (*ReferralResponse, error) {
	var resp ReferralResponse
	body := map[string]string{"referral_code": referralCode}
	if err := c.do(ctx, http.MethodPost, PathSubmitReferral, token, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (*MessageResponse, error) {
	var resp MessageResponse
	body := map[string]string{"email": email}
	if err := c.do(ctx, http.MethodPost, PathForgotPassword, "", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*MessageResponse, error) {
	var resp MessageResponse
	if err := c.do(ctx, http.MethodPost, PathResetPassword, "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) VerifyEmail(ctx context.Context, verificationToken string) (*MessageResponse, error) {
	var resp MessageResponse
	body := map[string]string{"token": verificationToken}
	if err := c.do(ctx, http.MethodPost, PathVerifyEmail, "", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ResendVerification(ctx context.Context, email string) (*MessageResponse, error) {
	var resp MessageResponse
	body := map[string]string{"email": email}
	if err := c.do(ctx, http.MethodPost, PathResendVerification, "", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, requestID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("path", path).Str("request_id", requestID).Msg("backend request failed")
		return fmt.Errorf("%s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", path, err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			Detail:     parseDetail(data, http.StatusText(resp.StatusCode)),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}
