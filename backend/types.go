package backend

import "time"

// Profile is the identity returned by GET /api/auth/me
type Profile struct {
	ID               int64      `json:"id" yaml:"id"`
	Email            string     `json:"email" yaml:"email"`
	Username         *string    `json:"username" yaml:"username,omitempty"`
	WalletAddress    *string    `json:"wallet_address" yaml:"wallet_address,omitempty"`
	ReferralCode     string     `json:"referral_code" yaml:"referral_code"`
	ReferredBy       *string    `json:"referred_by" yaml:"referred_by,omitempty"`
	EmailVerified    bool       `json:"email_verified" yaml:"email_verified"`
	IsActive         bool       `json:"is_active" yaml:"is_active"`
	IsVerified       bool       `json:"is_verified" yaml:"is_verified"`
	KYCCompleted     bool       `json:"kyc_completed" yaml:"kyc_completed"`
	IsAdmin          bool       `json:"is_admin" yaml:"is_admin"`
	TotalEarnings    float64    `json:"total_earnings" yaml:"total_earnings"`
	ReferralEarnings float64    `json:"referral_earnings" yaml:"referral_earnings"`
	TaskEarnings     float64    `json:"task_earnings" yaml:"task_earnings"`
	MiningPoints     float64    `json:"mining_points" yaml:"mining_points"`
	MiningSpeed      float64    `json:"mining_speed" yaml:"mining_speed"`
	IsMining         bool       `json:"is_mining" yaml:"is_mining"`
	CreatedAt        *time.Time `json:"created_at" yaml:"created_at,omitempty"`
	LastLogin        *time.Time `json:"last_login" yaml:"last_login,omitempty"`
}

// Identity is what a third-party identity provider tells us about a user
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"`
}

// Credentials for password login
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by POST /api/auth/login
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// AccountSummary is the reduced user object returned by check-user
type AccountSummary struct {
	ID            int64   `json:"id"`
	Email         string  `json:"email"`
	Username      *string `json:"username"`
	EmailVerified bool    `json:"email_verified"`
	ReferredBy    *string `json:"referred_by"`
}

// HasReferral reports whether a referral relationship is recorded
func (a *AccountSummary) HasReferral() bool {
	return a != nil && a.ReferredBy != nil && *a.ReferredBy != ""
}

// AccountResponse is returned by check-user and google-oauth
type AccountResponse struct {
	Message      string          `json:"message,omitempty"`
	AccessToken  string          `json:"access_token"`
	TokenType    string          `json:"token_type"`
	User         *AccountSummary `json:"user,omitempty"`
	UserID       int64           `json:"user_id,omitempty"`
	ReferralCode string          `json:"referral_code,omitempty"`
	IsNewUser    *bool           `json:"is_new_user,omitempty"`
}

// BanStatus is returned by POST /api/auth/check-ban-status
type BanStatus struct {
	IsBanned bool   `json:"is_banned"`
	UserID   int64  `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Message  string `json:"message,omitempty"`
}

type RegisterRequest struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	ReferralCode    string `json:"referral_code,omitempty"`
}

type RegisterResponse struct {
	Message          string `json:"message"`
	EmailSent        bool   `json:"email_sent"`
	UserID           int64  `json:"user_id"`
	ReferralCode     string `json:"referral_code"`
	VerificationLink string `json:"verification_link,omitempty"`
}

type ReferralResponse struct {
	Message       string `json:"message"`
	ReferralCode  string `json:"referral_code"`
	ReferrerEmail string `json:"referrer_email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

// MessageResponse is the generic {"message": ...} body
type MessageResponse struct {
	Message string `json:"message"`
}
