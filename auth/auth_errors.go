package auth

import "github.com/pkg/errors"

var (
	PasswordsDontMatchErr  = errors.New("passwords do not match")
	PasswordTooShortErr    = errors.New("password must be at least 8 characters long")
	ReferralCodeMissingErr = errors.New("referral code is required")
	NoAuthTokenErr         = errors.New("no authentication token found")
	AdminUnverifiedErr     = errors.New("please verify your email address before accessing admin panel")
)
