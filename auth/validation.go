package auth

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/jrsteele09/airdrop-session/backend"
)

const minPasswordLength = 8

// Validator holds the checks a form would run before a request is sent
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateUserCredentials validates login credentials
func (v *Validator) ValidateUserCredentials(email, password string) error {
	if err := v.ValidateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// ValidateEmail checks that email is present and looks like an address
func (v *Validator) ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}

	// Basic email format validation
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateRegistration checks a sign-up form
func (v *Validator) ValidateRegistration(req backend.RegisterRequest) error {
	if err := v.ValidateUserCredentials(req.Email, req.Password); err != nil {
		return err
	}
	if strings.TrimSpace(req.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if req.Password != req.ConfirmPassword {
		return PasswordsDontMatchErr
	}
	return nil
}

// ValidatePasswordReset checks the reset form. The backend enforces the real
// password policy; the length check only saves a round trip.
func (v *Validator) ValidatePasswordReset(email, otp, newPassword, confirmPassword string) error {
	if err := v.ValidateEmail(email); err != nil {
		return err
	}
	if strings.TrimSpace(otp) == "" {
		return fmt.Errorf("otp is required")
	}
	if newPassword != confirmPassword {
		return PasswordsDontMatchErr
	}
	if len(newPassword) < minPasswordLength {
		return PasswordTooShortErr
	}
	return nil
}

// ValidateReferralCode trims code and rejects an empty one
func (v *Validator) ValidateReferralCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ReferralCodeMissingErr
	}
	if strings.ContainsAny(code, " \n\r\t") {
		return "", fmt.Errorf("referral code must not contain whitespace")
	}
	return code, nil
}

// ValidateRedirectURI checks the URI the provider sends the browser back to.
// Plain http is only accepted for a loopback callback.
func ValidateRedirectURI(uri string) error {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return fmt.Errorf("redirect_uri is required")
	}
	if strings.Contains(uri, "#") {
		return fmt.Errorf("redirect_uri must not contain fragments")
	}

	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("redirect_uri is malformed: %w", err)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !isLoopback(u.Hostname()) {
			return fmt.Errorf("redirect_uri must use https for host %q", u.Hostname())
		}
	default:
		return fmt.Errorf("redirect_uri must use http or https scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("redirect_uri must include a host")
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ValidateState validates the OAuth state parameter echoed back by the provider
func ValidateState(state string) error {
	if state == "" {
		return fmt.Errorf("state parameter is required")
	}

	// Should be reasonably long for CSRF protection
	if len(state) < 8 {
		return fmt.Errorf("state parameter should be at least 8 characters for security")
	}

	// Should not contain whitespace
	if strings.TrimSpace(state) != state {
		return fmt.Errorf("state parameter must not contain leading/trailing whitespace")
	}

	return nil
}
