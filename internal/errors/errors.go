package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session client
var (
	// Auth context errors
	ErrNoActiveRole = errors.New("no active auth context")
	ErrInvalidRole  = errors.New("invalid auth context role")
	ErrEmptyToken   = errors.New("empty token")

	// Authentication errors
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBanned             = errors.New("account is banned")
	ErrEmailNotVerified   = errors.New("email is not verified")
	ErrInvalidState       = errors.New("invalid oauth state")
	ErrInvalidNonce       = errors.New("invalid oauth nonce")
	ErrMissingIdentity    = errors.New("identity has no email")
	ErrNoRefreshToken     = errors.New("no refresh token")
	ErrRefreshAccessToken = errors.New("refresh access token failed")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")

	// General errors
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
)

// New returns an error that formats as the given text
func New(text string) error {
	return errors.New(text)
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors, ignoring nils
func Join(errs ...error) error {
	return errors.Join(errs...)
}
