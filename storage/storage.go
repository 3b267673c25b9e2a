// Package storage defines the durable key/value store that holds client
// session state between runs, the equivalent of browser local storage.
//
// Writers in different processes sharing one backing store are not
// coordinated: the last write to a key wins.
package storage

import (
	"context"

	"github.com/jrsteele09/airdrop-session/internal/errors"
)

// Well known keys
const (
	KeyUserToken    = "user_token"
	KeyAdminToken   = "admin_token"
	KeyLegacyToken  = "token" // read-only fallback for the user role
	KeyAuthContext  = "auth_context"
	KeyOAuthSession = "oauth_session"
)

// ErrNotFound is returned by Get for keys that have no value
var ErrNotFound = errors.ErrNotFound

// Store is a string key/value store.
type Store interface {
	// Get returns the value for key or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
