// Package authflowrepo keeps the per-redirect secrets of an OAuth sign-in
// between the authorization request and the provider callback.
package authflowrepo

import (
	"fmt"
	"time"

	"github.com/jrsteele09/airdrop-session/internal/errors"
)

// Both match errors.ErrInvalidState
var (
	ErrStateNotFound = fmt.Errorf("state not found: %w", errors.ErrInvalidState)
	ErrStateExpired  = fmt.Errorf("state expired: %w", errors.ErrInvalidState)
)

type AuthFlowState struct {
	CodeVerifier string
	Nonce        string
	ReturnURL    string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	// Take returns the state and removes it; a state can be redeemed once
	Take(state string) (*AuthFlowState, error)
	Delete(state string) error
}
