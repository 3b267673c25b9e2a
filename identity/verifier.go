// Package identity turns a provider ID token into the third-party identity
// used for account lookup.
package identity

import (
	"context"
	"crypto"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/airdrop-session/backend"
	"github.com/jrsteele09/airdrop-session/internal/errors"
)

// Verifier checks ID token signatures, audience and expiry
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the provider's signing keys from issuer
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("[identity NewVerifier] failed to create OIDC provider: %w", err)
	}
	return &Verifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// NewStaticVerifier verifies against a fixed set of public keys
func NewStaticVerifier(issuer, clientID string, keys ...crypto.PublicKey) *Verifier {
	keySet := &oidc.StaticKeySet{PublicKeys: keys}
	return &Verifier{
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: clientID}),
	}
}

// Verify validates rawIDToken and returns the identity it asserts. A
// non-empty nonce must match the token's nonce claim.
func (v *Verifier) Verify(ctx context.Context, rawIDToken, nonce string) (backend.Identity, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return backend.Identity{}, fmt.Errorf("[identity Verify] ID token verification failed: %w", err)
	}

	var claims struct {
		Nonce   string `json:"nonce"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return backend.Identity{}, fmt.Errorf("[identity Verify] failed to extract claims: %w", err)
	}

	if nonce != "" && claims.Nonce != nonce {
		return backend.Identity{}, errors.Wrapf(errors.ErrInvalidNonce, "[identity Verify]")
	}
	if claims.Email == "" {
		return backend.Identity{}, errors.Wrapf(errors.ErrMissingIdentity, "[identity Verify]")
	}

	return backend.Identity{
		Email: claims.Email,
		Name:  claims.Name,
		Image: claims.Picture,
	}, nil
}
