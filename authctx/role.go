package authctx

import (
	"fmt"

	"github.com/jrsteele09/airdrop-session/internal/errors"
	"github.com/jrsteele09/airdrop-session/storage"
)

// Role selects which audience a bearer token authorises
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Roles lists every known role
var Roles = []Role{RoleUser, RoleAdmin}

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: %q", errors.ErrInvalidRole, s)
}

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}

// TokenKey is the storage key holding this role's token
func (r Role) TokenKey() string {
	switch r {
	case RoleAdmin:
		return storage.KeyAdminToken
	default:
		return storage.KeyUserToken
	}
}

// Other returns the opposite role
func (r Role) Other() Role {
	if r == RoleAdmin {
		return RoleUser
	}
	return RoleAdmin
}
