// Package identity authenticates username/password logins against the configured users.
package identity

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/turtacn/ssoguard/internal/config"
	"github.com/turtacn/ssoguard/internal/domain/models"
	"github.com/turtacn/ssoguard/internal/domain/service"
	"github.com/turtacn/ssoguard/pkg/errors"
)

var _ service.Authenticator = (*UserDirectory)(nil)

// rolePrefix is prepended to configured roles that are not already prefixed.
const rolePrefix = "ROLE_"

type user struct {
	hash        []byte
	authorities models.AuthoritySet
}

// UserDirectory is an immutable in-memory user table with bcrypt password hashes.
type UserDirectory struct {
	users map[string]user
	// dummy is compared against for unknown users so both paths cost one bcrypt round.
	dummy []byte
}

// NewUserDirectory builds the directory. Plain-text passwords are hashed at the given cost
// (bcrypt.DefaultCost when zero); password_hash entries must already be bcrypt hashes.
func NewUserDirectory(users []config.UserConfig, cost int) (*UserDirectory, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("ssoguard-dummy-password"), cost)
	if err != nil {
		return nil, errors.ErrInvalidConfig("bcrypt cost out of range").WithCause(err)
	}

	dir := &UserDirectory{users: make(map[string]user, len(users)), dummy: dummy}
	for _, u := range users {
		if u.Username == "" {
			return nil, errors.ErrInvalidConfig("user entry without username")
		}
		if _, dup := dir.users[u.Username]; dup {
			return nil, errors.ErrInvalidConfig(fmt.Sprintf("duplicate user %q", u.Username))
		}

		var hash []byte
		switch {
		case u.PasswordHash != "":
			if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
				return nil, errors.ErrInvalidConfig(fmt.Sprintf("user %q: password_hash is not a bcrypt hash", u.Username)).WithCause(err)
			}
			hash = []byte(u.PasswordHash)
		case u.Password != "":
			hash, err = bcrypt.GenerateFromPassword([]byte(u.Password), cost)
			if err != nil {
				return nil, errors.ErrInvalidConfig(fmt.Sprintf("user %q: cannot hash password", u.Username)).WithCause(err)
			}
		default:
			return nil, errors.ErrInvalidConfig(fmt.Sprintf("user %q has neither password nor password_hash", u.Username))
		}

		authorities := models.NewAuthoritySet()
		for _, r := range u.Roles {
			authorities.Add(NormalizeRole(r))
		}
		dir.users[u.Username] = user{hash: hash, authorities: authorities}
	}
	return dir, nil
}

// NormalizeRole adds the ROLE_ prefix unless the role is already prefixed or is a scope.
func NormalizeRole(role string) string {
	role = strings.TrimSpace(role)
	if role == "" || strings.HasPrefix(role, rolePrefix) || strings.HasPrefix(role, "SCOPE_") {
		return role
	}
	return rolePrefix + role
}

// Authenticate implements service.Authenticator. Unknown users and wrong passwords return
// the same error.
func (d *UserDirectory) Authenticate(_ context.Context, username, password string) (*models.Principal, error) {
	u, ok := d.users[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(d.dummy, []byte(password))
		return nil, errors.ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.hash, []byte(password)); err != nil {
		return nil, errors.ErrBadCredentials
	}
	return models.NewPrincipal(username, u.authorities), nil
}

// Len returns the number of users.
func (d *UserDirectory) Len() int {
	return len(d.users)
}

// HashPassword returns the bcrypt hash of password, for the password_hash config field.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
