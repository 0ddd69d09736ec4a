package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/turtacn/ssoguard/internal/config"
	"github.com/turtacn/ssoguard/pkg/errors"
)

func TestUserDirectory_Authenticate(t *testing.T) {
	hash, err := HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)

	dir, err := NewUserDirectory([]config.UserConfig{
		{Username: "alice", Password: "wonderland", Roles: []string{"USER"}},
		{Username: "bob", PasswordHash: hash, Roles: []string{"ROLE_ADMIN", "SCOPE_read", "USER"}},
	}, bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, 2, dir.Len())

	ctx := context.Background()
	alice, err := dir.Authenticate(ctx, "alice", "wonderland")
	require.NoError(t, err)
	assert.Equal(t, "alice", alice.Subject())
	assert.Equal(t, []string{"ROLE_USER"}, alice.AuthorityNames())

	bob, err := dir.Authenticate(ctx, "bob", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_ADMIN", "ROLE_USER", "SCOPE_read"}, bob.AuthorityNames())

	_, err = dir.Authenticate(ctx, "alice", "wrong")
	assert.True(t, errors.Is(err, errors.ErrBadCredentials))

	_, err = dir.Authenticate(ctx, "mallory", "wonderland")
	assert.True(t, errors.Is(err, errors.ErrBadCredentials))
}

func TestNewUserDirectory_Errors(t *testing.T) {
	cases := map[string][]config.UserConfig{
		"no password": {{Username: "alice"}},
		"bad hash":    {{Username: "alice", PasswordHash: "plain"}},
		"duplicate":   {{Username: "a", Password: "x"}, {Username: "a", Password: "y"}},
		"no username": {{Password: "x"}},
	}
	for name, users := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewUserDirectory(users, bcrypt.MinCost)
			assert.Error(t, err)
		})
	}
}

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, "ROLE_USER", NormalizeRole("USER"))
	assert.Equal(t, "ROLE_USER", NormalizeRole(" ROLE_USER "))
	assert.Equal(t, "SCOPE_read", NormalizeRole("SCOPE_read"))
	assert.Equal(t, "", NormalizeRole("  "))
}
