package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/ssoguard/internal/domain/models"
	"github.com/turtacn/ssoguard/pkg/constants"
)

func TestToken_IsExpiredAt(t *testing.T) {
	exp := time.Unix(1_700_000_000, 0)
	token := &models.Token{ExpiresAt: exp}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before expiry", exp.Add(-time.Second), false},
		{"at expiry", exp, true},
		{"after expiry", exp.Add(time.Second), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, token.IsExpiredAt(tt.now))
		})
	}
}

func TestToken_ExpiresIn(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	token := &models.Token{ExpiresAt: now.Add(3600 * time.Second)}

	assert.Equal(t, int64(3600), token.ExpiresIn(now))
	assert.Equal(t, int64(0), token.ExpiresIn(now.Add(2*time.Hour)))
	assert.Equal(t, constants.TokenTypeBearer, token.TokenType())
}

func TestIntrospection(t *testing.T) {
	inactive := models.InactiveIntrospection()
	assert.False(t, inactive.Active)
	assert.Nil(t, inactive.Subject)
	assert.Zero(t, inactive.ExpiresAtEpochSeconds)

	exp := time.Unix(1_700_003_600, 0)
	active := models.ActiveIntrospection("alice", exp)
	assert.True(t, active.Active)
	if assert.NotNil(t, active.Subject) {
		assert.Equal(t, "alice", *active.Subject)
	}
	assert.Equal(t, int64(1_700_003_600), active.ExpiresAtEpochSeconds)
}

func TestRevocationRecord_Retainable(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	assert.True(t, models.RevocationRecord{TokenID: "a"}.Retainable(now))
	assert.True(t, models.RevocationRecord{TokenID: "b", ExpiresAt: now.Add(time.Minute)}.Retainable(now))
	assert.False(t, models.RevocationRecord{TokenID: "c", ExpiresAt: now}.Retainable(now))
}

func TestAuthoritySet(t *testing.T) {
	s := models.NewAuthoritySet("ROLE_ADMIN", "ROLE_ADMIN", "", "SCOPE_read")
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"ROLE_ADMIN", "SCOPE_read"}, s.Slice())
	assert.True(t, s.Equal(models.NewAuthoritySet("SCOPE_read", "ROLE_ADMIN")))
	assert.False(t, s.Equal(models.NewAuthoritySet("ROLE_ADMIN")))
	assert.False(t, s.Has("role_admin"), "authorities are case preserved")
}

func TestPrincipal_IsImmutable(t *testing.T) {
	authorities := models.NewAuthoritySet("ROLE_USER")
	p := models.NewPrincipal("alice", authorities)

	authorities.Add("ROLE_ADMIN")
	p.Authorities().Add("ROLE_ROOT")

	assert.Equal(t, "alice", p.Subject())
	assert.Equal(t, []string{"ROLE_USER"}, p.AuthorityNames())
	assert.False(t, p.HasAuthority("ROLE_ADMIN"))
}

func TestAuditEvent_Builders(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	e := models.NewAuditEvent(constants.EventTypeTokenRevoke, constants.AuditResultSuccess, now).
		WithSubject("alice").
		WithToken("fp", now.Add(time.Hour)).
		WithContextInfo("10.0.0.1", "trace")

	assert.NotEmpty(t, e.EventID)
	assert.Equal(t, "alice", e.Subject)
	assert.Equal(t, "fp", e.TokenID)
	if assert.NotNil(t, e.ExpiresAt) {
		assert.Equal(t, now.Add(time.Hour), *e.ExpiresAt)
	}
	assert.Nil(t, models.NewAuditEvent(constants.EventTypeLogin, constants.AuditResultFailure, now).WithToken("x", time.Time{}).ExpiresAt)
}
