package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/ssoguard/internal/domain/models"
)

func TestNewTokenResponse(t *testing.T) {
	issued := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	token := &models.Token{
		Value:     "header.payload.sig",
		IssuedAt:  issued,
		ExpiresAt: issued.Add(time.Hour),
	}

	resp := NewTokenResponse(token)
	assert.Equal(t, "header.payload.sig", resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Nil(t, resp.RefreshToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
}
