package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ssoguard/pkg/constants"
)

func TestSentinelsSurviveDecoration(t *testing.T) {
	err := ErrTokenExpired.WithMetadata("exp", 42)

	assert.True(t, stderrors.Is(err, ErrTokenExpired))
	assert.False(t, stderrors.Is(err, ErrTokenRevoked))
	assert.Empty(t, ErrTokenExpired.Metadata(), "decorating must not mutate the sentinel")
	assert.Equal(t, 42, err.Metadata()["exp"])
}

func TestInvalidCredentialWrapsSpecificFailure(t *testing.T) {
	err := InvalidCredential(ErrTokenRevoked)

	assert.True(t, Is(err, ErrInvalidCredential))
	assert.True(t, Is(err, ErrTokenRevoked))
	assert.False(t, Is(err, ErrSignatureInvalid))
	assert.Equal(t, http.StatusUnauthorized, err.HTTPStatus())
	assert.Contains(t, err.Error(), "revoked")

	assert.Same(t, ErrInvalidCredential, InvalidCredential(nil))
}

func TestAsCBCErrorFindsWrapped(t *testing.T) {
	wrapped := fmt.Errorf("refresh: %w", ErrBadCredentials)

	cbcErr, ok := AsCBCError(wrapped)
	require.True(t, ok)
	assert.Equal(t, constants.ErrCodeInvalidGrant, cbcErr.Code())
	assert.True(t, IsAuthenticationError(wrapped))
	assert.False(t, IsCBCError(stderrors.New("plain")))
}

func TestToGenericErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"token failure", ErrInvalidCredential, http.StatusUnauthorized, "invalid_token"},
		{"bad request", ErrInvalidRequest("username is required"), http.StatusBadRequest, "invalid_request"},
		{"store down", ErrStoreUnavailable("redis", stderrors.New("dial")), http.StatusServiceUnavailable, "temporarily_unavailable"},
		{"unknown", stderrors.New("boom"), http.StatusInternalServerError, "server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ToGenericErrorResponse(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body.Error)
			assert.NotEmpty(t, body.ErrorDescription)
		})
	}
}

func TestShouldLogError(t *testing.T) {
	assert.False(t, ShouldLogError(ErrTokenExpired))
	assert.True(t, ShouldLogError(ErrServerError("db down")))
	assert.True(t, ShouldLogError(stderrors.New("unclassified")))
	assert.True(t, IsTransientError(ErrStoreUnavailable("database", nil)))
}
