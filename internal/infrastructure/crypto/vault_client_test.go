package crypto

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ssoguard/internal/config"
	"github.com/turtacn/ssoguard/pkg/errors"
)

func newFakeVault(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "dev-token" {
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"errors": []string{"permission denied"}})
			return
		}
		switch r.URL.Path {
		case "/v1/secret/data/ssoguard/jwt":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"data": map[string]interface{}{"jwt_secret": string(testSecret)},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVaultSecretSource_SigningSecret(t *testing.T) {
	srv := newFakeVault(t)
	src, err := NewVaultSecretSource(config.VaultConfig{Address: srv.URL, Token: "dev-token"}, nil)
	require.NoError(t, err)

	secret, err := src.SigningSecret(context.Background(), "ssoguard/jwt", "jwt_secret")
	require.NoError(t, err)
	assert.Equal(t, testSecret, secret)

	_, err = src.SigningSecret(context.Background(), "ssoguard/jwt", "other_key")
	assert.Error(t, err)

	_, err = src.SigningSecret(context.Background(), "ssoguard/missing", "jwt_secret")
	assert.Error(t, err)
}

func TestVaultSecretSource_Forbidden(t *testing.T) {
	srv := newFakeVault(t)
	src, err := NewVaultSecretSource(config.VaultConfig{Address: srv.URL, Token: "wrong"}, nil)
	require.NoError(t, err)

	_, err = src.SigningSecret(context.Background(), "ssoguard/jwt", "jwt_secret")
	require.Error(t, err)
	cbcErr, ok := errors.AsCBCError(err)
	require.True(t, ok)
	assert.Equal(t, "vault", cbcErr.Metadata()["source"])
}

func TestLoadSigningSecret(t *testing.T) {
	cfg := &config.Config{}
	cfg.SSO.JWT.SecretSource = "config"
	cfg.SSO.JWT.Secret = "from-config"
	secret, err := LoadSigningSecret(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("from-config"), secret)

	srv := newFakeVault(t)
	cfg.SSO.JWT.SecretSource = "vault"
	cfg.SSO.JWT.VaultPath = "ssoguard/jwt"
	cfg.SSO.JWT.VaultKey = "jwt_secret"
	cfg.Vault = config.VaultConfig{Address: srv.URL, Token: "dev-token"}
	secret, err = LoadSigningSecret(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, testSecret, secret)
}
