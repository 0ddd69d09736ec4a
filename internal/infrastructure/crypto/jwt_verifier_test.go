package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ssoguard/pkg/clock"
	"github.com/turtacn/ssoguard/pkg/errors"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func claimsAt(now time.Time, ttl time.Duration) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   "ssoguard",
		"sub":   "alice",
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
		"roles": []string{"ROLE_USER"},
	}
}

func TestNewHMACKey_RejectsShortSecret(t *testing.T) {
	_, err := NewHMACKey([]byte("short"), "ssoguard", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 bytes")
}

func TestHMACKey_SignVerify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clk := clock.NewFake(now)
	key, err := NewHMACKey(testSecret, "ssoguard", clk)
	require.NoError(t, err)

	token, err := key.Sign(claimsAt(now, time.Hour))
	require.NoError(t, err)

	claims, err := key.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims["sub"])

	clk.Advance(time.Hour - time.Second)
	_, err = key.Verify(token)
	assert.NoError(t, err)

	clk.Advance(time.Second)
	_, err = key.Verify(token)
	assert.True(t, errors.Is(err, errors.ErrTokenExpired), "now == exp must be expired, got %v", err)
}

func TestHMACKey_VerifyFailures(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clk := clock.NewFake(now)
	key, err := NewHMACKey(testSecret, "ssoguard", clk)
	require.NoError(t, err)

	other, err := NewHMACKey([]byte("ffffffffffffffffffffffffffffffff"), "ssoguard", clk)
	require.NoError(t, err)
	forged, err := other.Sign(claimsAt(now, time.Hour))
	require.NoError(t, err)

	good, err := key.Sign(claimsAt(now, time.Hour))
	require.NoError(t, err)
	parts := strings.Split(good, ".")
	evil := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"iss":"ssoguard","sub":"mallory","exp":%d}`, now.Add(time.Hour).Unix())))
	tampered := parts[0] + "." + evil + "." + parts[2]

	noExp := jwt.MapClaims{"sub": "alice", "iss": "ssoguard"}
	withoutExp, err := key.Sign(noExp)
	require.NoError(t, err)

	wrongIss := claimsAt(now, time.Hour)
	wrongIss["iss"] = "someone-else"
	foreign, err := key.Sign(wrongIss)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claimsAt(now, time.Hour)).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not-a-jwt", errors.ErrMalformedToken},
		{"empty", "", errors.ErrMalformedToken},
		{"foreign key", forged, errors.ErrSignatureInvalid},
		{"tampered payload", tampered, errors.ErrSignatureInvalid},
		{"alg none", unsigned, errors.ErrSignatureInvalid},
		{"missing exp", withoutExp, errors.ErrMalformedToken},
		{"wrong issuer", foreign, errors.ErrMalformedToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := key.Verify(tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func writePEM(t *testing.T, pub interface{}) string {
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func TestExternalVerifier_RSA(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)

	v, err := NewExternalVerifier(ExternalKeyConfig{
		Issuer:       "https://idp.example.com/realms/main",
		PublicKeyPEM: writePEM(t, &priv.PublicKey),
	}, clock.NewFake(now))
	require.NoError(t, err)

	claims := claimsAt(now, time.Minute)
	claims["iss"] = "https://idp.example.com/realms/main"
	claims["realm_access"] = map[string]interface{}{"roles": []string{"admin"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(priv)
	require.NoError(t, err)

	got, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", got["sub"])
	assert.IsType(t, map[string]interface{}{}, got["realm_access"])

	// an HS256 token keyed with the public key bytes must not pass
	hs, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(writePEM(t, &priv.PublicKey)))
	require.NoError(t, err)
	_, err = v.Verify(hs)
	assert.True(t, errors.Is(err, errors.ErrSignatureInvalid), "got %v", err)
}

func TestExternalVerifier_ECFromFile(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	file := filepath.Join(t.TempDir(), "idp.pem")
	require.NoError(t, os.WriteFile(file, []byte(writePEM(t, &priv.PublicKey)), 0o600))

	now := time.Unix(1_700_000_000, 0)
	v, err := NewExternalVerifier(ExternalKeyConfig{PublicKeyFile: file}, clock.NewFake(now))
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claimsAt(now, time.Minute)).SignedString(priv)
	require.NoError(t, err)
	_, err = v.Verify(token)
	assert.NoError(t, err)
}

func TestExternalVerifier_SharedSecret(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v, err := NewExternalVerifier(ExternalKeyConfig{SharedSecret: string(testSecret)}, clock.NewFake(now))
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claimsAt(now, time.Minute)).SignedString(testSecret)
	require.NoError(t, err)
	_, err = v.Verify(token)
	assert.NoError(t, err)
}

func TestNewExternalVerifier_ConfigErrors(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name string
		cfg  ExternalKeyConfig
	}{
		{"no key", ExternalKeyConfig{}},
		{"not pem", ExternalKeyConfig{PublicKeyPEM: "hello"}},
		{"missing file", ExternalKeyConfig{PublicKeyFile: filepath.Join(t.TempDir(), "nope.pem")}},
		{"algorithm mismatch", ExternalKeyConfig{PublicKeyPEM: writePEM(t, &priv.PublicKey), Algorithms: []string{"ES256"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExternalVerifier(tt.cfg, nil)
			assert.Error(t, err)
		})
	}
}
