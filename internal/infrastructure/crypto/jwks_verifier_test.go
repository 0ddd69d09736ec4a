package crypto

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ssoguard/pkg/clock"
	"github.com/turtacn/ssoguard/pkg/errors"
)

type jwksFixture struct {
	priv    *rsa.PrivateKey
	server  *httptest.Server
	fetches atomic.Int32
	kid     atomic.Value
}

func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &jwksFixture{priv: priv}
	f.kid.Store("k1")
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.fetches.Add(1)
		kid := f.kid.Load().(string)
		etag := `"` + kid + `"`
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{
			{Key: &priv.PublicKey, KeyID: kid, Algorithm: string(jose.RS256), Use: "sig"},
		}}
		w.Header().Set("ETag", etag)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *jwksFixture) sign(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(f.priv)
	require.NoError(t, err)
	return signed
}

func TestJWKSVerifier_Verify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clk := clock.NewFake(now)
	f := newJWKSFixture(t)

	v, err := NewExternalVerifier(ExternalKeyConfig{JWKSURL: f.server.URL, Issuer: "ssoguard"}, clk)
	require.NoError(t, err)

	claims, err := v.Verify(f.sign(t, "k1", claimsAt(now, time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims["sub"])
	assert.Equal(t, int32(1), f.fetches.Load())

	// cached key, no refetch
	_, err = v.Verify(f.sign(t, "k1", claimsAt(now, time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.fetches.Load())

	_, err = v.Verify(f.sign(t, "", claimsAt(now, time.Hour)))
	assert.True(t, errors.Is(err, errors.ErrSignatureInvalid))

	clk.Advance(2 * time.Hour)
	_, err = v.Verify(f.sign(t, "k1", claimsAt(now, time.Hour)))
	assert.True(t, errors.Is(err, errors.ErrTokenExpired))
}

func TestJWKSVerifier_UnknownKidThrottle(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clk := clock.NewFake(now)
	f := newJWKSFixture(t)
	v := NewJWKSVerifier(f.server.URL, nil, "", clk, f.server.Client())
	require.NoError(t, v.Refresh(context.Background()))
	require.Equal(t, int32(1), f.fetches.Load())

	_, err := v.Verify(f.sign(t, "k2", claimsAt(now, time.Hour)))
	assert.True(t, errors.Is(err, errors.ErrSignatureInvalid))
	assert.Equal(t, int32(1), f.fetches.Load(), "unknown kid within the refresh window must not refetch")

	// the provider rotates to k2; once the window passes the verifier picks it up
	f.kid.Store("k2")
	clk.Advance(jwksMinRefresh)
	claims := claimsAt(clk.Now(), time.Hour)
	_, err = v.Verify(f.sign(t, "k2", claims))
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.fetches.Load())
}

func TestJWKSVerifier_NotModifiedKeepsKeys(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clk := clock.NewFake(now)
	f := newJWKSFixture(t)
	v := NewJWKSVerifier(f.server.URL, nil, "", clk, nil)

	require.NoError(t, v.Refresh(context.Background()))
	require.NoError(t, v.Refresh(context.Background()))
	assert.Equal(t, int32(2), f.fetches.Load())

	_, err := v.Verify(f.sign(t, "k1", claimsAt(now, time.Hour)))
	assert.NoError(t, err)
}

func TestJWKSVerifier_FetchErrors(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"keys":[]}`))
	}))
	defer empty.Close()
	v := NewJWKSVerifier(empty.URL, nil, "", nil, nil)
	assert.ErrorIs(t, v.Refresh(context.Background()), errNoKeys)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	v = NewJWKSVerifier(broken.URL, nil, "", nil, nil)
	assert.Error(t, v.Refresh(context.Background()))
}

func TestNewExternalVerifier_JWKSRejectsHMAC(t *testing.T) {
	_, err := NewExternalVerifier(ExternalKeyConfig{
		JWKSURL:    "http://idp.invalid/jwks",
		Algorithms: []string{"HS256"},
	}, nil)
	assert.Error(t, err)
}

func TestJWKSVerifier_FailedFetchIsThrottled(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clk := clock.NewFake(now)
	f := newJWKSFixture(t)

	var calls atomic.Int32
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	v := NewJWKSVerifier(broken.URL, nil, "", clk, broken.Client())

	_, err := v.Verify(f.sign(t, "k1", claimsAt(now, time.Hour)))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	// an unreachable provider is not hammered on every request
	for i := 0; i < 5; i++ {
		_, err = v.Verify(f.sign(t, "k1", claimsAt(now, time.Hour)))
		assert.True(t, errors.Is(err, errors.ErrSignatureInvalid))
	}
	assert.Equal(t, int32(1), calls.Load())

	clk.Advance(jwksMinRefresh)
	_, err = v.Verify(f.sign(t, "k1", claimsAt(clk.Now(), time.Hour)))
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
