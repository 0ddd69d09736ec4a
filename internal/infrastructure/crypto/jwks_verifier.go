package crypto

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/turtacn/ssoguard/internal/domain/models"
	"github.com/turtacn/ssoguard/pkg/clock"
)

var (
	errKidMissing  = stderrors.New("token header has no kid")
	errKidNotFound = stderrors.New("kid not found in JWKS")
	errNoKeys      = stderrors.New("no usable signing keys in JWKS response")
)

// jwksMinRefresh bounds how often an unknown kid can trigger a refetch.
const jwksMinRefresh = 30 * time.Second

// JWKSVerifier verifies externally issued tokens against the identity provider's JSON Web
// Key Set. Keys are cached by kid; the set is fetched lazily and refetched (with ETag
// revalidation) when a token names an unknown kid.
type JWKSVerifier struct {
	url        string
	algorithms []string
	issuer     string
	clock      clock.Clock
	httpClient *http.Client

	mu        sync.RWMutex
	keys      map[string]interface{}
	etag      string
	lastFetch time.Time
}

// NewJWKSVerifier creates a verifier for the key set at url. An empty algorithm list
// allows RS256 only.
func NewJWKSVerifier(url string, algorithms []string, issuer string, clk clock.Clock, httpClient *http.Client) *JWKSVerifier {
	if clk == nil {
		clk = clock.System()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if len(algorithms) == 0 {
		algorithms = []string{string(jose.RS256)}
	}
	return &JWKSVerifier{
		url:        url,
		algorithms: algorithms,
		issuer:     issuer,
		clock:      clk,
		httpClient: httpClient,
		keys:       map[string]interface{}{},
	}
}

// Refresh fetches the key set. A 304 keeps the cached keys.
func (v *JWKSVerifier) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return err
	}
	v.mu.RLock()
	if v.etag != "" {
		req.Header.Set("If-None-Match", v.etag)
	}
	v.mu.RUnlock()

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	now := v.clock.Now()
	if resp.StatusCode == http.StatusNotModified {
		v.mu.Lock()
		v.lastFetch = now
		v.mu.Unlock()
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch JWKS: status code %d", resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode JWKS: %w", err)
	}

	keys := make(map[string]interface{}, len(set.Keys))
	for _, k := range set.Keys {
		if k.Use == "enc" || !k.Valid() {
			continue
		}
		switch k.Key.(type) {
		case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
			keys[k.KeyID] = k.Key
		}
	}
	if len(keys) == 0 {
		return errNoKeys
	}

	v.mu.Lock()
	v.keys = keys
	v.etag = resp.Header.Get("ETag")
	v.lastFetch = now
	v.mu.Unlock()
	return nil
}

// Verify implements service.Verifier.
func (v *JWKSVerifier) Verify(tokenString string) (models.ClaimSet, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.algorithms),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, v.keyFor, opts...)
	if err != nil {
		return nil, classify(err)
	}
	return models.ClaimSet(claims), nil
}

func (v *JWKSVerifier) keyFor(token *jwt.Token) (interface{}, error) {
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, errKidMissing
	}
	if key, ok := v.lookup(kid); ok {
		return key, nil
	}

	v.mu.RLock()
	recent := !v.lastFetch.IsZero() && v.clock.Now().Sub(v.lastFetch) < jwksMinRefresh
	v.mu.RUnlock()
	if recent {
		return nil, errKidNotFound
	}

	timeout := v.httpClient.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := v.Refresh(ctx); err != nil {
		// a failed fetch still counts against the refresh window
		v.mu.Lock()
		v.lastFetch = v.clock.Now()
		v.mu.Unlock()
		return nil, err
	}
	if key, ok := v.lookup(kid); ok {
		return key, nil
	}
	return nil, errKidNotFound
}

func (v *JWKSVerifier) lookup(kid string) (interface{}, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	key, ok := v.keys[kid]
	return key, ok
}
