package crypto

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/turtacn/ssoguard/pkg/clock"
	"github.com/turtacn/ssoguard/pkg/constants"
	"github.com/turtacn/ssoguard/pkg/errors"
)

// HMACKey signs and verifies locally issued tokens with HS256. The secret is copied at
// construction and never changes afterwards.
type HMACKey struct {
	secret []byte
	*jwtVerifier
}

// NewHMACKey builds the key for local mode. The secret must be at least
// constants.MinSigningSecretBytes long. Tokens whose iss differs from issuer are rejected.
func NewHMACKey(secret []byte, issuer string, clk clock.Clock) (*HMACKey, error) {
	if len(secret) < constants.MinSigningSecretBytes {
		return nil, errors.ErrInvalidConfig(fmt.Sprintf(
			"signing secret must be at least %d bytes, got %d", constants.MinSigningSecretBytes, len(secret)))
	}
	if clk == nil {
		clk = clock.System()
	}
	key := make([]byte, len(secret))
	copy(key, secret)

	return &HMACKey{
		secret: key,
		jwtVerifier: &jwtVerifier{
			key:        key,
			algorithms: []string{jwt.SigningMethodHS256.Alg()},
			issuer:     issuer,
			clock:      clk,
		},
	}, nil
}

// Sign serializes claims as an HS256 JWT.
func (k *HMACKey) Sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(k.secret)
}
