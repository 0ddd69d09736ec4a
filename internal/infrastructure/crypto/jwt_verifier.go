// Package crypto provides the signing and verification key material of the token service.
package crypto

import (
	stderrors "errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/turtacn/ssoguard/internal/domain/models"
	"github.com/turtacn/ssoguard/pkg/clock"
	"github.com/turtacn/ssoguard/pkg/errors"
)

// jwtVerifier parses compact JWTs into a ClaimSet with a fixed key and algorithm list.
type jwtVerifier struct {
	key        interface{}
	algorithms []string
	issuer     string
	clock      clock.Clock
}

func (v *jwtVerifier) Verify(tokenString string) (models.ClaimSet, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.algorithms),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		return nil, classify(err)
	}
	return models.ClaimSet(claims), nil
}

// classify maps parser failures onto the token sentinels.
func classify(err error) error {
	switch {
	case stderrors.Is(err, jwt.ErrTokenMalformed):
		return errors.ErrMalformedToken.WithCause(err)
	case stderrors.Is(err, jwt.ErrTokenSignatureInvalid),
		stderrors.Is(err, jwt.ErrTokenUnverifiable):
		return errors.ErrSignatureInvalid.WithCause(err)
	case stderrors.Is(err, jwt.ErrTokenExpired):
		return errors.ErrTokenExpired.WithCause(err)
	default:
		// required exp missing, wrong issuer, nbf in the future
		return errors.ErrMalformedToken.WithCause(err)
	}
}
