package crypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"

	"github.com/turtacn/ssoguard/internal/domain/service"
	"github.com/turtacn/ssoguard/pkg/clock"
	"github.com/turtacn/ssoguard/pkg/errors"
)

// ExternalKeyConfig describes how tokens from an external identity provider are checked.
// Exactly one of PublicKeyPEM, PublicKeyFile, JWKSURL or SharedSecret is used, in that
// order.
type ExternalKeyConfig struct {
	Issuer        string
	PublicKeyPEM  string
	PublicKeyFile string
	JWKSURL       string
	SharedSecret  string
	Algorithms    []string
}

// NewExternalVerifier builds a verifier for externally issued tokens. An algorithm list
// that does not match the key type is rejected at startup.
func NewExternalVerifier(cfg ExternalKeyConfig, clk clock.Clock) (service.Verifier, error) {
	if clk == nil {
		clk = clock.System()
	}

	pemData := []byte(cfg.PublicKeyPEM)
	if len(pemData) == 0 && cfg.PublicKeyFile != "" {
		data, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, errors.ErrInvalidConfig("cannot read external public key file").WithCause(err)
		}
		pemData = data
	}

	var (
		key      interface{}
		families []string
	)
	switch {
	case len(pemData) > 0:
		k, fam, err := parsePublicKey(pemData)
		if err != nil {
			return nil, err
		}
		key, families = k, fam
	case cfg.JWKSURL != "":
		for _, alg := range cfg.Algorithms {
			if !contains(asymmetricAlgorithms, alg) {
				return nil, errors.ErrInvalidConfig(fmt.Sprintf("algorithm %s cannot be used with a JWKS", alg))
			}
		}
		return NewJWKSVerifier(cfg.JWKSURL, cfg.Algorithms, cfg.Issuer, clk, nil), nil
	case cfg.SharedSecret != "":
		key, families = []byte(cfg.SharedSecret), []string{"HS256", "HS384", "HS512"}
	default:
		return nil, errors.ErrInvalidConfig("external mode requires a public key or a shared secret")
	}

	algorithms := cfg.Algorithms
	if len(algorithms) == 0 {
		algorithms = families[:1]
	}
	for _, alg := range algorithms {
		if !contains(families, alg) {
			return nil, errors.ErrInvalidConfig(fmt.Sprintf("algorithm %s does not match the configured key (want one of %v)", alg, families))
		}
	}

	return &jwtVerifier{
		key:        key,
		algorithms: algorithms,
		issuer:     cfg.Issuer,
		clock:      clk,
	}, nil
}

func parsePublicKey(data []byte) (interface{}, []string, error) {
	if block, _ := pem.Decode(data); block == nil {
		return nil, nil, errors.ErrInvalidConfig("external public key is not PEM encoded")
	}
	if k, err := jwt.ParseRSAPublicKeyFromPEM(data); err == nil {
		return k, rsaFamily(k), nil
	}
	if k, err := jwt.ParseECPublicKeyFromPEM(data); err == nil {
		return k, ecFamily(k), nil
	}
	if k, err := jwt.ParseEdPublicKeyFromPEM(data); err == nil {
		if _, ok := k.(ed25519.PublicKey); ok {
			return k, []string{"EdDSA"}, nil
		}
	}
	return nil, nil, errors.ErrInvalidConfig("unsupported external public key type")
}

var asymmetricAlgorithms = []string{
	"RS256", "RS384", "RS512", "PS256", "PS384", "PS512", "ES256", "ES384", "ES512", "EdDSA",
}

func rsaFamily(*rsa.PublicKey) []string {
	return []string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512"}
}

func ecFamily(k *ecdsa.PublicKey) []string {
	switch k.Curve.Params().BitSize {
	case 384:
		return []string{"ES384"}
	case 521:
		return []string{"ES512"}
	default:
		return []string{"ES256"}
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
