package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/turtacn/ssoguard/pkg/constants"
)

// TokenFingerprint returns the hex SHA-256 of a raw bearer token. Stores and logs use the
// fingerprint so the credential itself is never persisted.
func TokenFingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ExtractBearer returns the credential of an "Authorization: Bearer <token>" header value,
// or "" when the header is absent or uses another scheme.
func ExtractBearer(authHeader string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !ok || !strings.EqualFold(scheme, constants.AuthorizationScheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

// NormalizeTokenBody trims whitespace and a surrounding pair of double quotes from a
// token submitted as a raw request body.
func NormalizeTokenBody(body string) string {
	body = strings.TrimSpace(body)
	if len(body) >= 2 && body[0] == '"' && body[len(body)-1] == '"' {
		body = body[1 : len(body)-1]
	}
	return strings.TrimSpace(body)
}
