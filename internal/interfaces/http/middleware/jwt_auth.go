// Package middleware contains the gin middleware of the HTTP surface.
package middleware

import (
	"context"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/ssoguard/internal/application/dto"
	"github.com/turtacn/ssoguard/internal/domain/models"
	"github.com/turtacn/ssoguard/internal/domain/service"
	"github.com/turtacn/ssoguard/pkg/constants"
	"github.com/turtacn/ssoguard/pkg/errors"
	"github.com/turtacn/ssoguard/pkg/logger"
	"github.com/turtacn/ssoguard/pkg/utils"
)

// PathMatcher decides which request paths bypass authentication. A pattern ending in
// "/**" matches that prefix and everything below it; other patterns use path.Match.
type PathMatcher struct {
	prefixes []string
	patterns []string
}

// NewPathMatcher compiles the allow-list.
func NewPathMatcher(paths []string) *PathMatcher {
	m := &PathMatcher{}
	for _, p := range paths {
		p = strings.TrimSpace(p)
		switch {
		case p == "":
		case strings.HasSuffix(p, "/**"):
			m.prefixes = append(m.prefixes, strings.TrimSuffix(p, "/**"))
		default:
			m.patterns = append(m.patterns, p)
		}
	}
	return m
}

// Match reports whether p is allow-listed.
func (m *PathMatcher) Match(p string) bool {
	for _, prefix := range m.prefixes {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	for _, pattern := range m.patterns {
		if ok, err := path.Match(pattern, p); err == nil && ok {
			return true
		}
	}
	return false
}

// Authenticate establishes the request principal from a bearer token.
//   - allow-listed paths skip the middleware entirely
//   - no Authorization header, or another scheme: the request continues unauthenticated
//   - an invalid token: 401 and the chain stops
//
// Authenticate 从 Bearer 令牌建立请求主体；令牌无效时返回 401 并中止请求。
func Authenticate(tokens service.TokenService, publicPaths []string, log logger.Logger) gin.HandlerFunc {
	matcher := NewPathMatcher(publicPaths)
	if log == nil {
		log = logger.NewNoopLogger()
	}
	log = log.WithComponent("auth_middleware")

	return func(c *gin.Context) {
		if matcher.Match(c.Request.URL.Path) {
			c.Next()
			return
		}

		token := utils.ExtractBearer(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		principal, err := tokens.ToPrincipal(ctx, token)
		if err != nil {
			if errors.IsTransientError(err) {
				log.Error(ctx, "token check unavailable", err)
				dto.SendError(c, err)
				return
			}
			log.Debug(ctx, "bearer token rejected",
				logger.String("path", c.Request.URL.Path),
				logger.Fingerprint(utils.TokenFingerprint(token)),
			)
			dto.SendError(c, errors.ErrInvalidCredential)
			return
		}

		c.Set(string(constants.ContextKeyPrincipal), principal)
		c.Request = c.Request.WithContext(ContextWithPrincipal(ctx, principal))
		c.Next()
	}
}

// RequireAuthenticated rejects requests that reached it without a principal.
func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := PrincipalFrom(c); !ok {
			dto.SendError(c, errors.ErrUnauthenticated)
			return
		}
		c.Next()
	}
}

// RequireAuthority rejects principals that lack authority with 403.
func RequireAuthority(authority string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			dto.SendError(c, errors.ErrUnauthenticated)
			return
		}
		if !principal.HasAuthority(authority) {
			dto.SendError(c, errors.ErrForbidden(authority))
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the principal attached by Authenticate.
func PrincipalFrom(c *gin.Context) (*models.Principal, bool) {
	v, ok := c.Get(string(constants.ContextKeyPrincipal))
	if !ok {
		return nil, false
	}
	p, ok := v.(*models.Principal)
	return p, ok && p != nil
}

// ContextWithPrincipal attaches principal to ctx.
func ContextWithPrincipal(ctx context.Context, principal *models.Principal) context.Context {
	return context.WithValue(ctx, constants.ContextKeyPrincipal, principal)
}

// PrincipalFromContext returns the principal attached to ctx.
func PrincipalFromContext(ctx context.Context) (*models.Principal, bool) {
	p, ok := ctx.Value(constants.ContextKeyPrincipal).(*models.Principal)
	return p, ok && p != nil
}
