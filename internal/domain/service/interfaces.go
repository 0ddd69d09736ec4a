package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/turtacn/ssoguard/internal/domain/models"
)

// RevocationStore tracks revoked token identifiers. Implementations must be safe for
// concurrent readers and writers, and a Revoke that returns before IsRevoked is called
// must be observed by that call.
// RevocationStore 记录已撤销的令牌标识。实现必须支持并发读写，
// 且在 IsRevoked 调用前完成的 Revoke 必须对该调用可见。
//
//go:generate mockery --name RevocationStore --output mocks --outpkg mocks
type RevocationStore interface {
	// Revoke records the identifier. Revoking an identifier twice has the same effect as once.
	// Revoke 记录令牌标识，重复撤销与撤销一次效果相同。
	Revoke(ctx context.Context, record models.RevocationRecord) error

	// IsRevoked reports whether the identifier has been revoked.
	// IsRevoked 检查令牌标识是否已被撤销。
	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// Name identifies the backend in logs and metrics.
	Name() string
}

// RevocationSweeper is implemented by stores that do not expire records on their own.
// RevocationSweeper 由不会自动过期记录的存储实现。
type RevocationSweeper interface {
	// Sweep removes records whose token had naturally expired at now and returns how many were removed.
	// Sweep 删除在 now 时刻已自然过期的记录，并返回删除数量。
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

// Signer produces compact signed tokens.
type Signer interface {
	Sign(claims jwt.Claims) (string, error)
}

// Verifier checks a compact token's signature, structure and expiry and returns its
// claims. Failures are one of the token sentinels in pkg/errors.
// Verifier 校验令牌的签名、结构与过期时间并返回声明，失败时返回 pkg/errors 中的令牌错误。
type Verifier interface {
	Verify(tokenString string) (models.ClaimSet, error)
}

// ClaimSource interprets a verified claim set. There is one variant for locally issued
// tokens and one for tokens minted by an external identity provider.
// ClaimSource 解释已校验的声明集，本地签发与外部身份提供方各有一种实现。
type ClaimSource interface {
	// PrincipalName reads the principal name, or "" when the claim is absent.
	PrincipalName(claims models.ClaimSet) string

	// Authorities extracts the normalized authority set. It never fails; a missing or
	// wrong-shaped claim contributes nothing.
	Authorities(claims models.ClaimSet) models.AuthoritySet
}

// TokenService owns the bearer token lifecycle.
// TokenService 负责 Bearer 令牌的完整生命周期。
//
//go:generate mockery --name TokenService --output mocks --outpkg mocks
type TokenService interface {
	// Issue mints a token for principalName embedding authorities as the roles claim.
	// Issue 为主体签发令牌，并将权限写入 roles 声明。
	Issue(ctx context.Context, principalName string, authorities models.AuthoritySet) (*models.Token, error)

	// Validate reports whether the token verifies, has not expired and has not been revoked.
	// It never returns an error.
	// Validate 检查令牌签名、过期与撤销状态，从不返回错误。
	Validate(ctx context.Context, tokenString string) bool

	// Refresh re-issues a token for the subject and roles of a still-valid token.
	// Refresh 基于仍然有效的令牌重新签发新令牌。
	Refresh(ctx context.Context, tokenString string) (*models.Token, error)

	// Introspect returns the status of an arbitrary string. It never returns an error.
	// Introspect 返回任意字符串的令牌状态，从不返回错误。
	Introspect(ctx context.Context, tokenString string) models.Introspection

	// Revoke records the token in the revocation store.
	// Revoke 将令牌记录到撤销存储中。
	Revoke(ctx context.Context, tokenString string) error

	// ToPrincipal validates the token and extracts its principal.
	// ToPrincipal 校验令牌并提取主体。
	ToPrincipal(ctx context.Context, tokenString string) (*models.Principal, error)
}

// Authenticator checks a username and password and yields the verified principal.
// Authenticator 校验用户名和密码并返回已认证的主体。
//
//go:generate mockery --name Authenticator --output mocks --outpkg mocks
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*models.Principal, error)
}

// AuditService defines the interface for logging security-sensitive audit events.
// AuditService 定义了用于记录安全敏感审计事件的接口。
//
//go:generate mockery --name AuditService --output mocks --outpkg mocks
type AuditService interface {
	// LogEvent records an audit event.
	// LogEvent 记录审计事件。
	LogEvent(ctx context.Context, event models.AuditEvent) error
}

// RateLimiter throttles a caller identified by key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}
