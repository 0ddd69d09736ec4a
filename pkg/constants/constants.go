// Package constants holds the typed constants shared by every ssoguard package.
// 全局常量：令牌类型、认证模式、错误码、审计事件与上下文键。
package constants

import "time"

// ServiceName names the service in logs, traces and metrics.
const ServiceName = "ssoguard"

// TokenType represents the type of authentication token
type TokenType string

// TokenTypeBearer is the token type returned to clients and expected in the Authorization header
const TokenTypeBearer TokenType = "Bearer"

// AuthorizationScheme is the HTTP Authorization scheme accepted by the middleware,
// compared case-insensitively.
const AuthorizationScheme = string(TokenTypeBearer)

// AuthMode selects where tokens come from and how their claims are interpreted.
type AuthMode string

const (
	// AuthModeLocal issues and verifies HMAC-signed tokens in-process.
	AuthModeLocal AuthMode = "local"

	// AuthModeExternal verifies tokens minted by an external identity provider.
	AuthModeExternal AuthMode = "external"
)

const (
	// AuthorityPrefixRole is prepended to realm and resource roles of external tokens
	AuthorityPrefixRole = "ROLE_"

	// AuthorityPrefixScope is prepended to each entry of the external scope claim
	AuthorityPrefixScope = "SCOPE_"
)

const (
	// DefaultExpirationSeconds is the default lifetime for locally issued tokens (1 hour)
	DefaultExpirationSeconds = 3600

	// MinSigningSecretBytes is the minimum length of the HMAC signing secret
	MinSigningSecretBytes = 32

	// DefaultIssuer is used when no issuer is configured
	DefaultIssuer = "ssoguard"

	// DefaultSweepInterval is how often expired revocation records are purged
	DefaultSweepInterval = 10 * time.Minute
)

// RevocationBackend names a Revocation Store implementation
type RevocationBackend string

const (
	// RevocationBackendMemory keeps revocations in process memory
	RevocationBackendMemory RevocationBackend = "memory"

	// RevocationBackendRedis keeps revocations in Redis with a TTL
	RevocationBackendRedis RevocationBackend = "redis"

	// RevocationBackendDatabase keeps revocations in a SQL table
	RevocationBackendDatabase RevocationBackend = "database"
)

const (
	// CacheKeyPrefixRevokedToken is the Redis key prefix for revocation records
	CacheKeyPrefixRevokedToken = "ssoguard:revoked:"

	// TableNameRevokedTokens is the SQL table holding revocation records
	TableNameRevokedTokens = "revoked_tokens"

	// TableNameAuditEvents is the SQL table holding audit events for the database sink
	TableNameAuditEvents = "audit_events"
)

// ErrorCode represents standard OAuth 2.0 error codes
type ErrorCode string

const (
	// ErrCodeInvalidRequest indicates the request is missing required parameters
	ErrCodeInvalidRequest ErrorCode = "invalid_request"

	// ErrCodeInvalidToken indicates the presented bearer token cannot be trusted
	ErrCodeInvalidToken ErrorCode = "invalid_token"

	// ErrCodeInvalidGrant indicates the presented credentials are invalid
	ErrCodeInvalidGrant ErrorCode = "invalid_grant"

	// ErrCodeUnsupportedOperation indicates the operation is not available in the current mode
	ErrCodeUnsupportedOperation ErrorCode = "unsupported_operation"

	// ErrCodeInsufficientScope indicates the principal lacks a required authority
	ErrCodeInsufficientScope ErrorCode = "insufficient_scope"

	// ErrCodeRateLimited indicates the caller has been throttled
	ErrCodeRateLimited ErrorCode = "rate_limited"

	// ErrCodeNotFound indicates the resource does not exist
	ErrCodeNotFound ErrorCode = "not_found"

	// ErrCodeServerError indicates an internal server error occurred
	ErrCodeServerError ErrorCode = "server_error"

	// ErrCodeTemporarilyUnavailable indicates the service is temporarily unavailable
	ErrCodeTemporarilyUnavailable ErrorCode = "temporarily_unavailable"
)

// AuditEventType represents different types of auditable events
type AuditEventType string

const (
	// EventTypeLogin represents a password login
	EventTypeLogin AuditEventType = "login"

	// EventTypeTokenIssue represents token issuance events
	EventTypeTokenIssue AuditEventType = "token_issue"

	// EventTypeTokenRefresh represents token refresh events
	EventTypeTokenRefresh AuditEventType = "token_refresh"

	// EventTypeTokenRevoke represents token revocation events
	EventTypeTokenRevoke AuditEventType = "token_revoke"

	// EventTypeAuthFailure represents authentication failure events
	EventTypeAuthFailure AuditEventType = "auth_failure"
)

// AuditEventResult represents the result of an audited event
type AuditEventResult string

const (
	// AuditResultSuccess indicates the event completed successfully
	AuditResultSuccess AuditEventResult = "success"

	// AuditResultFailure indicates the event failed
	AuditResultFailure AuditEventResult = "failure"
)

const (
	// ClaimKeySubject is the standard "sub" claim
	ClaimKeySubject = "sub"

	// ClaimKeyRoles is the flat role list embedded in local tokens
	ClaimKeyRoles = "roles"

	// ClaimKeyScope is the space-delimited scope claim of external tokens
	ClaimKeyScope = "scope"

	// ClaimKeyRealmAccess is the realm-level role container of external tokens
	ClaimKeyRealmAccess = "realm_access"

	// ClaimKeyResourceAccess is the per-resource role container of external tokens
	ClaimKeyResourceAccess = "resource_access"

	// ClaimKeyNestedRoles is the role list inside realm_access and resource_access entries
	ClaimKeyNestedRoles = "roles"
)

// DefaultPrincipalAttribute is the claim read for the principal name when none is configured
const DefaultPrincipalAttribute = ClaimKeySubject

const (
	// DefaultServicePort is the default HTTP service port
	DefaultServicePort = 8080

	// DefaultGRPCPort is the default gRPC service port
	DefaultGRPCPort = 50051

	// DefaultReadinessCheckPath is the readiness check endpoint path
	DefaultReadinessCheckPath = "/health/ready"

	// DefaultLivenessCheckPath is the liveness check endpoint path
	DefaultLivenessCheckPath = "/health/live"

	// DefaultMetricsPath is the Prometheus scrape path
	DefaultMetricsPath = "/metrics"

	// DefaultShutdownTimeout is the graceful shutdown timeout (30 seconds)
	DefaultShutdownTimeout = 30 * time.Second
)

// LogLevel represents the severity level of log messages
type LogLevel string

const (
	// LogLevelDebug is the most verbose logging level
	LogLevelDebug LogLevel = "debug"

	// LogLevelInfo is the standard informational logging level
	LogLevelInfo LogLevel = "info"

	// LogLevelWarn indicates potential issues
	LogLevelWarn LogLevel = "warn"

	// LogLevelError indicates errors that need attention
	LogLevelError LogLevel = "error"
)

// ContextKey represents keys used in context.Context
type ContextKey string

const (
	// ContextKeyRequestID is the key for request ID in context
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyPrincipal is the key for the authenticated principal in context
	ContextKeyPrincipal ContextKey = "principal"

	// ContextKeyClientIP is the key for client IP address in context
	ContextKeyClientIP ContextKey = "client_ip"
)

// HeaderRequestID carries the request identifier across hops
const HeaderRequestID = "X-Request-ID"
