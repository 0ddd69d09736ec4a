// Package service provides application-level services that orchestrate domain services
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/turtacn/ssoguard/internal/application/dto"
	"github.com/turtacn/ssoguard/internal/domain/models"
	domainService "github.com/turtacn/ssoguard/internal/domain/service"
	"github.com/turtacn/ssoguard/pkg/clock"
	"github.com/turtacn/ssoguard/pkg/constants"
	"github.com/turtacn/ssoguard/pkg/errors"
	"github.com/turtacn/ssoguard/pkg/logger"
	"github.com/turtacn/ssoguard/pkg/utils"
)

const rateLimitScopeLogin = "login"

// AuthAppService defines the interface for the authentication application service
type AuthAppService interface {
	// Login checks the password and issues a token
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)

	// Refresh re-issues a still-valid token
	Refresh(ctx context.Context, token string) (*dto.TokenResponse, error)

	// Introspect reports the status of an arbitrary string; it never fails
	Introspect(ctx context.Context, token string) *dto.IntrospectionResponse

	// Logout revokes the token
	Logout(ctx context.Context, token string) error

	// UserInfo describes the authenticated principal
	UserInfo(ctx context.Context, principal *models.Principal) (*dto.UserInfoResponse, error)
}

// AuthAppDeps are the collaborators of the application service. Authenticator and
// RateLimiter may be nil: without an authenticator Login is unsupported, without a
// limiter logins are not throttled.
type AuthAppDeps struct {
	Tokens        domainService.TokenService
	Authenticator domainService.Authenticator
	Audit         domainService.AuditService
	RateLimiter   domainService.RateLimiter
	Metrics       domainService.Metrics
	Tracer        trace.Tracer
	Clock         clock.Clock
	Logger        logger.Logger
}

// authAppServiceImpl is the concrete implementation of AuthAppService
type authAppServiceImpl struct {
	tokens        domainService.TokenService
	authenticator domainService.Authenticator
	audit         domainService.AuditService
	limiter       domainService.RateLimiter
	metrics       domainService.Metrics
	tracer        trace.Tracer
	clock         clock.Clock
	logger        logger.Logger
}

// NewAuthAppService creates a new instance of AuthAppService
func NewAuthAppService(deps AuthAppDeps) AuthAppService {
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Metrics == nil {
		deps.Metrics = domainService.NoopMetrics{}
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("")
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoopLogger()
	}
	return &authAppServiceImpl{
		tokens:        deps.Tokens,
		authenticator: deps.Authenticator,
		audit:         deps.Audit,
		limiter:       deps.RateLimiter,
		metrics:       deps.Metrics,
		tracer:        deps.Tracer,
		clock:         deps.Clock,
		logger:        deps.Logger.WithComponent("auth_app_service"),
	}
}

// Login implements AuthAppService.
func (s *authAppServiceImpl) Login(ctx context.Context, req *dto.LoginRequest) (resp *dto.TokenResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.login", trace.WithAttributes(attribute.String("auth.subject", req.Username)))
	defer func() { endSpan(span, err) }()

	if err := utils.ValidateStruct(req); err != nil {
		return nil, errors.ErrInvalidRequest("username and password are required").WithCause(err)
	}
	if s.authenticator == nil {
		return nil, errors.ErrUnsupportedOperation("password login", constants.AuthModeExternal)
	}

	clientIP := ClientIPFromContext(ctx)
	if s.limiter != nil && !s.limiter.Allow(ctx, clientIP) {
		s.metrics.RecordRateLimitHit(rateLimitScopeLogin)
		s.logger.Warn(ctx, "login rate limit exceeded", logger.String("client_ip", clientIP))
		s.emit(ctx, s.event(ctx, constants.EventTypeLogin, constants.AuditResultFailure).
			WithSubject(req.Username).WithReason("rate_limited"))
		return nil, errors.ErrRateLimitExceeded(rateLimitScopeLogin)
	}

	principal, err := s.authenticator.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		s.logger.Info(ctx, "login rejected", logger.Subject(req.Username), logger.Error(err))
		s.emit(ctx, s.event(ctx, constants.EventTypeAuthFailure, constants.AuditResultFailure).
			WithSubject(req.Username).WithReason("bad_credentials"))
		return nil, err
	}

	token, err := s.tokens.Issue(ctx, principal.Subject(), principal.Authorities())
	if err != nil {
		return nil, err
	}

	s.emit(ctx, s.event(ctx, constants.EventTypeLogin, constants.AuditResultSuccess).
		WithSubject(principal.Subject()))
	s.emit(ctx, s.event(ctx, constants.EventTypeTokenIssue, constants.AuditResultSuccess).
		WithSubject(token.Subject).
		WithToken(utils.TokenFingerprint(token.Value), token.ExpiresAt))
	return dto.NewTokenResponse(token), nil
}

// Refresh implements AuthAppService.
func (s *authAppServiceImpl) Refresh(ctx context.Context, token string) (resp *dto.TokenResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.refresh")
	defer func() { endSpan(span, err) }()

	token = utils.NormalizeTokenBody(token)
	if token == "" {
		return nil, errors.ErrInvalidRequest("token is required")
	}

	refreshed, err := s.tokens.Refresh(ctx, token)
	if err != nil {
		if errors.IsAuthenticationError(err) {
			s.emit(ctx, s.event(ctx, constants.EventTypeTokenRefresh, constants.AuditResultFailure).
				WithToken(utils.TokenFingerprint(token), time.Time{}).
				WithReason(err.Error()))
		}
		return nil, err
	}

	s.emit(ctx, s.event(ctx, constants.EventTypeTokenRefresh, constants.AuditResultSuccess).
		WithSubject(refreshed.Subject).
		WithToken(utils.TokenFingerprint(refreshed.Value), refreshed.ExpiresAt))
	return dto.NewTokenResponse(refreshed), nil
}

// Introspect implements AuthAppService.
func (s *authAppServiceImpl) Introspect(ctx context.Context, token string) *dto.IntrospectionResponse {
	ctx, span := s.tracer.Start(ctx, "auth.introspect")
	defer span.End()

	info := s.tokens.Introspect(ctx, utils.NormalizeTokenBody(token))
	span.SetAttributes(attribute.Bool("auth.active", info.Active))
	return dto.NewIntrospectionResponse(info)
}

// Logout implements AuthAppService.
func (s *authAppServiceImpl) Logout(ctx context.Context, token string) (err error) {
	ctx, span := s.tracer.Start(ctx, "auth.logout")
	defer func() { endSpan(span, err) }()

	token = utils.NormalizeTokenBody(token)
	if err := s.tokens.Revoke(ctx, token); err != nil {
		return err
	}
	s.emit(ctx, s.event(ctx, constants.EventTypeTokenRevoke, constants.AuditResultSuccess).
		WithToken(utils.TokenFingerprint(token), time.Time{}))
	return nil
}

// UserInfo implements AuthAppService.
func (s *authAppServiceImpl) UserInfo(_ context.Context, principal *models.Principal) (*dto.UserInfoResponse, error) {
	if principal == nil {
		return nil, errors.ErrUnauthenticated
	}
	return dto.NewUserInfoResponse(principal), nil
}

// event stamps the trace id of the active span, or the request id when untraced.
func (s *authAppServiceImpl) event(ctx context.Context, t constants.AuditEventType, r constants.AuditEventResult) models.AuditEvent {
	traceID, _ := ctx.Value(constants.ContextKeyRequestID).(string)
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	return models.NewAuditEvent(t, r, s.clock.Now()).WithContextInfo(ClientIPFromContext(ctx), traceID)
}

// emit never fails the request; audit sink errors are logged only.
func (s *authAppServiceImpl) emit(ctx context.Context, event models.AuditEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogEvent(ctx, event); err != nil {
		s.logger.Error(ctx, "failed to record audit event", err, logger.String("event_type", string(event.EventType)))
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// ContextWithClientIP stores the caller address for rate limiting and audit.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, constants.ContextKeyClientIP, ip)
}

// ClientIPFromContext returns the caller address, or "" when unknown.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(constants.ContextKeyClientIP).(string)
	return ip
}
