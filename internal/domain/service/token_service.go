package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/turtacn/ssoguard/internal/domain/models"
	"github.com/turtacn/ssoguard/pkg/clock"
	"github.com/turtacn/ssoguard/pkg/constants"
	"github.com/turtacn/ssoguard/pkg/errors"
	"github.com/turtacn/ssoguard/pkg/logger"
	"github.com/turtacn/ssoguard/pkg/utils"
)

const (
	grantTypePassword = "password"
	grantTypeRefresh  = "refresh"

	revokeSourceLogout   = "logout"
	revokeSourceRotation = "rotation"
)

var _ TokenService = (*tokenService)(nil)

// TokenServiceConfig holds the lifecycle settings of a TokenService.
type TokenServiceConfig struct {
	Mode                constants.AuthMode
	Issuer              string
	TTL                 time.Duration
	RotateRefreshTokens bool
}

// TokenServiceDeps are the collaborators of a TokenService. Signer is required in local
// mode only. Clock, Metrics and Logger fall back to the wall clock and no-op
// implementations.
type TokenServiceDeps struct {
	Signer   Signer
	Verifier Verifier
	Claims   ClaimSource
	Store    RevocationStore
	Clock    clock.Clock
	Metrics  Metrics
	Logger   logger.Logger
}

type tokenService struct {
	cfg      TokenServiceConfig
	signer   Signer
	verifier Verifier
	claims   ClaimSource
	store    RevocationStore
	clock    clock.Clock
	metrics  Metrics
	log      logger.Logger
}

// NewTokenService builds a TokenService. Each instance owns its key material through the
// given Signer and Verifier; nothing is shared between instances.
func NewTokenService(cfg TokenServiceConfig, deps TokenServiceDeps) (TokenService, error) {
	if cfg.Mode == "" {
		cfg.Mode = constants.AuthModeLocal
	}
	if cfg.Issuer == "" {
		cfg.Issuer = constants.DefaultIssuer
	}
	if cfg.TTL < time.Second {
		return nil, errors.ErrInvalidConfig(fmt.Sprintf("token ttl must be at least 1s, got %s", cfg.TTL))
	}
	if deps.Verifier == nil || deps.Claims == nil || deps.Store == nil {
		return nil, errors.ErrInvalidConfig("token service requires a verifier, a claim source and a revocation store")
	}
	if cfg.Mode == constants.AuthModeLocal && deps.Signer == nil {
		return nil, errors.ErrInvalidConfig("local mode requires a signer")
	}
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Metrics == nil {
		deps.Metrics = NoopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoopLogger()
	}

	return &tokenService{
		cfg:      cfg,
		signer:   deps.Signer,
		verifier: deps.Verifier,
		claims:   deps.Claims,
		store:    deps.Store,
		clock:    deps.Clock,
		metrics:  deps.Metrics,
		log:      deps.Logger.WithComponent("token_service"),
	}, nil
}

// Issue mints a new token for principalName.
func (s *tokenService) Issue(ctx context.Context, principalName string, authorities models.AuthoritySet) (*models.Token, error) {
	start := s.clock.Now()
	if s.cfg.Mode != constants.AuthModeLocal {
		return nil, errors.ErrUnsupportedOperation("issue", s.cfg.Mode)
	}
	if strings.TrimSpace(principalName) == "" {
		return nil, errors.ErrInvalidRequest("principal name is required")
	}

	token, err := s.mint(principalName, authorities.Slice(), time.Time{})
	s.metrics.RecordTokenIssue(grantTypePassword, err == nil, s.clock.Now().Sub(start))
	if err != nil {
		s.log.Error(ctx, "failed to sign token", err, logger.Subject(principalName))
		return nil, err
	}

	s.log.Debug(ctx, "token issued",
		logger.Subject(token.Subject),
		logger.String("jti", token.ID),
		logger.Time("expires_at", token.ExpiresAt),
	)
	return token, nil
}

// Validate never returns an error; every failure is false.
func (s *tokenService) Validate(ctx context.Context, tokenString string) bool {
	_, err := s.verify(ctx, tokenString)
	return err == nil
}

// Refresh re-issues a still-valid token with the same subject and roles. When rotation is
// enabled the presented token is revoked once the new one has been minted.
func (s *tokenService) Refresh(ctx context.Context, tokenString string) (*models.Token, error) {
	start := s.clock.Now()
	if s.cfg.Mode != constants.AuthModeLocal {
		return nil, errors.ErrUnsupportedOperation("refresh", s.cfg.Mode)
	}

	tokenString = strings.TrimSpace(tokenString)
	claims, err := s.verify(ctx, tokenString)
	if err != nil {
		s.metrics.RecordTokenIssue(grantTypeRefresh, false, s.clock.Now().Sub(start))
		return nil, s.credentialError(err)
	}
	subject := s.claims.PrincipalName(claims)
	if subject == "" {
		s.metrics.RecordTokenIssue(grantTypeRefresh, false, s.clock.Now().Sub(start))
		return nil, errors.InvalidCredential(errors.ErrMalformedToken)
	}

	// same-second refresh must still move the expiry forward
	token, err := s.mint(subject, s.claims.Authorities(claims).Slice(), expiryOf(claims).Add(time.Second))
	s.metrics.RecordTokenIssue(grantTypeRefresh, err == nil, s.clock.Now().Sub(start))
	if err != nil {
		s.log.Error(ctx, "failed to sign refreshed token", err, logger.Subject(subject))
		return nil, err
	}

	if s.cfg.RotateRefreshTokens {
		if err := s.revoke(ctx, tokenString, expiryOf(claims), revokeSourceRotation); err != nil {
			return nil, err
		}
	}

	s.log.Debug(ctx, "token refreshed",
		logger.Subject(subject),
		logger.String("jti", token.ID),
		logger.Bool("rotated", s.cfg.RotateRefreshTokens),
	)
	return token, nil
}

// Introspect never returns an error; any failure yields the inactive result.
func (s *tokenService) Introspect(ctx context.Context, tokenString string) models.Introspection {
	claims, err := s.verify(ctx, tokenString)
	if err != nil {
		return models.InactiveIntrospection()
	}
	subject := s.claims.PrincipalName(claims)
	if subject == "" {
		return models.InactiveIntrospection()
	}
	return models.ActiveIntrospection(subject, expiryOf(claims))
}

// Revoke records the token fingerprint. Any non-empty string can be revoked; the record
// is retained until the token's natural expiry when it can be read, otherwise for one TTL.
func (s *tokenService) Revoke(ctx context.Context, tokenString string) error {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return errors.ErrInvalidRequest("token is required")
	}
	return s.revoke(ctx, tokenString, s.naturalExpiry(tokenString), revokeSourceLogout)
}

// ToPrincipal validates the token and builds the principal from its claims.
func (s *tokenService) ToPrincipal(ctx context.Context, tokenString string) (*models.Principal, error) {
	claims, err := s.verify(ctx, tokenString)
	if err != nil {
		return nil, s.credentialError(err)
	}
	subject := s.claims.PrincipalName(claims)
	if subject == "" {
		return nil, errors.InvalidCredential(errors.ErrMalformedToken)
	}
	return models.NewPrincipal(subject, s.claims.Authorities(claims)), nil
}

// ================================================================================
// Internals
// ================================================================================

// mint signs a token for subject. The expiry is never earlier than minExpiry.
func (s *tokenService) mint(subject string, roles []string, minExpiry time.Time) (*models.Token, error) {
	now := s.clock.Now().Truncate(time.Second)
	exp := now.Add(s.cfg.TTL).Truncate(time.Second)
	if exp.Before(minExpiry) {
		exp = minExpiry.Truncate(time.Second)
	}
	claims := models.LocalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Roles: roles,
	}

	value, err := s.signer.Sign(claims)
	if err != nil {
		return nil, errors.ErrServerError("failed to sign token").WithCause(err)
	}
	return &models.Token{
		Value:     value,
		ID:        claims.ID,
		Subject:   subject,
		Issuer:    s.cfg.Issuer,
		IssuedAt:  now,
		ExpiresAt: exp,
		Roles:     roles,
	}, nil
}

// verify runs signature, structure, expiry and revocation checks in that order.
func (s *tokenService) verify(ctx context.Context, tokenString string) (models.ClaimSet, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		s.metrics.RecordTokenVerify(false, failureReason(errors.ErrMalformedToken))
		return nil, errors.ErrMalformedToken
	}

	claims, err := s.verifier.Verify(tokenString)
	if err == nil {
		err = s.checkRevoked(ctx, tokenString)
	}
	if err != nil {
		reason := failureReason(err)
		s.metrics.RecordTokenVerify(false, reason)
		s.log.Debug(ctx, "token rejected",
			logger.String("reason", reason),
			logger.Fingerprint(utils.TokenFingerprint(tokenString)),
		)
		return nil, err
	}

	s.metrics.RecordTokenVerify(true, "")
	return claims, nil
}

func (s *tokenService) checkRevoked(ctx context.Context, tokenString string) error {
	start := time.Now()
	revoked, err := s.store.IsRevoked(ctx, utils.TokenFingerprint(tokenString))
	s.metrics.RecordRevocationLookup(s.store.Name(), time.Since(start), err)
	if err != nil {
		s.log.Error(ctx, "revocation lookup failed", err, logger.String("backend", s.store.Name()))
		if errors.IsTransientError(err) {
			return err
		}
		return errors.ErrStoreUnavailable(s.store.Name(), err)
	}
	if revoked {
		return errors.ErrTokenRevoked
	}
	return nil
}

func (s *tokenService) revoke(ctx context.Context, tokenString string, expiresAt time.Time, source string) error {
	fingerprint := utils.TokenFingerprint(tokenString)
	record := models.RevocationRecord{
		TokenID:   fingerprint,
		RevokedAt: s.clock.Now(),
		ExpiresAt: expiresAt,
	}
	if err := s.store.Revoke(ctx, record); err != nil {
		s.log.Error(ctx, "failed to revoke token", err,
			logger.String("backend", s.store.Name()),
			logger.Fingerprint(fingerprint),
		)
		if errors.IsCBCError(err) {
			return err
		}
		return errors.ErrStoreUnavailable(s.store.Name(), err)
	}

	s.metrics.RecordTokenRevoke(source)
	s.log.Info(ctx, "token revoked",
		logger.Fingerprint(fingerprint),
		logger.String("source", source),
		logger.Time("retain_until", expiresAt),
	)
	return nil
}

// naturalExpiry reads exp without verifying the signature. It is only used to bound how
// long a revocation record is kept.
func (s *tokenService) naturalExpiry(tokenString string) time.Time {
	fallback := s.clock.Now().Add(s.cfg.TTL)
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return fallback
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fallback
	}
	return exp.Time
}

// credentialError collapses token failures into InvalidCredential. Store outages are
// passed through so they surface as 503 rather than 401.
func (s *tokenService) credentialError(err error) error {
	if errors.IsTransientError(err) {
		return err
	}
	return errors.InvalidCredential(err)
}

func expiryOf(claims models.ClaimSet) time.Time {
	exp, err := jwt.MapClaims(claims).GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, errors.ErrMalformedToken):
		return "malformed"
	case errors.Is(err, errors.ErrSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, errors.ErrTokenExpired):
		return "expired"
	case errors.Is(err, errors.ErrTokenRevoked):
		return "revoked"
	case errors.IsTransientError(err):
		return "store_unavailable"
	default:
		return "invalid"
	}
}
