// Package bootstrap assembles the token core from configuration. The server and the
// admin CLI build the same objects through it.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/turtacn/ssoguard/internal/config"
	"github.com/turtacn/ssoguard/internal/domain/service"
	"github.com/turtacn/ssoguard/internal/infrastructure/audit"
	"github.com/turtacn/ssoguard/internal/infrastructure/consumers"
	"github.com/turtacn/ssoguard/internal/infrastructure/crypto"
	"github.com/turtacn/ssoguard/internal/infrastructure/identity"
	"github.com/turtacn/ssoguard/internal/infrastructure/persistence"
	"github.com/turtacn/ssoguard/internal/infrastructure/ratelimit"
	"github.com/turtacn/ssoguard/pkg/clock"
	"github.com/turtacn/ssoguard/pkg/constants"
	"github.com/turtacn/ssoguard/pkg/logger"
)

// Options tune what NewCore builds beyond the token service.
type Options struct {
	// Fanout wires the Kafka revocation publisher and consumer when the config asks for it.
	Fanout  bool
	Clock   clock.Clock
	Metrics service.Metrics
	Logger  logger.Logger
}

// Core is the assembled token core. Store is the store the token service writes to; it
// wraps Backends.Store when fan-out is on.
type Core struct {
	Config   *config.Config
	Clock    clock.Clock
	Backends *persistence.Backends
	Store    service.RevocationStore
	Tokens   service.TokenService
	Consumer *consumers.RevocationConsumer
	Instance string

	closers []func() error
	log     logger.Logger
}

// NewCore opens the revocation backend and builds the token service. With SSO disabled
// Tokens stays nil.
func NewCore(ctx context.Context, cfg *config.Config, opts Options) (*Core, error) {
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetGlobalLogger()
	}
	log := opts.Logger.WithComponent("bootstrap")

	backends, err := persistence.Open(ctx, cfg, opts.Clock, opts.Logger)
	if err != nil {
		return nil, err
	}

	c := &Core{
		Config:   cfg,
		Clock:    opts.Clock,
		Backends: backends,
		Store:    backends.Store,
		Instance: instanceName(),
		log:      log,
	}

	if opts.Fanout && cfg.Revocation.Fanout {
		writer := consumers.NewRevocationWriter(cfg.Kafka)
		fanout := consumers.NewFanoutStore(backends.Store, writer, c.Instance, opts.Logger)
		c.closers = append(c.closers, fanout.Close)
		c.Store = fanout
		c.Consumer = consumers.NewRevocationConsumer(
			consumers.NewRevocationReader(cfg.Kafka, c.Instance), backends.Store, c.Instance, opts.Clock, opts.Logger)
		log.Info(ctx, "revocation fan-out enabled",
			logger.String("topic", cfg.Kafka.RevocationTopic),
			logger.String("instance", c.Instance),
		)
	}

	if !cfg.SSO.Enabled {
		log.Info(ctx, "sso disabled, token service not built")
		return c, nil
	}
	c.Tokens, err = NewTokenService(ctx, cfg, c.Store, opts.Clock, opts.Metrics, opts.Logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Close releases everything NewCore opened.
func (c *Core) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.log.Warn(context.Background(), "close failed", logger.Error(err))
		}
	}
	c.Backends.Close()
}

// NewTokenService builds the signer, verifier and claim source for the configured mode.
// Key material that cannot be built is a startup error.
func NewTokenService(ctx context.Context, cfg *config.Config, store service.RevocationStore, clk clock.Clock, metrics service.Metrics, log logger.Logger) (service.TokenService, error) {
	tsCfg := service.TokenServiceConfig{
		Mode:                cfg.SSO.AuthMode(),
		Issuer:              cfg.SSO.JWT.Issuer,
		TTL:                 cfg.SSO.JWT.TTL(),
		RotateRefreshTokens: cfg.SSO.JWT.RotateRefreshTokens,
	}
	deps := service.TokenServiceDeps{
		Store:   store,
		Clock:   clk,
		Metrics: metrics,
		Logger:  log,
	}

	switch cfg.SSO.AuthMode() {
	case constants.AuthModeLocal:
		secret, err := crypto.LoadSigningSecret(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		key, err := crypto.NewHMACKey(secret, cfg.SSO.JWT.Issuer, clk)
		if err != nil {
			return nil, err
		}
		deps.Signer, deps.Verifier = key, key
		deps.Claims = service.NewLocalClaimSource()
	case constants.AuthModeExternal:
		verifier, err := crypto.NewExternalVerifier(crypto.ExternalKeyConfig{
			Issuer:        cfg.SSO.External.Issuer,
			PublicKeyPEM:  cfg.SSO.External.PublicKeyPEM,
			PublicKeyFile: cfg.SSO.External.PublicKeyFile,
			JWKSURL:       cfg.SSO.External.JWKSURL,
			SharedSecret:  cfg.SSO.External.SharedSecret,
			Algorithms:    cfg.SSO.External.Algorithms,
		}, clk)
		if err != nil {
			return nil, err
		}
		deps.Verifier = verifier
		deps.Claims = service.NewExternalClaimSource(cfg.SSO.External.PrincipalAttribute, cfg.SSO.External.ResourceID)
		tsCfg.Issuer = cfg.SSO.External.Issuer
	default:
		return nil, fmt.Errorf("unknown sso mode %q", cfg.SSO.Mode)
	}

	return service.NewTokenService(tsCfg, deps)
}

// NewAuthenticator returns the password check for local mode, nil in external mode.
func NewAuthenticator(cfg *config.Config) (service.Authenticator, error) {
	if cfg.SSO.AuthMode() != constants.AuthModeLocal {
		return nil, nil
	}
	dir, err := identity.NewUserDirectory(cfg.Users, bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return dir, nil
}

// NewRateLimiter returns the login limiter, or nil when rate limiting is off.
func NewRateLimiter(cfg *config.Config, backends *persistence.Backends, clk clock.Clock, log logger.Logger) service.RateLimiter {
	rl := cfg.RateLimit
	if !rl.Enabled {
		return nil
	}
	if rl.Backend == "redis" && backends.Redis != nil {
		return ratelimit.NewRedisRateLimiter(backends.Redis.GetClient(), rl.LoginPerMinute, rl.Burst, clk, log)
	}
	return ratelimit.NewLocalLimiter(rl.LoginPerMinute, rl.Burst)
}

// NewAuditService returns the configured sink and a function that flushes it.
func NewAuditService(ctx context.Context, cfg *config.Config, backends *persistence.Backends, log logger.Logger) (service.AuditService, func() error, error) {
	noClose := func() error { return nil }
	switch cfg.Audit.Sink {
	case "log":
		return audit.NewLogAuditor(log), noClose, nil
	case "kafka":
		p := audit.NewKafkaProducer(cfg.Kafka, cfg.Audit.SigningKey, log)
		return p, p.Close, nil
	case "database":
		svc := audit.NewGormAuditService(backends.DB.DB())
		if cfg.Database.AutoMigrate {
			if err := svc.Migrate(ctx); err != nil {
				return nil, nil, fmt.Errorf("migrate %s: %w", constants.TableNameAuditEvents, err)
			}
		}
		return svc, noClose, nil
	default:
		return audit.NoopAuditor{}, noClose, nil
	}
}

func instanceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "ssoguard"
	}
	return host + "-" + uuid.NewString()[:8]
}
