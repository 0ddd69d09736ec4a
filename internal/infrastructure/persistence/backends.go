// Package persistence opens the configured revocation backend and its shared connections.
package persistence

import (
	"context"
	"fmt"

	"github.com/turtacn/ssoguard/internal/config"
	"github.com/turtacn/ssoguard/internal/domain/service"
	"github.com/turtacn/ssoguard/internal/infrastructure/persistence/memory"
	"github.com/turtacn/ssoguard/internal/infrastructure/persistence/postgres"
	redisstore "github.com/turtacn/ssoguard/internal/infrastructure/persistence/redis"
	"github.com/turtacn/ssoguard/pkg/clock"
	"github.com/turtacn/ssoguard/pkg/constants"
	"github.com/turtacn/ssoguard/pkg/logger"
)

// Backends holds the revocation store and the connections opened for it. Redis and DB are
// nil unless some configured component needs them.
type Backends struct {
	Store service.RevocationStore
	Redis *redisstore.RedisConnection
	DB    *postgres.DBConnection
}

// Open builds the revocation store named by cfg.Revocation.Backend. Redis is also opened
// for the redis rate limiter, and the database for the database audit sink.
func Open(ctx context.Context, cfg *config.Config, clk clock.Clock, log logger.Logger) (*Backends, error) {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	backend := constants.RevocationBackend(cfg.Revocation.Backend)
	b := &Backends{}

	needRedis := backend == constants.RevocationBackendRedis ||
		(cfg.RateLimit.Enabled && cfg.RateLimit.Backend == "redis")
	if needRedis {
		conn := redisstore.NewRedisConnection(cfg.Redis, log)
		if err := conn.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.Redis = conn
	}

	needDB := backend == constants.RevocationBackendDatabase || cfg.Audit.Sink == "database"
	if needDB {
		conn, err := postgres.NewDBConnection(ctx, cfg.Database, log)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect database: %w", err)
		}
		b.DB = conn
	}

	switch backend {
	case constants.RevocationBackendMemory, "":
		b.Store = memory.NewRevocationStore(clk, cfg.Revocation.SweepInterval)
	case constants.RevocationBackendRedis:
		b.Store = redisstore.NewRevocationStore(b.Redis.GetClient(), clk)
	case constants.RevocationBackendDatabase:
		store := postgres.NewRevocationStore(b.DB, log)
		if cfg.Database.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				b.Close()
				return nil, fmt.Errorf("migrate revoked_tokens: %w", err)
			}
		}
		b.Store = store
	default:
		b.Close()
		return nil, fmt.Errorf("unknown revocation backend %q", backend)
	}

	log.Info(ctx, "revocation store ready", logger.String("backend", b.Store.Name()))
	return b, nil
}

// HealthCheck probes whichever connections are open.
func (b *Backends) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	out := map[string]interface{}{"revocation_backend": b.Store.Name()}
	if b.Redis != nil {
		h, err := b.Redis.HealthCheck(ctx)
		out["redis"] = h
		if err != nil {
			return out, err
		}
	}
	if b.DB != nil {
		h, err := b.DB.HealthCheck(ctx)
		out["database"] = h
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// Close releases the open connections.
func (b *Backends) Close() {
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
	if b.DB != nil {
		_ = b.DB.Close()
	}
}
