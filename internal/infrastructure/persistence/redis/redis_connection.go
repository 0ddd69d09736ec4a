// Package redis provides the Redis connection and the Redis-backed revocation store.
// It supports standalone, cluster, and sentinel deployment modes with connection pooling.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/ssoguard/internal/config"
	"github.com/turtacn/ssoguard/pkg/logger"
)

// ConnectionMode defines Redis deployment mode
type ConnectionMode string

const (
	// ModeStandalone represents single Redis instance
	ModeStandalone ConnectionMode = "standalone"
	// ModeCluster represents Redis cluster mode
	ModeCluster ConnectionMode = "cluster"
	// ModeSentinel represents Redis sentinel mode for high availability
	ModeSentinel ConnectionMode = "sentinel"
)

// RedisConnection manages Redis client lifecycle and health monitoring.
type RedisConnection struct {
	config config.RedisConfig
	client redis.UniversalClient
	logger logger.Logger
}

// NewRedisConnection creates a new Redis connection manager instance.
func NewRedisConnection(cfg config.RedisConfig, log logger.Logger) *RedisConnection {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &RedisConnection{
		config: cfg,
		logger: log.WithComponent("redis"),
	}
}

// NewRedisConnectionFromClient wraps an existing client, e.g. one pointed at miniredis.
func NewRedisConnectionFromClient(client redis.UniversalClient, log logger.Logger) *RedisConnection {
	rc := NewRedisConnection(config.RedisConfig{Mode: string(ModeStandalone)}, log)
	rc.client = client
	return rc
}

// Connect establishes the Redis connection based on the configured mode and pings it.
func (rc *RedisConnection) Connect(ctx context.Context) error {
	if rc.client != nil {
		rc.logger.Warn(ctx, "Redis connection already initialized")
		return nil
	}

	rc.setDefaults()

	var client redis.UniversalClient
	switch ConnectionMode(rc.config.Mode) {
	case ModeStandalone:
		client = redis.NewClient(rc.standaloneOptions())
	case ModeCluster:
		client = redis.NewClusterClient(rc.clusterOptions())
	case ModeSentinel:
		if rc.config.SentinelMaster == "" {
			return fmt.Errorf("sentinel master name not configured")
		}
		client = redis.NewFailoverClient(rc.sentinelOptions())
	default:
		return fmt.Errorf("unsupported Redis mode: %s", rc.config.Mode)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		rc.logger.Error(ctx, "Redis ping failed", err,
			logger.String("mode", rc.config.Mode),
			logger.Strings("addresses", rc.config.Addresses),
		)
		_ = client.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	rc.client = client
	rc.logger.Info(ctx, "Redis connection established successfully",
		logger.String("mode", rc.config.Mode),
		logger.Int("pool_size", rc.config.PoolSize),
	)
	return nil
}

func (rc *RedisConnection) standaloneOptions() *redis.Options {
	return &redis.Options{
		Addr:         rc.config.Addresses[0],
		Password:     rc.config.Password,
		DB:           rc.config.DB,
		PoolSize:     rc.config.PoolSize,
		MinIdleConns: rc.config.MinIdleConns,
		DialTimeout:  rc.config.DialTimeout,
		ReadTimeout:  rc.config.ReadTimeout,
		WriteTimeout: rc.config.WriteTimeout,
		TLSConfig:    rc.tlsConfig(),
	}
}

func (rc *RedisConnection) clusterOptions() *redis.ClusterOptions {
	return &redis.ClusterOptions{
		Addrs:        rc.config.Addresses,
		Password:     rc.config.Password,
		PoolSize:     rc.config.PoolSize,
		MinIdleConns: rc.config.MinIdleConns,
		DialTimeout:  rc.config.DialTimeout,
		ReadTimeout:  rc.config.ReadTimeout,
		WriteTimeout: rc.config.WriteTimeout,
		TLSConfig:    rc.tlsConfig(),
	}
}

func (rc *RedisConnection) sentinelOptions() *redis.FailoverOptions {
	return &redis.FailoverOptions{
		MasterName:    rc.config.SentinelMaster,
		SentinelAddrs: rc.config.Addresses,
		Password:      rc.config.Password,
		DB:            rc.config.DB,
		PoolSize:      rc.config.PoolSize,
		MinIdleConns:  rc.config.MinIdleConns,
		DialTimeout:   rc.config.DialTimeout,
		ReadTimeout:   rc.config.ReadTimeout,
		WriteTimeout:  rc.config.WriteTimeout,
		TLSConfig:     rc.tlsConfig(),
	}
}

func (rc *RedisConnection) tlsConfig() *tls.Config {
	if !rc.config.EnableTLS {
		return nil
	}
	return &tls.Config{MinVersion: tls.VersionTLS12}
}

// setDefaults sets default configuration values if not specified.
func (rc *RedisConnection) setDefaults() {
	if rc.config.Mode == "" {
		rc.config.Mode = string(ModeStandalone)
	}
	if len(rc.config.Addresses) == 0 {
		rc.config.Addresses = []string{"localhost:6379"}
	}
	if rc.config.PoolSize == 0 {
		rc.config.PoolSize = 10
	}
	if rc.config.DialTimeout == 0 {
		rc.config.DialTimeout = 5 * time.Second
	}
	if rc.config.ReadTimeout == 0 {
		rc.config.ReadTimeout = 3 * time.Second
	}
	if rc.config.WriteTimeout == 0 {
		rc.config.WriteTimeout = 3 * time.Second
	}
}

// GetClient returns the Redis client instance, or nil before Connect.
func (rc *RedisConnection) GetClient() redis.UniversalClient {
	return rc.client
}

// Ping checks Redis server connectivity.
func (rc *RedisConnection) Ping(ctx context.Context) error {
	if rc.client == nil {
		return fmt.Errorf("redis connection not initialized")
	}
	return rc.client.Ping(ctx).Err()
}

// HealthCheck reports connectivity, latency and pool statistics.
func (rc *RedisConnection) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	if rc.client == nil {
		return nil, fmt.Errorf("redis connection not initialized")
	}

	health := make(map[string]interface{})
	start := time.Now()
	err := rc.client.Ping(ctx).Err()
	health["connected"] = err == nil
	health["latency_ms"] = time.Since(start).Milliseconds()
	if err != nil {
		health["error"] = err.Error()
		return health, err
	}

	stats := rc.client.PoolStats()
	health["total_conns"] = stats.TotalConns
	health["idle_conns"] = stats.IdleConns
	health["pool_timeouts"] = stats.Timeouts
	return health, nil
}

// Close gracefully closes the Redis connection.
func (rc *RedisConnection) Close() error {
	if rc.client == nil {
		return nil
	}
	if err := rc.client.Close(); err != nil {
		rc.logger.Error(context.Background(), "Failed to close Redis connection", err)
		return err
	}
	rc.client = nil
	rc.logger.Info(context.Background(), "Redis connection closed successfully")
	return nil
}
