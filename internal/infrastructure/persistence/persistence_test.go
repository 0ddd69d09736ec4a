package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ssoguard/internal/config"
	"github.com/turtacn/ssoguard/internal/domain/models"
	"github.com/turtacn/ssoguard/internal/domain/service"
	"github.com/turtacn/ssoguard/pkg/clock"
)

type sweepCounter struct {
	service.NoopMetrics
	removed int64
}

func (c *sweepCounter) RecordRevocationSweep(_ string, removed int64) { c.removed += removed }

func TestOpen_Memory(t *testing.T) {
	b, err := Open(context.Background(), &config.Config{Revocation: config.RevocationConfig{Backend: "memory"}}, nil, nil)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, "memory", b.Store.Name())
	assert.Nil(t, b.Redis)
	assert.Nil(t, b.DB)

	health, err := b.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "memory", health["revocation_backend"])
}

func TestOpen_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Revocation: config.RevocationConfig{Backend: "redis"},
		Redis:      config.RedisConfig{Mode: "standalone", Addresses: []string{mr.Addr()}},
	}
	b, err := Open(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, "redis", b.Store.Name())
	require.NotNil(t, b.Redis)
	_, err = b.HealthCheck(context.Background())
	assert.NoError(t, err)
}

func TestOpen_MemoryWithRedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Revocation: config.RevocationConfig{Backend: "memory"},
		RateLimit:  config.RateLimitConfig{Enabled: true, Backend: "redis"},
		Redis:      config.RedisConfig{Mode: "standalone", Addresses: []string{mr.Addr()}},
	}
	b, err := Open(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, "memory", b.Store.Name())
	assert.NotNil(t, b.Redis)
}

func TestOpen_DatabaseAndSweeper(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	cfg := &config.Config{
		Revocation: config.RevocationConfig{Backend: "database"},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			SQLitePath:  filepath.Join(t.TempDir(), "ssoguard.db"),
			AutoMigrate: true,
		},
	}
	b, err := Open(context.Background(), cfg, clk, nil)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, "database", b.Store.Name())

	ctx := context.Background()
	require.NoError(t, b.Store.Revoke(ctx, models.RevocationRecord{TokenID: "short", RevokedAt: clk.Now(), ExpiresAt: clk.Now().Add(time.Minute)}))
	require.NoError(t, b.Store.Revoke(ctx, models.RevocationRecord{TokenID: "long", RevokedAt: clk.Now(), ExpiresAt: clk.Now().Add(time.Hour)}))

	metrics := &sweepCounter{}
	sweeper := NewSweeper(b.Store, time.Minute, clk, metrics, nil)
	clk.Advance(2 * time.Minute)
	assert.Equal(t, int64(1), sweeper.SweepOnce(ctx, b.Store.(service.RevocationSweeper)))
	assert.Equal(t, int64(1), metrics.removed)

	revoked, err := b.Store.IsRevoked(ctx, "long")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Revocation: config.RevocationConfig{Backend: "etcd"}}, nil, nil)
	assert.Error(t, err)
}

type plainStore struct{ service.RevocationStore }

func (plainStore) Name() string { return "plain" }

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	b, err := Open(context.Background(), &config.Config{Revocation: config.RevocationConfig{Backend: "memory"}}, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewSweeper(b.Store, 5*time.Millisecond, nil, nil, nil).Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}

	// stores without Sweep return immediately
	assert.NoError(t, NewSweeper(plainStore{}, time.Millisecond, nil, nil, nil).Run(context.Background()))
}
