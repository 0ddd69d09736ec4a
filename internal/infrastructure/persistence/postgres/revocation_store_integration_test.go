//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/turtacn/ssoguard/internal/domain/models"
)

func TestRevocationStore_Postgres(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("ssoguard"),
		tcpostgres.WithUsername("ssoguard"),
		tcpostgres.WithPassword("ssoguard"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(connStr), &gorm.Config{})
	require.NoError(t, err)

	store := NewRevocationStore(NewDBConnectionFromGorm(db, nil), nil)
	require.NoError(t, store.Migrate(ctx))

	now := time.Now().UTC().Truncate(time.Second)
	rec := models.RevocationRecord{TokenID: "fp", RevokedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, store.Revoke(ctx, rec))
	require.NoError(t, store.Revoke(ctx, rec))

	revoked, err := store.IsRevoked(ctx, "fp")
	require.NoError(t, err)
	assert.True(t, revoked)

	removed, err := store.Sweep(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
