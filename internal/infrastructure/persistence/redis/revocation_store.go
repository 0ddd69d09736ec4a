package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/ssoguard/internal/domain/models"
	"github.com/turtacn/ssoguard/internal/domain/service"
	"github.com/turtacn/ssoguard/pkg/clock"
	"github.com/turtacn/ssoguard/pkg/constants"
	"github.com/turtacn/ssoguard/pkg/errors"
)

var _ service.RevocationStore = (*RevocationStore)(nil)

// RevocationStore keeps one key per revoked token. Keys expire with the token so no
// sweep is needed.
type RevocationStore struct {
	client redis.UniversalClient
	clock  clock.Clock
}

// NewRevocationStore creates a Redis-backed revocation store.
func NewRevocationStore(client redis.UniversalClient, clk clock.Clock) *RevocationStore {
	if clk == nil {
		clk = clock.System()
	}
	return &RevocationStore{client: client, clock: clk}
}

func revokedKey(tokenID string) string {
	return constants.CacheKeyPrefixRevokedToken + tokenID
}

// Name implements service.RevocationStore.
func (s *RevocationStore) Name() string {
	return string(constants.RevocationBackendRedis)
}

// Revoke stores the revocation time under the token key. Records for tokens that have
// already expired are not written.
func (s *RevocationStore) Revoke(ctx context.Context, record models.RevocationRecord) error {
	var ttl time.Duration
	if !record.ExpiresAt.IsZero() {
		ttl = record.ExpiresAt.Sub(s.clock.Now())
		if ttl <= 0 {
			return nil
		}
	}
	value := strconv.FormatInt(record.RevokedAt.Unix(), 10)
	// SETNX keeps the first revocation time on repeated calls.
	if err := s.client.SetNX(ctx, revokedKey(record.TokenID), value, ttl).Err(); err != nil {
		return errors.ErrStoreUnavailable(s.Name(), err)
	}
	return nil
}

// IsRevoked implements service.RevocationStore.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, errors.ErrStoreUnavailable(s.Name(), err)
	}
	return n == 1, nil
}

// RevokedAt returns when the token was revoked, or the zero time when it was not.
func (s *RevocationStore) RevokedAt(ctx context.Context, tokenID string) (time.Time, error) {
	val, err := s.client.Get(ctx, revokedKey(tokenID)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, errors.ErrStoreUnavailable(s.Name(), err)
	}
	secs, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, errors.ErrStoreUnavailable(s.Name(), err)
	}
	return time.Unix(secs, 0), nil
}
