// Package memory provides the in-process revocation store.
package memory

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/turtacn/ssoguard/internal/domain/models"
	"github.com/turtacn/ssoguard/internal/domain/service"
	"github.com/turtacn/ssoguard/pkg/clock"
	"github.com/turtacn/ssoguard/pkg/constants"
)

var (
	_ service.RevocationStore   = (*RevocationStore)(nil)
	_ service.RevocationSweeper = (*RevocationStore)(nil)
)

// RevocationStore keeps revocations in a concurrent in-process map. Each entry lives
// until its token's natural expiry; entries without a known expiry live for the process
// lifetime. go-cache guards the map with a RWMutex, so a completed Revoke is visible to
// every later IsRevoked.
type RevocationStore struct {
	items *cache.Cache
	clock clock.Clock
}

// NewRevocationStore creates an empty store. cleanupInterval controls the background
// janitor; zero disables it and leaves purging to Sweep.
func NewRevocationStore(clk clock.Clock, cleanupInterval time.Duration) *RevocationStore {
	if clk == nil {
		clk = clock.System()
	}
	return &RevocationStore{
		items: cache.New(cache.NoExpiration, cleanupInterval),
		clock: clk,
	}
}

// Name implements service.RevocationStore.
func (s *RevocationStore) Name() string {
	return string(constants.RevocationBackendMemory)
}

// Revoke implements service.RevocationStore. The first revocation time wins.
func (s *RevocationStore) Revoke(_ context.Context, record models.RevocationRecord) error {
	ttl := cache.NoExpiration
	if !record.ExpiresAt.IsZero() {
		ttl = record.ExpiresAt.Sub(s.clock.Now())
		if ttl <= 0 {
			return nil
		}
	}
	// Add fails when the entry already exists, which is the idempotent case.
	_ = s.items.Add(record.TokenID, record.RevokedAt, ttl)
	return nil
}

// IsRevoked implements service.RevocationStore.
func (s *RevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, found := s.items.Get(tokenID)
	return found, nil
}

// RevokedAt returns when the token was revoked, or the zero time.
func (s *RevocationStore) RevokedAt(tokenID string) time.Time {
	v, found := s.items.Get(tokenID)
	if !found {
		return time.Time{}
	}
	return v.(time.Time)
}

// Len returns the number of stored records, expired ones included until purged.
func (s *RevocationStore) Len() int {
	return s.items.ItemCount()
}

// Sweep implements service.RevocationSweeper.
func (s *RevocationStore) Sweep(_ context.Context, _ time.Time) (int64, error) {
	before := s.items.ItemCount()
	s.items.DeleteExpired()
	return int64(before - s.items.ItemCount()), nil
}
