// Package multicache provides a multi-tiered sharedcache.Store that cascades
// through multiple backends with automatic fallback and promotion. This
// enables sophisticated caching strategies with different performance and
// persistence characteristics at each tier.
package multicache

import (
	"context"
	"time"

	"github.com/nullstream/sharedcache"
)

// defaultPromotionTTL is used when a value is promoted to a faster tier and
// the tier it was found in can't report its own remaining TTL.
const defaultPromotionTTL = 5 * time.Minute

// Store implements a multi-tiered caching strategy where tiers are ordered
// from fastest/smallest (first) to slowest/largest (last). On reads, it
// searches each tier in order and promotes found values to faster tiers. On
// writes, it stores to all tiers.
//
// Example use case:
//   - Tier 1: in-memory (fast, small, volatile)
//   - Tier 2: Redis (medium speed, larger, persistent)
//   - Tier 3: PostgreSQL (slower, largest, highly persistent)
type Store struct {
	tiers        []sharedcache.Store
	promotionTTL time.Duration
}

// New creates a Store with the given tiers, ordered from fastest/smallest to
// slowest/largest. At least one tier must be provided, and all tiers must be
// non-nil and unique. Returns nil otherwise.
func New(tiers ...sharedcache.Store) *Store {
	return NewWithPromotionTTL(defaultPromotionTTL, tiers...)
}

// NewWithPromotionTTL behaves like New but lets the caller control the TTL
// applied when a value found in a slower tier is promoted to faster ones.
func NewWithPromotionTTL(promotionTTL time.Duration, tiers ...sharedcache.Store) *Store {
	if len(tiers) == 0 {
		return nil
	}

	seen := make(map[sharedcache.Store]bool)
	for _, tier := range tiers {
		if tier == nil || seen[tier] {
			return nil
		}
		seen[tier] = true
	}

	return &Store{tiers: tiers, promotionTTL: promotionTTL}
}

// Get searches each tier in order, starting with the fastest. When a value
// is found in a slower tier, it is promoted (written) to all faster tiers
// for subsequent quick access; promotion errors are ignored.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	for i, tier := range s.tiers {
		value, ok, err := tier.Get(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			s.promoteToFasterTiers(ctx, key, value, i)
			return value, true, nil
		}
	}
	return nil, false, nil
}

// Set stores the value in all tiers, applying the same ttl to each.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	for _, tier := range s.tiers {
		if err := tier.Set(ctx, key, value, ttl); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the value from all tiers.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	var deletedAny bool
	for _, tier := range s.tiers {
		deleted, err := tier.Delete(ctx, key)
		if err != nil {
			return deletedAny, err
		}
		deletedAny = deletedAny || deleted
	}
	return deletedAny, nil
}

func (s *Store) promoteToFasterTiers(ctx context.Context, key string, value []byte, foundAtTier int) {
	for i := 0; i < foundAtTier; i++ {
		if err := s.tiers[i].Set(ctx, key, value, s.promotionTTL); err != nil {
			sharedcache.GetLogger().Warn("multicache: promotion to faster tier failed", "key", key, "tier", i, "error", err)
		}
	}
}

var _ sharedcache.Store = (*Store)(nil)
