package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var _ domain.SnapshotRepository = (*CachedSnapshotRepository)(nil)

const snapshotCacheTTL = 30 * time.Minute

// CachedSnapshotRepository is a read-through redis cache in front of another
// SnapshotRepository. Writes go to the backing store first, then invalidate.
type CachedSnapshotRepository struct {
	next   domain.SnapshotRepository
	cache  *redis.Client
	logger zerolog.Logger
}

func NewCachedSnapshotRepository(next domain.SnapshotRepository, cache *redis.Client, logger zerolog.Logger) *CachedSnapshotRepository {
	return &CachedSnapshotRepository{
		next:   next,
		cache:  cache,
		logger: logger,
	}
}

// cachedSnapshot carries Value explicitly, the domain type hides it from JSON
type cachedSnapshot struct {
	Snapshot *domain.Snapshot `json:"snapshot"`
	Value    json.RawMessage  `json:"value"`
}

func (r *CachedSnapshotRepository) cacheKey(ownerID, key string) string {
	return fmt.Sprintf("snapshots:%s:%s", ownerID, key)
}

func (r *CachedSnapshotRepository) invalidate(ctx context.Context, ownerID, key string) {
	if err := r.cache.Del(ctx, r.cacheKey(ownerID, key)).Err(); err != nil {
		r.logger.Warn().Err(err).Str("owner", ownerID).Str("key", key).Msg("[CACHE] Failed to invalidate")
	}
}

func (r *CachedSnapshotRepository) Get(ctx context.Context, ownerID, key string) (*domain.Snapshot, error) {
	ck := r.cacheKey(ownerID, key)

	val, err := r.cache.Get(ctx, ck).Bytes()
	if err == nil {
		var cached cachedSnapshot
		if err := json.Unmarshal(val, &cached); err == nil && cached.Snapshot != nil {
			cached.Snapshot.Value = []byte(cached.Value)
			return cached.Snapshot, nil
		}

		r.logger.Warn().Str("owner", ownerID).Str("key", key).Msg("[CACHE] Corrupted entry, cleaning up key")
		r.cache.Del(ctx, ck)
	} else if err != redis.Nil {
		r.logger.Warn().Err(err).Msg("[CACHE] Redis read error")
	}

	snap, err := r.next.Get(ctx, ownerID, key)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(cachedSnapshot{Snapshot: snap, Value: snap.Value}); err == nil {
		if setErr := r.cache.Set(ctx, ck, data, snapshotCacheTTL).Err(); setErr != nil {
			r.logger.Warn().Err(setErr).Msg("[CACHE] Redis set error")
		}
	}

	return snap, nil
}

func (r *CachedSnapshotRepository) Save(ctx context.Context, ownerID, key string, value []byte) (*domain.Snapshot, error) {
	snap, err := r.next.Save(ctx, ownerID, key, value)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, ownerID, key)
	return snap, nil
}

func (r *CachedSnapshotRepository) Delete(ctx context.Context, ownerID, key string) error {
	defer r.invalidate(ctx, ownerID, key)
	return r.next.Delete(ctx, ownerID, key)
}
