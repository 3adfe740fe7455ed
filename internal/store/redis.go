package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/optpnl/pnl-engine/internal/model"
)

const (
	generationKey = "pnl:generation"
	executionsKey = "pnl:executions"
	batchesKey    = "pnl:batches"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and then bump a generation counter;
// cached values are keyed by generation, so a reader that loaded history
// before another instance's append can only repopulate a key no one reads
// anymore. The log is cached as one value so a reader always gets a whole
// snapshot, never a partial one.
type CachedStore struct {
	primary Store
	rdb     redis.Cmdable
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb redis.Cmdable, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, advance generation) ---

func (s *CachedStore) AppendBatch(ctx context.Context, b *model.Batch, executions []model.TradeExecution) error {
	if err := s.primary.AppendBatch(ctx, b, executions); err != nil {
		return err
	}
	// Until this succeeds, readers may see the previous history for up to ttl.
	if err := s.rdb.Incr(ctx, generationKey).Err(); err != nil {
		slog.Warn("cache invalidation failed", "err", err)
	}
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) ListExecutions(ctx context.Context) ([]model.TradeExecution, error) {
	gen, ok := s.generation(ctx)
	key := cacheKey(executionsKey, gen)

	var cached []model.TradeExecution
	if ok && s.get(ctx, key, &cached) {
		return cached, nil
	}

	// Cache miss.
	executions, err := s.primary.ListExecutions(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		s.set(ctx, key, executions)
	}
	return executions, nil
}

func (s *CachedStore) ListBatches(ctx context.Context) ([]model.Batch, error) {
	gen, ok := s.generation(ctx)
	key := cacheKey(batchesKey, gen)

	var cached []model.Batch
	if ok && s.get(ctx, key, &cached) {
		return cached, nil
	}

	batches, err := s.primary.ListBatches(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		s.set(ctx, key, batches)
	}
	return batches, nil
}

// --- Cache helpers ---

// generation reads the current write generation. ok is false when Redis is
// unreachable, in which case callers bypass the cache entirely.
func (s *CachedStore) generation(ctx context.Context) (gen int64, ok bool) {
	gen, err := s.rdb.Get(ctx, generationKey).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, true
	case err != nil:
		return 0, false
	}
	return gen, true
}

func cacheKey(base string, gen int64) string {
	return base + ":" + strconv.FormatInt(gen, 10)
}

func (s *CachedStore) get(ctx context.Context, key string, dst any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *CachedStore) set(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}
