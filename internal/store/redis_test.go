package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/optpnl/pnl-engine/internal/model"
)

// An unreachable cache must degrade to the primary, never fail a write.
func TestCachedStore_FallsBackWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	primary := NewMemoryStore()
	s := NewCachedStore(primary, rdb, time.Minute)

	if err := s.AppendBatch(ctx, &model.Batch{ID: "b1"}, []model.TradeExecution{execution("a"), execution("b")}); err != nil {
		t.Fatalf("append should succeed without cache: %v", err)
	}

	log, err := s.ListExecutions(ctx)
	if err != nil {
		t.Fatalf("list executions: %v", err)
	}
	if len(log) != 2 {
		t.Errorf("expected 2 executions from primary, got %d", len(log))
	}

	batches, err := s.ListBatches(ctx)
	if err != nil || len(batches) != 1 {
		t.Errorf("expected 1 batch from primary, got %d (%v)", len(batches), err)
	}
}

// memRedis implements the commands CachedStore uses over a map. Any other
// command panics on the nil embedded interface.
type memRedis struct {
	redis.Cmdable
	mu   sync.Mutex
	data map[string]string
}

func newMemRedis() *memRedis {
	return &memRedis{data: make(map[string]string)}
}

func (m *memRedis) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	default:
		m.data[key] = fmt.Sprint(v)
	}
	return redis.NewStatusResult("OK", nil)
}

func (m *memRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

// countingStore counts reads that reach the primary.
type countingStore struct {
	*MemoryStore
	mu    sync.Mutex
	reads int
}

func (c *countingStore) ListExecutions(ctx context.Context) ([]model.TradeExecution, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	return c.MemoryStore.ListExecutions(ctx)
}

func (c *countingStore) readCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func TestCachedStore_HitSkipsPrimary(t *testing.T) {
	ctx := context.Background()
	primary := &countingStore{MemoryStore: NewMemoryStore()}
	s := NewCachedStore(primary, newMemRedis(), time.Minute)

	s.AppendBatch(ctx, &model.Batch{ID: "b1"}, []model.TradeExecution{execution("a")})

	for i := 0; i < 3; i++ {
		log, err := s.ListExecutions(ctx)
		if err != nil || len(log) != 1 {
			t.Fatalf("read %d: expected 1 execution, got %d (%v)", i, len(log), err)
		}
	}
	if n := primary.readCount(); n != 1 {
		t.Errorf("expected 1 primary read, got %d", n)
	}
}

func TestCachedStore_AppendInvalidates(t *testing.T) {
	ctx := context.Background()
	primary := &countingStore{MemoryStore: NewMemoryStore()}
	s := NewCachedStore(primary, newMemRedis(), time.Minute)

	s.AppendBatch(ctx, &model.Batch{ID: "b1"}, []model.TradeExecution{execution("a")})
	s.ListExecutions(ctx)
	s.ListBatches(ctx)

	s.AppendBatch(ctx, &model.Batch{ID: "b2"}, []model.TradeExecution{execution("b")})

	log, _ := s.ListExecutions(ctx)
	if len(log) != 2 {
		t.Errorf("expected 2 executions after append, got %d", len(log))
	}
	batches, _ := s.ListBatches(ctx)
	if len(batches) != 2 {
		t.Errorf("expected 2 batches after append, got %d", len(batches))
	}
	if n := primary.readCount(); n != 2 {
		t.Errorf("expected a second primary read after append, got %d", n)
	}
}

// A reader on another instance that loaded history before an append must
// not be able to put that history back in front of later readers.
func TestCachedStore_LateFillFromOtherInstanceIsIgnored(t *testing.T) {
	ctx := context.Background()
	rdb := newMemRedis()
	primary := NewMemoryStore()
	reader := NewCachedStore(primary, rdb, time.Minute)
	writer := NewCachedStore(primary, rdb, time.Minute)

	writer.AppendBatch(ctx, &model.Batch{ID: "b1"}, []model.TradeExecution{execution("a")})

	gen, ok := reader.generation(ctx)
	if !ok {
		t.Fatal("generation should be readable")
	}
	stale, _ := primary.ListExecutions(ctx)

	writer.AppendBatch(ctx, &model.Batch{ID: "b2"}, []model.TradeExecution{execution("b")})

	// The reader's fill lands after the writer's invalidation.
	reader.set(ctx, cacheKey(executionsKey, gen), stale)

	log, err := reader.ListExecutions(ctx)
	if err != nil {
		t.Fatalf("list executions: %v", err)
	}
	if len(log) != 2 {
		t.Errorf("expected fresh history of 2, got %d", len(log))
	}
}
