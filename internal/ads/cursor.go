package ads

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// CursorStore keeps rotation cursors per key.
type CursorStore interface {
	// Advance moves the cursor for key forward by n within a list of size
	// items and returns the position before the move.
	Advance(ctx context.Context, key string, n, size int) (int, error)
}

// MemoryCursorStore keeps cursors in process memory.
type MemoryCursorStore struct {
	mu      sync.Mutex
	cursors map[string]int
}

// NewMemoryCursorStore creates an empty in-memory cursor store.
func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{cursors: make(map[string]int)}
}

// Advance implements CursorStore.
func (s *MemoryCursorStore) Advance(_ context.Context, key string, n, size int) (int, error) {
	if size <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.cursors[key] % size
	s.cursors[key] = (start + n) % size
	return start, nil
}

// RedisCursorStore shares cursors between processes through INCRBY counters.
type RedisCursorStore struct {
	client *redis.Client
	prefix string
}

// NewRedisCursorStore creates a cursor store that namespaces keys with prefix.
func NewRedisCursorStore(client *redis.Client, prefix string) *RedisCursorStore {
	return &RedisCursorStore{client: client, prefix: prefix}
}

// Advance implements CursorStore. The counter grows monotonically; the
// position is taken modulo size so candidate lists may change between calls.
func (s *RedisCursorStore) Advance(ctx context.Context, key string, n, size int) (int, error) {
	if size <= 0 {
		return 0, nil
	}

	v, err := s.client.IncrBy(ctx, s.prefix+key, int64(n)).Result()
	if err != nil {
		return 0, fmt.Errorf("incrby: %w", err)
	}

	start := (v - int64(n)) % int64(size)
	if start < 0 {
		start += int64(size)
	}
	return int(start), nil
}
