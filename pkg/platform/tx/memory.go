package tx

import (
	"context"
	"sync"
)

// numShards spreads per-user locks so unrelated users don't contend.
const numShards = 64

type userKey struct{}

// WithUserKey tags the context with the user a transaction operates on so the
// memory manager can serialize per user the way row locks do in Postgres.
func WithUserKey(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// MemoryManager serializes transactions with sharded mutexes. It backs unit
// tests and in-memory wiring where no SQL database is present.
type MemoryManager struct {
	shards [numShards]sync.Mutex
}

func NewMemoryManager() *MemoryManager {
	return &MemoryManager{}
}

func (m *MemoryManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	shard := 0
	if userID, ok := ctx.Value(userKey{}).(string); ok && userID != "" {
		shard = int(fnv32(userID) % numShards)
	}
	m.shards[shard].Lock()
	defer m.shards[shard].Unlock()
	return fn(ctx)
}

func fnv32(s string) uint32 {
	const (
		offset = 2166136261
		prime  = 16777619
	)
	h := uint32(offset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}
