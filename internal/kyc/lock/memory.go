package lock

import (
	"context"
	"hash/fnv"
	"sync"

	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

// numShards spreads held keys over independent mutexes so unrelated users do
// not contend on a single lock.
const numShards = 128

type shard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	shards [numShards]shard
}

func NewMemory() *MemoryLocker {
	l := &MemoryLocker{}
	for i := range l.shards {
		l.shards[i].held = make(map[string]struct{})
	}
	return l
}

func (l *MemoryLocker) TryAcquire(ctx context.Context, userID id.UserID) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := userID.String()
	sh := l.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, busy := sh.held[key]; busy {
		return nil, sentinel.ErrAlreadyUsed
	}
	sh.held[key] = struct{}{}
	return &memoryLease{shard: sh, key: key}, nil
}

// Held reports whether userID currently holds a lease.
func (l *MemoryLocker) Held(userID id.UserID) bool {
	key := userID.String()
	sh := l.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	_, busy := sh.held[key]
	return busy
}

type memoryLease struct {
	once  sync.Once
	shard *shard
	key   string
}

// Refresh is a no-op: memory leases never expire.
func (m *memoryLease) Refresh(context.Context) error {
	return nil
}

func (m *memoryLease) Release(context.Context) error {
	m.once.Do(func() {
		m.shard.mu.Lock()
		delete(m.shard.held, m.key)
		m.shard.mu.Unlock()
	})
	return nil
}

func (l *MemoryLocker) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.shards[h.Sum32()%numShards]
}
