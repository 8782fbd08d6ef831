package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

const keyPrefix = "kyc:lock:"

// releaseScript deletes the key only if it still carries our token, so an
// expired lease never frees a lock re-acquired by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the expiry only while the key still carries our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker shares leases across instances. Keys expire after ttl so a
// crashed holder cannot block a user forever.
type RedisLocker struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedis builds a Redis-backed Locker. Holders must call Lease.Refresh
// well inside ttl for as long as the verification is in flight.
func NewRedis(client redis.Cmdable, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) TryAcquire(ctx context.Context, userID id.UserID) (Lease, error) {
	key := keyPrefix + userID.String()
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire kyc lock: %w", err)
	}
	if !ok {
		return nil, sentinel.ErrAlreadyUsed
	}
	return &redisLease{client: l.client, key: key, token: token, ttl: l.ttl}, nil
}

// TTL is the expiry applied on acquire and on every refresh.
func (l *RedisLocker) TTL() time.Duration {
	return l.ttl
}

type redisLease struct {
	once   sync.Once
	client redis.Cmdable
	key    string
	token  string
	ttl    time.Duration
	err    error
}

func (r *redisLease) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, r.client, []string{r.key}, r.token, r.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("refresh kyc lock: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("refresh kyc lock: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (r *redisLease) Release(ctx context.Context) error {
	r.once.Do(func() {
		if err := releaseScript.Run(ctx, r.client, []string{r.key}, r.token).Err(); err != nil {
			r.err = fmt.Errorf("release kyc lock: %w", err)
		}
	})
	return r.err
}
