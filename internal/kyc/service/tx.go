package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
)

// StoreTx groups document and user mutations for one verification step.
// Postgres implementations carry a *sql.Tx in ctx; the in-memory one
// serializes on a per-user shard.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

const numTxShards = 128

const defaultTxTimeout = 5 * time.Second

// shardedTx serializes in-memory store mutations per user.
type shardedTx struct {
	shards  [numTxShards]sync.Mutex
	timeout time.Duration
}

// NewShardedTx returns the in-memory StoreTx.
func NewShardedTx() StoreTx {
	return &shardedTx{timeout: defaultTxTimeout}
}

func (t *shardedTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

func (t *shardedTx) selectShard(ctx context.Context) int {
	if userID, ok := ctx.Value(txUserKeyCtx).(id.UserID); ok && !userID.IsNil() {
		h := fnv.New32a()
		_, _ = h.Write([]byte(userID.String()))
		return int(h.Sum32() % numTxShards)
	}
	return 0
}

type txUserKey struct{}

var txUserKeyCtx = txUserKey{}

func withTxUser(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, txUserKeyCtx, userID)
}
