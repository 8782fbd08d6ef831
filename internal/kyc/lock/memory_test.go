package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquire for the same user fails fast", func(t *testing.T) {
		l := NewMemory()
		user := id.NewUserID()

		lease, err := l.TryAcquire(ctx, user)
		require.NoError(t, err)
		assert.True(t, l.Held(user))

		_, err = l.TryAcquire(ctx, user)
		assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)

		require.NoError(t, lease.Release(ctx))
		assert.False(t, l.Held(user))

		again, err := l.TryAcquire(ctx, user)
		require.NoError(t, err)
		require.NoError(t, again.Release(ctx))
	})

	t.Run("different users do not block each other", func(t *testing.T) {
		l := NewMemory()
		for range 500 {
			_, err := l.TryAcquire(ctx, id.NewUserID())
			require.NoError(t, err)
		}
	})

	t.Run("release is idempotent", func(t *testing.T) {
		l := NewMemory()
		user := id.NewUserID()
		lease, err := l.TryAcquire(ctx, user)
		require.NoError(t, err)
		require.NoError(t, lease.Release(ctx))

		other, err := l.TryAcquire(ctx, user)
		require.NoError(t, err)
		require.NoError(t, lease.Release(ctx))
		assert.True(t, l.Held(user), "stale release must not free the new holder")
		require.NoError(t, other.Release(ctx))
	})

	t.Run("exactly one concurrent caller wins", func(t *testing.T) {
		l := NewMemory()
		user := id.NewUserID()
		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := l.TryAcquire(ctx, user); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("refresh keeps the lease held", func(t *testing.T) {
		l := NewMemory()
		user := id.NewUserID()
		lease, err := l.TryAcquire(ctx, user)
		require.NoError(t, err)
		require.NoError(t, lease.Refresh(ctx))
		assert.True(t, l.Held(user))
		require.NoError(t, lease.Release(ctx))
	})

	t.Run("cancelled context", func(t *testing.T) {
		l := NewMemory()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := l.TryAcquire(cctx, id.NewUserID())
		assert.ErrorIs(t, err, context.Canceled)
	})
}
