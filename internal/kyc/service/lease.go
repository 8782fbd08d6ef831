package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"kycgate/internal/kyc/lock"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

// heldLease refreshes a verification lease in the background until it is
// released, covering both the queue wait and the classification itself.
type heldLease struct {
	inner lock.Lease
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
	err   error
}

func (s *Service) hold(lease lock.Lease, userID id.UserID) lock.Lease {
	h := &heldLease{
		inner: lease,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go s.heartbeat(h, userID)
	return h
}

func (s *Service) heartbeat(h *heldLease, userID id.UserID) {
	defer close(h.done)
	ticker := time.NewTicker(s.leaseRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.leaseRefresh)
		err := h.inner.Refresh(ctx)
		cancel()
		switch {
		case err == nil:
		case errors.Is(err, sentinel.ErrNotFound):
			// Someone else owns the user now; the next upload settles this one.
			s.logger.Warn("verification lock lapsed while held",
				"user_id", userID.String(),
			)
			return
		default:
			s.logger.Warn("failed to refresh verification lock",
				"user_id", userID.String(),
				"error", err,
			)
		}
	}
}

func (h *heldLease) Refresh(ctx context.Context) error {
	return h.inner.Refresh(ctx)
}

// Release stops the heartbeat before freeing the lock, so no refresh can race
// with a new holder.
func (h *heldLease) Release(ctx context.Context) error {
	h.once.Do(func() {
		close(h.stop)
		<-h.done
		h.err = h.inner.Release(ctx)
	})
	return h.err
}
