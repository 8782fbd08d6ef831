// Package lock serializes verification work per user.
//
// A user holds at most one lease at a time. The lease is taken when an upload
// is accepted and released once its classification is persisted, so a second
// upload for the same user fails fast instead of queueing behind the first.
// Leases that expire (Redis) must be refreshed while the verification is
// queued or classifying.
package lock

import (
	"context"

	id "kycgate/pkg/domain"
)

// Locker grants per-user verification leases.
type Locker interface {
	// TryAcquire returns sentinel.ErrAlreadyUsed when the user already holds a lease.
	TryAcquire(ctx context.Context, userID id.UserID) (Lease, error)
}

// Lease is a held per-user lock. Release is idempotent.
type Lease interface {
	// Refresh pushes the lease expiry out by the locker's ttl. It returns
	// sentinel.ErrNotFound once the lease has expired or been taken over.
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}
