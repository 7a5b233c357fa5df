package port

import (
	"context"
	"time"
)

// Lock is a named, lease-based exclusive lock. The lease auto-expires so a
// crashed holder cannot deadlock other workers.
type Lock interface {
	// TryLock attempts to acquire the lock without waiting, returns false if
	// another holder owns it
	TryLock(ctx context.Context, lease time.Duration) (bool, error)

	// Unlock releases the lock if this instance still holds it
	Unlock(ctx context.Context) error
}

type LockManager interface {
	// OrderLock returns the per-user lock guarding order materialization
	OrderLock(userID uint64) Lock
}
