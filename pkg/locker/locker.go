// Package locker coordinates periodic work across service instances through
// distributed locks.
package locker

import (
	"context"
	"time"
)

// DistributedLocker is a non-blocking distributed lock. Implementations must
// be safe for concurrent use.
//
//	held, err := locker.Acquire(ctx, "sweep", time.Minute)
//	if err != nil || !held {
//	    return
//	}
//	defer locker.Release(ctx, "sweep")
type DistributedLocker interface {
	// Acquire tries to take the lock once, without blocking. It returns
	// false when another instance holds it. The lock expires on its own
	// after ttl, so a crashed holder cannot deadlock the cluster. Choose
	// the ttl for the intent: the operation timeout for mutual exclusion,
	// the cooldown period for rate limiting.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release drops the lock if this instance owns it; releasing a lock
	// held elsewhere is a no-op, not an error.
	Release(ctx context.Context, key string) error
}
