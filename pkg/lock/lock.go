// Package lock defines the distributed-lock port the deployment service
// uses to serialize planning across instances,
// plus an in-memory and a Redis-backed implementation.
package lock

import "context"

// DistributedLock is advisory, keyed mutual exclusion across instances
// sharing a backing store. Acquire is try-once-non-blocking; release and
// extend are safe only against the token the implementation recorded
// when Acquire succeeded, so a lock can never be released or extended by a caller
// that didn't hold it.
type DistributedLock interface {
	// Acquire attempts to claim resourceID for ttlSeconds. It returns
	// false immediately if the resource is already locked; it never
	// blocks waiting for the lock to free up.
	Acquire(ctx context.Context, resourceID string, ttlSeconds int) (bool, error)
	// Release frees resourceID. It is a no-op (returns false, nil) if
	// the caller no longer holds the lock.
	Release(ctx context.Context, resourceID string) (bool, error)
	// Extend pushes the lock's expiry out by ttlSeconds from now,
	// provided the caller still holds it.
	Extend(ctx context.Context, resourceID string, ttlSeconds int) (bool, error)
	IsLocked(ctx context.Context, resourceID string) (bool, error)
}
