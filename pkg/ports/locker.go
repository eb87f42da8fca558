package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock acquired through a Locker.
type UnlockFunc func(ctx context.Context) error

// Locker guards a key across processes, e.g. so that a single host drives a
// shared set of definitions.
type Locker interface {
	// Lock blocks until the lock is acquired or ctx ends. The lock expires
	// after ttl unless extended; zero means no expiry.
	// The returned UnlockFunc MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// Extender is implemented by lockers whose locks can be kept alive.
type Extender interface {
	// Extend resets the expiry of a lock held by this locker.
	Extend(ctx context.Context, key string, ttl time.Duration) error
}
