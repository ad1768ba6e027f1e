package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock obtained from a DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates builds across processes that share an
// output directory, e.g. parallel test runners on one CI host.
type DistributedLocker interface {
	// Lock blocks until key is held, ctx is done, or the implementation gives up.
	// The lock expires after ttl if never released.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
