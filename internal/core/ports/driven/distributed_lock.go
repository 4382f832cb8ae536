package driven

import (
	"context"
	"time"
)

// DistributedLock elects the single instance that runs the token refresh
// sweep. A won election is a Lease the holder keeps alive for as long as the
// sweep runs.
type DistributedLock interface {
	// TryLock takes the named lock for ttl without blocking.
	// Returns a nil Lease and a nil error when another holder has it.
	TryLock(ctx context.Context, name string, ttl time.Duration) (Lease, error)

	// Ping checks the lock backend.
	Ping(ctx context.Context) error
}

// Lease is one held lock.
type Lease interface {
	// Refresh pushes the expiry out to ttl from now.
	// Returns domain.ErrLockLost once the lease expired or was taken over.
	Refresh(ctx context.Context, ttl time.Duration) error

	// Release gives the lock up. Calling it again is a no-op.
	Release(ctx context.Context) error
}
