package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*AdvisoryLock)(nil)

// AdvisoryLock elects the sweeping worker with session-level advisory locks.
// Used when REDIS_URL is not set.
//
// A session lock belongs to one server connection, so every lease pins its
// own *sql.Conn from the pool and unlocks on that same connection. The lock
// has no TTL: it lasts until Release or until the connection dies.
type AdvisoryLock struct {
	db *DB
}

// NewAdvisoryLock creates the lock on the shared pool.
func NewAdvisoryLock(db *DB) *AdvisoryLock {
	return &AdvisoryLock{db: db}
}

// lockKey maps a lock name onto the bigint key space of pg_advisory_*.
func lockKey(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte("socialconnect:lock:" + name))
	return int64(h.Sum64())
}

// TryLock takes the lock on a pinned connection. ttl is ignored.
func (l *AdvisoryLock) TryLock(ctx context.Context, name string, _ time.Duration) (driven.Lease, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("pin connection for lock %s: %w", name, err)
	}

	key := lockKey(name)
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		discard(conn)
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !acquired {
		conn.Close()
		return nil, nil
	}
	return &advisoryLease{conn: conn, name: name, key: key}, nil
}

// Ping checks the database.
func (l *AdvisoryLock) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// advisoryLease is a lock held on conn.
type advisoryLease struct {
	mu       sync.Mutex
	conn     *sql.Conn
	name     string
	key      int64
	released bool
}

// Refresh confirms the pinned connection, and with it the lock, is alive.
func (l *advisoryLease) Refresh(ctx context.Context, _ time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.released {
		return domain.ErrLockLost
	}
	if err := l.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("lock %s: %w: %v", l.name, domain.ErrLockLost, err)
	}
	return nil
}

// Release unlocks on the pinned connection and returns it to the pool. A
// connection that cannot confirm the unlock is closed instead, which drops
// the lock server-side.
func (l *advisoryLease) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.released {
		return nil
	}
	l.released = true

	var unlocked bool
	err := l.conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", l.key).Scan(&unlocked)
	if err != nil || !unlocked {
		discard(l.conn)
		if err != nil {
			return fmt.Errorf("release lock %s: %w", l.name, err)
		}
		return fmt.Errorf("release lock %s: %w", l.name, domain.ErrLockLost)
	}
	return l.conn.Close()
}

// discard closes the server connection behind conn instead of pooling it.
func discard(conn *sql.Conn) {
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = conn.Close()
}
