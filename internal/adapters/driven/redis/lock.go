package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = keyNamespace + "lock:"

// Lock hands out leases backed by SET NX keys. Every lease writes its own
// token, so two leases taken by the same process never release or refresh
// each other.
type Lock struct {
	client   redis.UniversalClient
	instance string
}

// NewLock creates a Redis-backed lock.
func NewLock(client redis.UniversalClient) *Lock {
	hostname, _ := os.Hostname()
	return &Lock{
		client:   client,
		instance: fmt.Sprintf("%s:%d", hostname, os.Getpid()),
	}
}

// TryLock takes name for ttl. A nil lease with a nil error means another
// holder has it.
func (l *Lock) TryLock(ctx context.Context, name string, ttl time.Duration) (driven.Lease, error) {
	token, err := l.newToken()
	if err != nil {
		return nil, err
	}
	key := lockPrefix + name
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, nil
	}
	return &lease{client: l.client, key: key, token: token}, nil
}

// Ping checks if the Redis backend is healthy.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Lock) newToken() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return l.instance + ":" + hex.EncodeToString(b), nil
}

// releaseScript deletes the key only when the caller still owns it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

// refreshScript resets the TTL only when the caller still owns the key.
var refreshScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	end
	return 0
`)

type lease struct {
	client redis.UniversalClient
	key    string
	token  string

	mu       sync.Mutex
	released bool
}

func (s *lease) Refresh(ctx context.Context, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return domain.ErrLockLost
	}
	n, err := refreshScript.Run(ctx, s.client, []string{s.key}, s.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("refresh lock %s: %w", s.key, err)
	}
	if n == 0 {
		return fmt.Errorf("refresh lock %s: %w", s.key, domain.ErrLockLost)
	}
	return nil
}

// Release drops the key if this lease still owns it. An expired or
// foreign key is left alone.
func (s *lease) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	_, err := releaseScript.Run(ctx, s.client, []string{s.key}, s.token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", s.key, err)
	}
	s.released = true
	return nil
}
