// Package distlock provides short-lived mutual exclusion for per-account
// recompute work. A Redis-backed lock is used when a Redis client is
// available, otherwise locking falls back to Postgres advisory locks so a
// single-node deployment needs no extra infrastructure.
package distlock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock is currently held elsewhere.
var ErrNotAcquired = fmt.Errorf("distlock: not acquired")

// Locker acquires a named lock. The returned release function is safe to
// call exactly once; releasing a lock that expired is a no-op.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// New picks the Redis implementation when a client is provided and the
// advisory-lock implementation otherwise.
func New(rdb *redis.Client, db *sql.DB) Locker {
	if rdb != nil {
		return &redisLocker{client: rdb}
	}
	return &advisoryLocker{db: db}
}

// AccountKey builds the canonical lock key for per-account recompute.
func AccountKey(tenantID, accountID uuid.UUID) string {
	return fmt.Sprintf("recompute:%s:%s", tenantID, accountID)
}

type redisLocker struct {
	client *redis.Client
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("distlock: setnx %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	release := func(ctx context.Context) error {
		// Delete only if we still own the lock. A lock that outlived its
		// TTL may have been re-acquired by another worker.
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		return l.client.Eval(ctx, script, []string{key}, token).Err()
	}
	return release, nil
}

type advisoryLocker struct {
	db *sql.DB
}

func (l *advisoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	// Advisory locks are session-scoped, so the lock must live on a
	// dedicated connection until released. TTL is not enforceable here;
	// the connection close on release or process exit frees the lock.
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("distlock: acquire conn: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockID(key)).Scan(&acquired); err != nil {
		conn.Close()
		return nil, fmt.Errorf("distlock: try advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return nil, ErrNotAcquired
	}

	release := func(ctx context.Context) error {
		defer conn.Close()
		_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", lockID(key))
		return err
	}
	return release, nil
}

func lockID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}
