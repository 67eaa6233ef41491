package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MonthlyLock serializes the read-aggregate-write sequence of the
// monthly retention calculation per (supplier, category, registration
// status, month) key. Without it, two concurrent submissions for the
// same tuple can each read a ledger view missing the other's
// uncommitted payment and under-withhold.
type MonthlyLock interface {
	// Acquire blocks until the key lock is held or ctx is done.
	// The returned release function must be called exactly once.
	Acquire(ctx context.Context, key string) (func(), error)
}

// Key builds the canonical lock key for a monthly aggregation tuple
func Key(supplierTaxID, categoryCode string, registered bool, month time.Time) string {
	return fmt.Sprintf("retention:month:%s:%s:%t:%s", supplierTaxID, categoryCode, registered, month.Format("200601"))
}

// RedisMonthlyLock implements MonthlyLock on Redis SETNX with a TTL,
// suitable for multi-instance deployments
type RedisMonthlyLock struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	retryWait time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisMonthlyLock creates a Redis-backed monthly lock
func NewRedisMonthlyLock(cfg RedisConfig, ttl time.Duration) (*RedisMonthlyLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisMonthlyLockWithClient(client, ttl), nil
}

// NewRedisMonthlyLockWithClient creates a lock with an existing client
func NewRedisMonthlyLockWithClient(client *redis.Client, ttl time.Duration) *RedisMonthlyLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisMonthlyLock{
		client:    client,
		keyPrefix: "lock:",
		ttl:       ttl,
		retryWait: 50 * time.Millisecond,
	}
}

// Acquire polls SETNX until the lock is obtained or ctx expires. The
// TTL guards against a crashed holder wedging the key forever.
func (l *RedisMonthlyLock) Acquire(ctx context.Context, key string) (func(), error) {
	fullKey := l.keyPrefix + key

	for {
		ok, err := l.client.SetNX(ctx, fullKey, "1", l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				l.client.Del(releaseCtx, fullKey)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, ctx.Err())
		case <-time.After(l.retryWait):
		}
	}
}

// Close closes the underlying Redis client
func (l *RedisMonthlyLock) Close() error {
	return l.client.Close()
}

// InMemoryMonthlyLock implements MonthlyLock with per-key mutexes.
// Correct only within a single process; used in tests and
// single-instance deployments.
type InMemoryMonthlyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewInMemoryMonthlyLock creates an in-process monthly lock
func NewInMemoryMonthlyLock() *InMemoryMonthlyLock {
	return &InMemoryMonthlyLock{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the key's mutex. Keyed mutexes are never evicted; the
// key space is bounded by active supplier/category/month tuples.
func (l *InMemoryMonthlyLock) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	keyLock, ok := l.locks[key]
	if !ok {
		keyLock = &sync.Mutex{}
		l.locks[key] = keyLock
	}
	l.mu.Unlock()

	keyLock.Lock()
	return keyLock.Unlock, nil
}

var (
	_ MonthlyLock = (*RedisMonthlyLock)(nil)
	_ MonthlyLock = (*InMemoryMonthlyLock)(nil)
)
