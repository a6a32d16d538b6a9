package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sportsarena/membership-backend/pkg/redis"
)

const (
	defaultLockName = "cron-worker"
	defaultLockTTL  = 30 * time.Minute
)

// Lock coordinates exclusive cron runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisLock holds a named Redis lock for the length of one cycle.
type RedisLock struct {
	locker redis.Locker
	name   string
	ttl    time.Duration
	held   *redis.Lock
}

// NewRedisLock constructs a Redis-backed lock. The TTL must outlast a cycle.
func NewRedisLock(locker redis.Locker, name string, ttl time.Duration) (*RedisLock, error) {
	if locker == nil {
		return nil, errors.New("redis locker required for lock")
	}
	if name == "" {
		name = defaultLockName
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{locker: locker, name: name, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	held, err := l.locker.AcquireLock(ctx, l.name, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.name, err)
	}
	l.held = held
	return held != nil, nil
}

// Release frees the lock. Losing it to TTL expiry mid-cycle is reported.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.held == nil {
		return nil
	}
	err := l.held.Release(ctx)
	l.held = nil
	if errors.Is(err, redis.ErrLockNotHeld) {
		return fmt.Errorf("lock %s expired before release", l.name)
	}
	return err
}
