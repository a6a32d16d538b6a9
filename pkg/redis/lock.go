package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotHeld is returned when a lock was lost or taken by another holder.
var ErrLockNotHeld = errors.New("lock not held")

// releaseScript deletes the lock only when it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a held job lock. Release it when the job is done.
type Lock struct {
	rdb   redis.UniversalClient
	key   string
	token string
}

// AcquireLock takes the named lock for ttl. It returns nil, nil when another
// holder already owns it.
func (c *Client) AcquireLock(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}
	if c.rdb == nil {
		return nil, errNotInitialized
	}
	l := &Lock{rdb: c.rdb, key: c.LockKey(name), token: uuid.NewString()}
	ok, err := c.rdb.SetNX(ctx, l.key, l.token, ttl).Result()
	if err != nil || !ok {
		return nil, err
	}
	return l, nil
}

// Release drops the lock if it is still ours.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil || l.rdb == nil {
		return nil
	}
	deleted, err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Int64()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrLockNotHeld
	}
	return nil
}
