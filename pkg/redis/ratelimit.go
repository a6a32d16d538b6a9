package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindowScript bumps the counter and starts its window on the first hit,
// in one round trip so a crash can never leave a counter without a TTL.
var incrWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// FixedWindowAllow counts one hit against scope and reports whether the
// count is still within limit for the current window.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if c.rdb == nil {
		return false, 0, errNotInitialized
	}
	count, err := incrWindowScript.Run(ctx, c.rdb, []string{c.RateLimitKey(scope)}, window.Milliseconds()).Int64()
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}
