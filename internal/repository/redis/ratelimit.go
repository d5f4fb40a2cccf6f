package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Sliding window over a sorted set of attempt timestamps. The attempt is
// recorded only when admitted, so a client hammering a full window does not
// push its own recovery further out.
//
// KEYS[1] window key, ARGV[1] now (ms), ARGV[2] window (ms), ARGV[3] limit,
// ARGV[4] attempt id. Returns {admitted, count, retry_ms}.
const admitScript = `
local cutoff = tonumber(ARGV[1]) - tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, cutoff)

local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[3]) then
  local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
  local retry = 0
  if oldest[2] then
    retry = tonumber(oldest[2]) - cutoff
    if retry < 0 then retry = 0 end
  end
  return {0, count, retry}
end

redis.call('ZADD', KEYS[1], tonumber(ARGV[1]), ARGV[4])
redis.call('PEXPIRE', KEYS[1], tonumber(ARGV[2]))
return {1, count + 1, 0}
`

type SlidingWindowLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
	admit  *redis.Script
}

func NewSlidingWindowLimiter(
	rdb *redis.Client,
	prefix string,
	limit int,
	window time.Duration,
) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		rdb:    rdb,
		prefix: prefix,
		limit:  limit,
		window: window,
		admit:  redis.NewScript(admitScript),
	}
}

// Allow admits or rejects one attempt for the client identified by suffix.
// On rejection retryAfter says when the oldest recorded attempt ages out.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, suffix string) (allowed bool, current int64, retryAfter time.Duration, err error) {
	res, err := l.admit.Run(
		ctx,
		l.rdb,
		[]string{l.prefix + ":" + suffix},
		time.Now().UnixMilli(),
		l.window.Milliseconds(),
		l.limit,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return false, 0, 0, err
	}
	if len(res) != 3 {
		return false, 0, 0, fmt.Errorf("rate limit script returned %d values", len(res))
	}

	return res[0] == 1, res[1], time.Duration(res[2]) * time.Millisecond, nil
}
