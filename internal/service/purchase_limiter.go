package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// slidingWindowScript counts events in the trailing window and admits one
// more if the limit allows it. Returns {allowed, resetAt}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = now + window
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    end
    return {0, resetAt}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('EXPIRE', key, window + 10)
return {1, now + window}
`)

// PurchaseLimiter caps how many checkouts one client may open per window.
type PurchaseLimiter struct {
	client redis.Scripter
	limit  int
	window time.Duration
}

func NewPurchaseLimiter(client redis.Scripter, limit int, window time.Duration) *PurchaseLimiter {
	return &PurchaseLimiter{client: client, limit: limit, window: window}
}

// Allow fails open when redis cannot be reached.
func (l *PurchaseLimiter) Allow(ctx context.Context, clientID int64) (bool, time.Time) {
	now := time.Now().Unix()
	key := fmt.Sprintf("purchase_limit:%d", clientID)

	result, err := slidingWindowScript.Run(ctx, l.client, []string{key}, now, int64(l.window.Seconds()), l.limit).Int64Slice()
	if err != nil {
		log.Warn().Err(err).Int64("clientId", clientID).Msg("purchase limit check failed, allowing")
		return true, time.Time{}
	}
	if len(result) != 2 {
		log.Warn().Int64("clientId", clientID).Msg("unexpected purchase limit result, allowing")
		return true, time.Time{}
	}
	return result[0] == 1, time.Unix(result[1], 0)
}
