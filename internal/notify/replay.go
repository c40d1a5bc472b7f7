package notify

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/camper-configurator/internal/cache"
)

const (
	replayPending   = "pending"
	replayDelivered = "delivered"
)

var releasePending = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`)

// RedisReplayProtector remembers quote deliveries in Redis. A claim starts
// pending and becomes delivered once the webhook accepted the quote.
type RedisReplayProtector struct {
	Client *redis.Client
}

// Acquire claims key for an in-flight delivery lasting at most ttl.
func (r RedisReplayProtector) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.Client == nil {
		return true, nil
	}
	return r.Client.SetNX(ctx, cache.KeyWebhookNonce(key), replayPending, ttl).Result()
}

// Confirm marks key delivered for ttl.
func (r RedisReplayProtector) Confirm(ctx context.Context, key string, ttl time.Duration) error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Set(ctx, cache.KeyWebhookNonce(key), replayDelivered, ttl).Err()
}

// Release drops a pending claim so the delivery can be retried. Confirmed
// deliveries are left in place.
func (r RedisReplayProtector) Release(ctx context.Context, key string) error {
	if r.Client == nil {
		return nil
	}
	return releasePending.Run(ctx, r.Client, []string{cache.KeyWebhookNonce(key)}, replayPending).Err()
}
