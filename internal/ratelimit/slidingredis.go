package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SlidingWindow counts events in a Redis sorted set scored by time. It is
// exact but stores one member per accepted event, so it guards low limits
// such as quote submissions. Rejected attempts are not recorded, so a client
// hammering the endpoint is released once its accepted events age out.
type SlidingWindow struct {
	Client *redis.Client
	Prefix string
	Window time.Duration
	Max    int
	// Now is the clock used for scores. Defaults to time.Now.
	Now func() time.Time
}

func (l SlidingWindow) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Allow records one event for key when it fits the window.
func (l SlidingWindow) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	if l.Client == nil || l.Max <= 0 || l.Window <= 0 {
		return Decision{Allowed: true, Limit: l.Max, Remaining: l.Max, Reset: now.Add(l.Window)}, nil
	}

	redisKey := l.Prefix + key
	member := uuid.NewString()
	cutoff := strconv.FormatInt(now.Add(-l.Window).UnixMilli(), 10)

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+cutoff)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMilli()), Member: member})
	count := pipe.ZCard(ctx, redisKey)
	oldest := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	pipe.PExpire(ctx, redisKey, l.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{Limit: l.Max, Reset: now.Add(l.Window)}, err
	}

	reset := now.Add(l.Window)
	if first := oldest.Val(); len(first) > 0 {
		reset = time.UnixMilli(int64(first[0].Score)).Add(l.Window)
	}
	current := int(count.Val())
	if current > l.Max {
		if err := l.Client.ZRem(ctx, redisKey, member).Err(); err != nil {
			return Decision{Limit: l.Max, Reset: reset}, err
		}
		return Decision{Allowed: false, Limit: l.Max, Remaining: 0, Reset: reset}, nil
	}
	return Decision{Allowed: true, Limit: l.Max, Remaining: l.Max - current, Reset: reset}, nil
}
