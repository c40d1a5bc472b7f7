// Package lock serialises work on a key across processes sharing one Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * time.Second

// releaseScript deletes the key only while it still holds our token, so a
// holder whose lease expired cannot free a lock someone else acquired since.
var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`)

// Locker is a lease lock on SET NX PX. Waiters poll with capped exponential
// backoff until the context ends.
type Locker struct {
	R *redis.Client
	// RetryBackoff is the first poll interval. MaxBackoff caps it.
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
}

// WithLock runs fn while holding key. The lease lasts ttl; fn should finish
// well within it. A context that ends while waiting returns its error wrapped
// with the key.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	token := uuid.NewString()
	if err := l.acquire(ctx, key, token, ttl); err != nil {
		return err
	}
	defer l.release(key, token)
	return fn(ctx)
}

var errHeld = errors.New("held")

func (l Locker) acquire(ctx context.Context, key, token string, ttl time.Duration) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = l.RetryBackoff
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = 50 * time.Millisecond
	}
	policy.MaxInterval = l.MaxBackoff
	if policy.MaxInterval < policy.InitialInterval {
		policy.MaxInterval = 8 * policy.InitialInterval
	}
	policy.MaxElapsedTime = 0
	policy.Reset()

	err := backoff.Retry(func() error {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return backoff.Permanent(fmt.Errorf("lock: acquire %s: %w", key, err))
		}
		if !ok {
			return errHeld
		}
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return fmt.Errorf("lock: waiting for %s: %w", key, err)
	}
	return err
}

func (l Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, l.R, []string{key}, token).Err()
}
