package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps JSON and raw string helpers over a Redis client. A nil client
// turns every call into a miss so callers work without Redis configured.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// New constructs a cache helper. A zero ttl stores keys without expiry.
func New(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Enabled reports whether a client is configured.
func (c *Redis) Enabled() bool {
	return c != nil && c.client != nil
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Redis) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, ok, err := c.get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Redis) SetJSON(ctx context.Context, key string, v any) error {
	if !c.Enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// GetRaw returns a cached string value.
func (c *Redis) GetRaw(ctx context.Context, key string) (string, bool, error) {
	data, ok, err := c.get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	return string(data), true, nil
}

// SetRaw stores a string value with the configured TTL.
func (c *Redis) SetRaw(ctx context.Context, key, value string) error {
	if !c.Enabled() || key == "" {
		return nil
	}
	return c.client.Set(ctx, key, value, c.ttl).Err()
}

// Delete removes keys, ignoring missing ones.
func (c *Redis) Delete(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *Redis) get(ctx context.Context, key string) ([]byte, bool, error) {
	if !c.Enabled() || key == "" {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}
