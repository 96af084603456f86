package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "replay:v1:"

// Redis is a Store backed by Redis, for deployments that want replay records
// shared across restarts of the process. SETNX gives first write wins; Redis
// expiry gives the TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis builds a Redis-backed store whose records live for ttl.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Lookup fetches the payload stored under key, absent on a miss.
func (r *Redis) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("replay lookup: %w", err)
	}
	return payload, true, nil
}

// Store writes the payload unless the key already holds a live record.
func (r *Redis) Store(ctx context.Context, key string, payload []byte) error {
	if err := r.client.SetNX(ctx, redisKeyPrefix+key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("replay store: %w", err)
	}
	return nil
}
