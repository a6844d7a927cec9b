package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idem:"

// releaseScript deletes the key only while it is still pending.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return client, nil
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Reserve(ctx context.Context, key string) (string, error) {
	k := keyPrefix + key
	ok, err := r.client.SetNX(ctx, k, pending, r.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis: setnx: %w", err)
	}
	if ok {
		return "", nil
	}

	val, err := r.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return r.Reserve(ctx, key)
	}
	if err != nil {
		return "", fmt.Errorf("redis: get: %w", err)
	}
	if val == pending {
		return "", ErrInFlight
	}
	return val, nil
}

func (r *RedisStore) Complete(ctx context.Context, key, result string) error {
	if err := r.client.Set(ctx, keyPrefix+key, result, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set: %w", err)
	}
	return nil
}

func (r *RedisStore) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, r.client, []string{keyPrefix + key}, pending).Err(); err != nil {
		return fmt.Errorf("redis: release: %w", err)
	}
	return nil
}
