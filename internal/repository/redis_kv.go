package repository

import (
	"context"

	"github.com/go-redis/redis/v8"
)

type redisKV struct {
	client *redis.Client
}

// NewRedisKV 以 Redis 作为 KV 的实现。值不设过期时间。
func NewRedisKV(client *redis.Client) KV {
	return &redisKV{client: client}
}

func (r *redisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (r *redisKV) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}
