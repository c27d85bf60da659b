package persist

import (
	"context"
	"errors"
	"fmt"

	rdb "github.com/redis/go-redis/v9"
)

type redisBackend struct {
	c *rdb.Client
}

// NewRedis stores values under "<namespace>:<key>" without expiry; token
// lifetimes are enforced by the cache reader.
func NewRedis(addr string, db int) Backend {
	return &redisBackend{c: rdb.NewClient(&rdb.Options{Addr: addr, DB: db})}
}

func redisKey(namespace, key string) string {
	return namespace + ":" + key
}

func (r *redisBackend) Load(ctx context.Context, namespace, key string) (string, bool, error) {
	v, err := r.c.Get(ctx, redisKey(namespace, key)).Result()
	if errors.Is(err, rdb.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (r *redisBackend) Store(ctx context.Context, namespace, key, value string) error {
	if err := r.c.Set(ctx, redisKey(namespace, key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *redisBackend) Delete(ctx context.Context, namespace, key string) error {
	if err := r.c.Del(ctx, redisKey(namespace, key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *redisBackend) Close() error {
	return r.c.Close()
}
