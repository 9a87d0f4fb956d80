package storage

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisOpTimeout = 5 * time.Second

// RedisStore keeps the key-value space in Redis so several gateway replicas
// can share one state space. The Store contract stays synchronous; each call
// runs under a short internal timeout. A Redis instance capped with
// maxmemory surfaces its OOM refusals as ErrQuotaExceeded so the adapter's
// eviction path still applies.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisStore verifies connectivity and returns a store namespaced under
// prefix.
func NewRedisStore(client *redis.Client, prefix string, logger *zap.Logger) (*RedisStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client, prefix: prefix, logger: logger}, nil
}

func (r *RedisStore) Get(key string) ([]byte, bool) {
	ctx, cancel := r.ctx()
	defer cancel()

	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("Redis read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return value, true
}

func (r *RedisStore) Set(key string, value []byte) error {
	ctx, cancel := r.ctx()
	defer cancel()

	err := r.client.Set(ctx, r.prefix+key, value, 0).Err()
	if err != nil && strings.Contains(err.Error(), "OOM") {
		return ErrQuotaExceeded
	}
	return err
}

func (r *RedisStore) Remove(key string) {
	ctx, cancel := r.ctx()
	defer cancel()

	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		r.logger.Warn("Redis delete failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *RedisStore) Keys() []string {
	ctx, cancel := r.ctx()
	defer cancel()

	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		r.logger.Warn("Redis scan failed", zap.Error(err))
	}
	return keys
}

func (r *RedisStore) Clear() {
	for _, key := range r.Keys() {
		r.Remove(key)
	}
}

func (r *RedisStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}
