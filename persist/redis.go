package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps any Redis transport failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisKV stores entries under prefix:scope:key. A positive ttl expires every
// write; zero keeps entries until deleted.
type RedisKV struct {
	client redis.UniversalClient
	prefix string
	scope  string
	ttl    time.Duration
}

// NewRedisKV returns a store for one scope, e.g. "secure" or "plain". An
// empty prefix defaults to "gs".
func NewRedisKV(client redis.UniversalClient, prefix, scope string, ttl time.Duration) *RedisKV {
	if prefix == "" {
		prefix = "gs"
	}
	return &RedisKV{
		client: client,
		prefix: prefix,
		scope:  scope,
		ttl:    ttl,
	}
}

// NewRedisSplit returns a Split whose secure and plain scopes share one client.
func NewRedisSplit(client redis.UniversalClient, prefix string, ttl time.Duration) *Split {
	return NewSplit(
		NewRedisKV(client, prefix, "secure", ttl),
		NewRedisKV(client, prefix, "plain", ttl),
	)
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (r *RedisKV) key(key string) string {
	return r.prefix + ":" + r.scope + ":" + key
}
