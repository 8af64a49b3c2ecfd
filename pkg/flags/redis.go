package flags

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "dualstore:flags"

// RedisClient is the subset of *redis.Client the source uses.
type RedisClient interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// RedisSource reads flags from Redis hashes. Global values live in the hash
// named prefix; per-caller overrides in "<prefix>:caller:<callerID>". Values
// are stored as strings ("true", "0.25", "blue").
type RedisSource struct {
	client RedisClient
	prefix string
}

func NewRedisSource(client RedisClient, prefix string) *RedisSource {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisSource{client: client, prefix: prefix}
}

// NewRedisClient builds a go-redis client for addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (r *RedisSource) callerKey(callerID string) string {
	return r.prefix + ":caller:" + callerID
}

func (r *RedisSource) raw(ctx context.Context, callerID, key string) (string, bool, error) {
	if callerID != "" {
		v, err := r.client.HGet(ctx, r.callerKey(callerID), key).Result()
		if err == nil {
			return v, true, nil
		}
		if !errors.Is(err, redis.Nil) {
			return "", false, fmt.Errorf("redis flag lookup %q: %w", key, err)
		}
	}
	v, err := r.client.HGet(ctx, r.prefix, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis flag lookup %q: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisSource) GetBoolean(ctx context.Context, callerID, key string, def bool) (bool, error) {
	v, ok, err := r.raw(ctx, callerID, key)
	if err != nil || !ok {
		return def, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, &TypeError{Key: key, Want: "bool", Got: v}
	}
	return b, nil
}

func (r *RedisSource) GetNumber(ctx context.Context, callerID, key string, def float64) (float64, error) {
	v, ok, err := r.raw(ctx, callerID, key)
	if err != nil || !ok {
		return def, err
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, &TypeError{Key: key, Want: "number", Got: v}
	}
	return n, nil
}

func (r *RedisSource) All(ctx context.Context, callerID string) (map[string]any, error) {
	global, err := r.client.HGetAll(ctx, r.prefix).Result()
	if err != nil {
		return nil, fmt.Errorf("redis flag listing: %w", err)
	}
	out := make(map[string]any, len(global))
	for k, v := range global {
		out[k] = decode(v)
	}
	if callerID == "" {
		return out, nil
	}
	overrides, err := r.client.HGetAll(ctx, r.callerKey(callerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis flag listing: %w", err)
	}
	for k, v := range overrides {
		out[k] = decode(v)
	}
	return out, nil
}

func decode(v string) any {
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n
	}
	return v
}
