package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"alcyxob/video-catalog/internal/config"

	"github.com/redis/go-redis/v9"
)

// ErrCorruptEntry is returned when a cached value cannot be decoded. It is a
// hard error rather than a miss so a bad writer does not go unnoticed.
var ErrCorruptEntry = errors.New("corrupt cache entry")

// Store is a key/value cache with per-key expiry. Values are JSON encoded.
// A miss is never an error: absence only means "ask the source of truth".
type Store interface {
	// Get decodes the value at key into dest and reports whether it was present.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	// Set stores value at key. A ttl of zero keeps the entry until it is deleted.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Delete removes the keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// SetTracked stores value like Set and records key in the registry set so
	// that a later DeleteTracked can find it.
	SetTracked(ctx context.Context, registry, key string, value interface{}, ttl time.Duration) error
	// DeleteTracked removes every key recorded in registry, and the registry itself.
	DeleteTracked(ctx context.Context, registry string) error
}

// purgeTrackedScript reads and clears a registry in one step. A SetTracked
// either lands before it (and is purged) or after it (and stays tracked).
var purgeTrackedScript = redis.NewScript(`
local keys = redis.call('SMEMBERS', KEYS[1])
for i = 1, #keys, 1000 do
  redis.call('DEL', unpack(keys, i, math.min(i + 999, #keys)))
end
redis.call('DEL', KEYS[1])
return #keys
`)

// NewClient builds a Redis client from configuration.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// redisStore implements Store on top of Redis strings and sets.
type redisStore struct {
	rdb redis.Cmdable
}

// NewRedisStore wraps a go-redis client. The registry purge script touches
// keys it does not declare, so cluster clients are not supported.
func NewRedisStore(rdb redis.Cmdable) Store {
	return &redisStore{rdb: rdb}
}

func (s *redisStore) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, key, err)
	}
	return true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value for %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del %v: %w", keys, err)
	}
	return nil
}

func (s *redisStore) SetTracked(ctx context.Context, registry, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value for %s: %w", key, err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, registry, key)
		pipe.Set(ctx, key, raw, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set tracked %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) DeleteTracked(ctx context.Context, registry string) error {
	if err := purgeTrackedScript.Run(ctx, s.rdb, []string{registry}).Err(); err != nil {
		return fmt.Errorf("redis purge %s: %w", registry, err)
	}
	return nil
}
