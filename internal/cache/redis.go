package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "roulette:page:"

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func buildKey(key string) string {
	return keyPrefix + key
}

// Get page from redis
func (s *RedisStore) Load(ctx context.Context, key string) (*Entry, bool, error) {
	k := buildKey(key)
	val, err := s.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get page from cache: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal page %s: %w", k, err)
	}
	return &e, true, nil
}

// Store page in redis, expiring slightly after the cache TTL
func (s *RedisStore) Save(ctx context.Context, key string, e *Entry, ttl time.Duration) error {
	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal page: %w", err)
	}
	if err := s.client.Set(ctx, buildKey(key), val, ttl+time.Minute).Err(); err != nil {
		return fmt.Errorf("failed to set page in cache: %w", err)
	}
	return nil
}

// Remove stale pages. Redis expiry already covers most of them.
func (s *RedisStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		val, err := s.client.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("cache get %s: %w", k, err)
		}
		var e Entry
		if err := json.Unmarshal(val, &e); err == nil && e.FetchedAt.After(cutoff) {
			continue
		}
		if err := s.client.Del(ctx, k).Err(); err != nil {
			return removed, fmt.Errorf("cache delete %s: %w", k, err)
		}
		removed++
	}
	return removed, iter.Err()
}

// Ping connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
