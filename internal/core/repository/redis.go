package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/duynhne/sawa-admin/internal/core/domain"
)

// ConnectRedis initializes a Redis client from URL or host:port input.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisLocalStorage keeps one hash per client scope, without expiry.
type RedisLocalStorage struct {
	client *redis.Client
}

// NewRedisLocalStorage returns a LocalStorage backed by client.
func NewRedisLocalStorage(client *redis.Client) *RedisLocalStorage {
	return &RedisLocalStorage{client: client}
}

var _ domain.LocalStorage = (*RedisLocalStorage)(nil)

func localStorageKey(scope string) string {
	return "console:ls:" + scope
}

// GetItem reads one field of the scope hash.
func (s *RedisLocalStorage) GetItem(ctx context.Context, scope, key string) (string, bool, error) {
	value, err := s.client.HGet(ctx, localStorageKey(scope), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetItem writes one field of the scope hash.
func (s *RedisLocalStorage) SetItem(ctx context.Context, scope, key, value string) error {
	return s.client.HSet(ctx, localStorageKey(scope), key, value).Err()
}

// RemoveItem deletes one field of the scope hash.
func (s *RedisLocalStorage) RemoveItem(ctx context.Context, scope, key string) error {
	return s.client.HDel(ctx, localStorageKey(scope), key).Err()
}

// RedisProfileCache stores /auth/me results as JSON with a TTL.
type RedisProfileCache struct {
	client *redis.Client
}

// NewRedisProfileCache returns a ProfileCache backed by client.
func NewRedisProfileCache(client *redis.Client) *RedisProfileCache {
	return &RedisProfileCache{client: client}
}

var _ domain.ProfileCache = (*RedisProfileCache)(nil)

// Get returns the cached profile for token, or nil on a miss.
func (c *RedisProfileCache) Get(ctx context.Context, token string) (*domain.User, error) {
	raw, err := c.client.Get(ctx, profileCacheKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("decode cached profile: %w", err)
	}
	return &user, nil
}

// Set caches user for ttl. A nil user or a non-positive ttl is ignored.
func (c *RedisProfileCache) Set(ctx context.Context, token string, user *domain.User, ttl time.Duration) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, profileCacheKey(token), raw, ttl).Err()
}

// Delete drops the profile cached for token.
func (c *RedisProfileCache) Delete(ctx context.Context, token string) error {
	return c.client.Del(ctx, profileCacheKey(token)).Err()
}
