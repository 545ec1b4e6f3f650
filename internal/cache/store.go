package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/observability"

	"github.com/redis/go-redis/v9"
)

// PostsListKey caches the front page post list.
const PostsListKey = "posts:all"

// PostKey returns the cache key for a single post with its comments.
func PostKey(postID uint) string {
	return fmt.Sprintf("posts:%d", postID)
}

// Store is a JSON cache over Redis. A nil Store, or one without a client, is a no-op cache
// that always misses.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns a Store writing entries with the given TTL.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Enabled reports whether the store is backed by Redis.
func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

// GetJSON loads key into dest. It reports false on a miss or any Redis error.
func (s *Store) GetJSON(ctx context.Context, key string, dest any) bool {
	if !s.Enabled() {
		return false
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		observability.CacheLookups.WithLabelValues("miss").Inc()
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		middleware.Logger.WarnContext(ctx, "cache entry corrupt, dropping", slog.String("key", key))
		_ = s.client.Del(ctx, key).Err()
		observability.CacheLookups.WithLabelValues("miss").Inc()
		return false
	}
	observability.CacheLookups.WithLabelValues("hit").Inc()
	return true
}

// SetJSON stores value under key. Failures are logged and otherwise ignored.
func (s *Store) SetJSON(ctx context.Context, key string, value any) {
	if !s.Enabled() {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache encode failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Delete removes keys. Failures are logged and otherwise ignored.
func (s *Store) Delete(ctx context.Context, keys ...string) {
	if !s.Enabled() || len(keys) == 0 {
		return
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache delete failed", slog.Any("keys", keys), slog.String("error", err.Error()))
	}
}

// Aside serves dest from the cache, or calls load to fill it and stores the result.
// Errors from load are returned as is and nothing is cached.
func (s *Store) Aside(ctx context.Context, key string, dest any, load func() error) error {
	if s.GetJSON(ctx, key, dest) {
		return nil
	}
	if err := load(); err != nil {
		return err
	}
	s.SetJSON(ctx, key, dest)
	return nil
}

// InvalidatePost drops the cached post and the front page list.
func (s *Store) InvalidatePost(ctx context.Context, postID uint) {
	s.Delete(ctx, PostsListKey, PostKey(postID))
}
