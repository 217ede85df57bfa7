package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aluiziolira/go-scrape-prices/models"
)

// RedisClient is the subset of *redis.Client the cache needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Redis stores results as JSON so several processes can share them.
type Redis struct {
	client RedisClient
	ttl    time.Duration
}

func NewRedis(client RedisClient, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) (*models.SearchResult, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("cache read failed", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}

	var result models.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		slog.Warn("cache entry is not a search result", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	return &result, true
}

func (r *Redis) Set(ctx context.Context, key string, result *models.SearchResult) {
	if result == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		slog.Warn("cache encode failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		slog.Warn("cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}
