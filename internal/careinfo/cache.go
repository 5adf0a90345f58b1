package careinfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dukerupert/plantcare/internal/model"
)

const (
	cacheKeyPrefix  = "plantcare:care:"
	DefaultCacheTTL = 24 * time.Hour
)

// Cache stores care suggestions by species. Get returns nil, nil on a miss.
type Cache interface {
	Get(ctx context.Context, species string) (*model.PlantCareInfo, error)
	Set(ctx context.Context, species string, info *model.PlantCareInfo) error
}

// ConnectRedis parses uri, dials and pings the server.
func ConnectRedis(ctx context.Context, uri string) (*redis.Client, error) {
	opt, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.PoolSize = 10
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(species string) string {
	return cacheKeyPrefix + strings.ToLower(strings.TrimSpace(species))
}

func (c *RedisCache) Get(ctx context.Context, species string) (*model.PlantCareInfo, error) {
	raw, err := c.client.Get(ctx, cacheKey(species)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read care cache: %w", err)
	}

	var info model.PlantCareInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decode care cache: %w", err)
	}
	return &info, nil
}

func (c *RedisCache) Set(ctx context.Context, species string, info *model.PlantCareInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode care cache: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(species), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write care cache: %w", err)
	}
	return nil
}
