package configsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/designjam/countdown/go/internal/models"
)

const DefaultRedisKey = "competition:config"

// RedisCache shares the fetched config between gateway instances.
type RedisCache struct {
	client *redis.Client
	key    string
}

func NewRedisCache(client *redis.Client, key string) *RedisCache {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisCache{client: client, key: key}
}

// OpenRedis creates a client and pings it to validate the connection.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("empty redis addr")
	}
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return c, nil
}

func (c *RedisCache) Get(ctx context.Context) (models.CompetitionConfig, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.CompetitionConfig{}, false, nil
	}
	if err != nil {
		return models.CompetitionConfig{}, false, fmt.Errorf("failed to get %s: %w", c.key, err)
	}

	var config models.CompetitionConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return models.CompetitionConfig{}, false, fmt.Errorf("failed to unmarshal cached config: %w", err)
	}
	return config, true, nil
}

func (c *RedisCache) Set(ctx context.Context, config models.CompetitionConfig, ttl time.Duration) error {
	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return c.client.Set(ctx, c.key, data, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
