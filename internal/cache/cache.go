// Package cache is an optional Redis cache for terminal generation tasks.
// Terminal states never change, so cached entries can never go stale. A nil
// *Cache is valid and disables caching.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/yxzhang/storycut/internal/models"
)

const (
	keyPrefix = "storycut:task:"
	taskTTL   = 24 * time.Hour
)

type Cache struct {
	client *redis.Client
	logger zerolog.Logger
}

func New(redisURL string, logger zerolog.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
	}, nil
}

// GetTask returns the cached terminal task, or nil when absent, disabled, or
// unreadable. Cache trouble is never an error; the DB is the authority.
func (c *Cache) GetTask(ctx context.Context, taskID string) *models.VideoTask {
	if c == nil {
		return nil
	}

	data, err := c.client.Get(ctx, keyPrefix+taskID).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("task_id", taskID).Msg("cache read failed")
		return nil
	}

	var task models.VideoTask
	if err := json.Unmarshal(data, &task); err != nil {
		c.logger.Warn().Err(err).Str("task_id", taskID).Msg("cache entry corrupt, dropping")
		c.client.Del(ctx, keyPrefix+taskID)
		return nil
	}
	return &task
}

// SetTask stores a task, but only once it is terminal; active tasks still
// change and must always be read from the DB.
func (c *Cache) SetTask(ctx context.Context, task *models.VideoTask) {
	if c == nil || task == nil || !task.Status.Terminal() {
		return
	}

	data, err := json.Marshal(task)
	if err != nil {
		c.logger.Warn().Err(err).Str("task_id", task.TaskID).Msg("failed to marshal task for cache")
		return
	}

	if err := c.client.Set(ctx, keyPrefix+task.TaskID, data, taskTTL).Err(); err != nil {
		c.logger.Warn().Err(err).Str("task_id", task.TaskID).Msg("cache write failed")
	}
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
