package fetchcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"scribe/internal/logging"
	"scribe/internal/source"
)

const redisKeyPrefix = "transcript:"

// RedisCache stores entries as JSON strings with a server-side expiry.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache connects to url (redis://...) and pings the server.
func NewRedisCache(ctx context.Context, url string, ttl time.Duration, logger *slog.Logger) (*RedisCache, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("redis cache: url required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis cache: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis cache: ping: %w", err)
	}
	return NewRedisCacheFromClient(client, ttl, logger), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = logging.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logging.NewComponentLogger(logger, "fetchcache"),
	}
}

// Key is the redis key holding sourceID's entry.
func Key(sourceID string) string {
	return redisKeyPrefix + strings.TrimSpace(sourceID)
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, sourceID string) (*source.Item, bool, error) {
	raw, err := c.client.Get(ctx, Key(sourceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis cache get: %w", err)
	}
	var item source.Item
	if err := json.Unmarshal(raw, &item); err != nil {
		c.logger.Warn("discarding unreadable cache entry",
			logging.String(logging.FieldEventType, "fetchcache_decode_failed"),
			logging.String(logging.FieldSourceID, sourceID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "entry will be refetched"),
			logging.String(logging.FieldImpact, "one extra upstream fetch"))
		return nil, false, nil
	}
	return &item, true, nil
}

// Put implements Cache.
func (c *RedisCache) Put(ctx context.Context, sourceID string, item *source.Item) error {
	if strings.TrimSpace(sourceID) == "" {
		return errors.New("source id cannot be empty")
	}
	if item == nil {
		return errors.New("item cannot be nil")
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("redis cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, Key(sourceID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis cache set: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
