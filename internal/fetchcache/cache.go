package fetchcache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scribe/internal/config"
	"scribe/internal/source"
)

// DefaultTTL is how long a fetched transcript stays reusable.
const DefaultTTL = 24 * time.Hour

// Cache stores fetched transcripts by source id.
type Cache interface {
	Get(ctx context.Context, sourceID string) (*source.Item, bool, error)
	Put(ctx context.Context, sourceID string, item *source.Item) error
}

// Noop never stores anything.
type Noop struct{}

// Get implements Cache.
func (Noop) Get(context.Context, string) (*source.Item, bool, error) { return nil, false, nil }

// Put implements Cache.
func (Noop) Put(context.Context, string, *source.Item) error { return nil }

// Open returns the backend selected by the [cache] section.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Cache, error) {
	ttl := cfg.CacheTTL()
	switch cfg.Cache.Backend {
	case config.CacheBackendNone:
		return Noop{}, nil
	case config.CacheBackendRedis:
		return NewRedisCache(ctx, cfg.Cache.RedisURL, ttl, logger)
	case config.CacheBackendFile, "":
		return NewFileCache(cfg.Cache.Path, ttl, logger), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Cache.Backend)
	}
}
