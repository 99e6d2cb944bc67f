package fetchcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"scribe/internal/logging"
	"scribe/internal/source"
)

// Entry is one persisted cache record.
type Entry struct {
	SourceID  string       `json:"source_id"`
	Item      *source.Item `json:"item"`
	CachedAt  time.Time    `json:"cached_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// FileCache is a JSON-file backed cache safe for concurrent use.
type FileCache struct {
	path    string
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewFileCache loads the cache at path. An empty path yields a cache that
// never stores anything. The file is created lazily on first Put.
func NewFileCache(path string, ttl time.Duration, logger *slog.Logger) *FileCache {
	if logger == nil {
		logger = logging.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &FileCache{
		path:    strings.TrimSpace(path),
		ttl:     ttl,
		logger:  logging.NewComponentLogger(logger, "fetchcache"),
		now:     time.Now,
		entries: make(map[string]Entry),
	}
	if c.path == "" {
		return c
	}
	if err := c.load(); err != nil {
		c.logger.Warn("failed to load fetch cache",
			logging.String(logging.FieldEventType, "fetchcache_load_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "cache will start empty"),
			logging.String(logging.FieldImpact, "previously fetched transcripts will be fetched again"))
	}
	return c
}

// Get implements Cache. Expired entries read as misses and are dropped on the
// next write.
func (c *FileCache) Get(_ context.Context, sourceID string) (*source.Item, bool, error) {
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" || c.path == "" {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[sourceID]
	if !ok || entry.Item == nil || !c.now().Before(entry.ExpiresAt) {
		return nil, false, nil
	}
	return entry.Item, true, nil
}

// Put implements Cache.
func (c *FileCache) Put(_ context.Context, sourceID string, item *source.Item) error {
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return errors.New("source id cannot be empty")
	}
	if item == nil {
		return errors.New("item cannot be nil")
	}
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UTC()
	c.pruneLocked(now)
	c.entries[sourceID] = Entry{
		SourceID:  sourceID,
		Item:      item,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}
	if err := c.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	c.logger.Debug("cached transcript",
		logging.String(logging.FieldSourceID, sourceID),
		logging.Int("fragment_count", len(item.Fragments)),
		logging.String("provider", item.Provider))
	return nil
}

// List returns live entries, newest first.
func (c *FileCache) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.now()
	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		if now.Before(entry.ExpiresAt) {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CachedAt.After(entries[j].CachedAt)
	})
	return entries
}

// Clear removes all entries and persists the empty cache.
func (c *FileCache) Clear() error {
	if c.path == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
	if err := c.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	return nil
}

func (c *FileCache) pruneLocked(now time.Time) {
	for id, entry := range c.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(c.entries, id)
		}
	}
}

func (c *FileCache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}
	c.entries = make(map[string]Entry, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.SourceID) != "" && entry.Item != nil {
			c.entries[entry.SourceID] = entry
		}
	}
	c.logger.Debug("loaded fetch cache",
		logging.Int("entry_count", len(c.entries)),
		logging.String("path", c.path))
	return nil
}

// save writes the cache atomically via a temp file and rename.
func (c *FileCache) save() error {
	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SourceID < entries[j].SourceID
	})
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
