package fetchcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribe/internal/source"
	"scribe/internal/transcript"
)

func sampleItem(id string) *source.Item {
	return &source.Item{
		SourceID:  id,
		Language:  "en",
		Provider:  "transcript-api",
		RawText:   "hello world.",
		Fragments: []transcript.Fragment{{Text: "hello world.", Start: 0, Duration: 2}},
	}
}

func TestFileCachePutGet(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")
	cache := NewFileCache(path, time.Hour, nil)

	_, ok, err := cache.Get(ctx, "abcdefghijk")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, "abcdefghijk", sampleItem("abcdefghijk")))
	got, ok, err := cache.Get(ctx, "abcdefghijk")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello world.", got.RawText)

	reloaded := NewFileCache(path, time.Hour, nil)
	got, ok, err = reloaded.Get(ctx, "abcdefghijk")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got.Fragments, 1)
	assert.Len(t, reloaded.List(), 1)
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	cache := NewFileCache(filepath.Join(t.TempDir(), "cache.json"), time.Hour, nil)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Put(ctx, "abcdefghijk", sampleItem("abcdefghijk")))
	now = now.Add(59 * time.Minute)
	_, ok, _ := cache.Get(ctx, "abcdefghijk")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = cache.Get(ctx, "abcdefghijk")
	assert.False(t, ok)
	assert.Empty(t, cache.List())

	require.NoError(t, cache.Put(ctx, "zyxwvutsrqp", sampleItem("zyxwvutsrqp")))
	cache.mu.RLock()
	_, stale := cache.entries["abcdefghijk"]
	cache.mu.RUnlock()
	assert.False(t, stale, "expired entries are pruned on write")
}

func TestFileCacheCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	cache := NewFileCache(path, time.Hour, nil)
	assert.Empty(t, cache.List())
}

func TestFileCacheEmptyPathIsNoop(t *testing.T) {
	cache := NewFileCache("", time.Hour, nil)
	require.NoError(t, cache.Put(context.Background(), "abcdefghijk", sampleItem("abcdefghijk")))
	_, ok, _ := cache.Get(context.Background(), "abcdefghijk")
	assert.False(t, ok)
}

func TestFileCacheRejectsEmptyID(t *testing.T) {
	cache := NewFileCache(filepath.Join(t.TempDir(), "c.json"), time.Hour, nil)
	assert.Error(t, cache.Put(context.Background(), " ", sampleItem("x")))
	assert.Error(t, cache.Put(context.Background(), "abcdefghijk", nil))
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")
	cache := NewFileCache(path, time.Hour, nil)
	require.NoError(t, cache.Put(ctx, "abcdefghijk", sampleItem("abcdefghijk")))
	require.NoError(t, cache.Clear())
	assert.Empty(t, NewFileCache(path, time.Hour, nil).List())
}

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "transcript:abcdefghijk", Key(" abcdefghijk "))
}

func TestRedisCacheRoundTrip(t *testing.T) {
	url := os.Getenv("SCRIBE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SCRIBE_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	cache, err := NewRedisCache(ctx, url, time.Minute, nil)
	require.NoError(t, err)
	defer cache.Close()

	id := "testid_" + time.Now().Format("0405")
	require.NoError(t, cache.Put(ctx, id, sampleItem(id)))
	got, ok, err := cache.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, got.SourceID)

	_, ok, err = cache.Get(ctx, "missing_"+id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNoop(t *testing.T) {
	var c Cache = Noop{}
	require.NoError(t, c.Put(context.Background(), "a", nil))
	_, ok, err := c.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, ok)
}
