package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashKeyNormalizesCaseAndWhitespace(t *testing.T) {
	require.Equal(t, HashKey("  Hello World  ", ""), HashKey("hello world", ""))
	require.NotEqual(t, HashKey("hello", "ctx-a"), HashKey("hello", "ctx-b"))
}

func TestGetMissThenSetThenHit(t *testing.T) {
	c := New(time.Hour, 10, nil)
	_, ok := c.Get("hello", "")
	require.False(t, ok)

	c.Set("hello", "", "world")
	resp, ok := c.Get("hello", "")
	require.True(t, ok)
	require.Equal(t, "world", resp)

	stats := c.Stats()
	require.Equal(t, 1, stats.Hits)
	require.Equal(t, 1, stats.Misses)
	require.Equal(t, 1, stats.APICallsSaved)
}

func TestGetEvictsExpiredEntryOnRead(t *testing.T) {
	c := New(time.Millisecond, 10, nil)
	c.Set("hello", "", "world")
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("hello", "")
	require.False(t, ok)
	require.Equal(t, 0, c.Stats().TotalEntries)
}

func TestSetEvictsOldestAtCapacity(t *testing.T) {
	c := New(time.Hour, 2, nil)
	c.Set("a", "", "1")
	c.Set("b", "", "2")
	c.Set("c", "", "3")

	_, ok := c.Get("a", "")
	require.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Get("b", "")
	require.True(t, ok)
	_, ok = c.Get("c", "")
	require.True(t, ok)
}

func TestSetOnExistingKeyMovesToBackAndDoesNotEvictIt(t *testing.T) {
	c := New(time.Hour, 2, nil)
	c.Set("a", "", "1")
	c.Set("b", "", "2")
	c.Set("a", "", "1-updated") // refresh "a", now "b" is oldest
	c.Set("c", "", "3")        // should evict "b", not "a"

	_, ok := c.Get("b", "")
	require.False(t, ok)
	resp, ok := c.Get("a", "")
	require.True(t, ok)
	require.Equal(t, "1-updated", resp)
}

func TestClearExpiredRemovesOnlyStaleEntries(t *testing.T) {
	c := New(5*time.Millisecond, 10, nil)
	c.Set("stale", "", "old")
	time.Sleep(10 * time.Millisecond)
	c.Set("fresh", "", "new")

	removed := c.ClearExpired()
	require.Equal(t, 1, removed)
	_, ok := c.Get("fresh", "")
	require.True(t, ok)
}

func TestClearAllEmptiesCache(t *testing.T) {
	c := New(time.Hour, 10, nil)
	c.Set("a", "", "1")
	c.ClearAll()
	require.Equal(t, 0, c.Stats().TotalEntries)
}

type fakeBackend struct {
	store map[string]string
}

func (f *fakeBackend) Get(key string) (string, bool) {
	v, ok := f.store[key]
	return v, ok
}

func (f *fakeBackend) Set(key, value string, ttl time.Duration) {
	f.store[key] = value
}

func TestGetFallsBackToDistributedBackendOnLocalMiss(t *testing.T) {
	backend := &fakeBackend{store: map[string]string{}}
	key := HashKey("hello", "")
	backend.store[key] = "from-redis"

	c := New(time.Hour, 10, backend)
	resp, ok := c.Get("hello", "")
	require.True(t, ok)
	require.Equal(t, "from-redis", resp)

	// now served locally without touching the backend again
	delete(backend.store, key)
	resp, ok = c.Get("hello", "")
	require.True(t, ok)
	require.Equal(t, "from-redis", resp)
}

func TestStatsHitRate(t *testing.T) {
	s := Stats{Hits: 3, TotalRequests: 4}
	require.InDelta(t, 75.0, s.HitRate(), 0.0001)
	require.Equal(t, float64(0), Stats{}.HitRate())
}
