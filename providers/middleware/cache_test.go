package middleware

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_MemoryHit(t *testing.T) {
	inner := &fakeGenerator{}
	stats := NewCacheStats()
	mw, err := Cache(CacheOptions{Namespace: "m", Stats: stats})
	require.NoError(t, err)
	gen := mw(inner)

	ctx := Cacheable(context.Background())
	first, err := gen.Generate(ctx, "class Calculator")
	require.NoError(t, err)
	second, err := gen.Generate(ctx, "class Calculator")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.callCount())

	snap := stats.Snapshot()
	assert.Equal(t, int64(2), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.MemoryHits)
	assert.Equal(t, int64(1), snap.Misses)
	assert.InDelta(t, 50.0, snap.HitRate, 0.001)
}

func TestCache_UnmarkedCallsBypass(t *testing.T) {
	inner := &fakeGenerator{}
	mw, err := Cache(CacheOptions{})
	require.NoError(t, err)
	gen := mw(inner)

	for i := 0; i < 3; i++ {
		_, err := gen.Generate(context.Background(), "fix this")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, inner.callCount())
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	fail := true
	inner := &fakeGenerator{reply: func(_ context.Context, prompt string) (string, error) {
		if fail {
			return "", errors.New("boom")
		}
		return "ok", nil
	}}
	mw, err := Cache(CacheOptions{})
	require.NoError(t, err)
	gen := mw(inner)
	ctx := Cacheable(context.Background())

	_, err = gen.Generate(ctx, "p")
	require.Error(t, err)

	fail = false
	out, err := gen.Generate(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, inner.callCount())
}

func TestCache_DiskSurvivesNewInstance(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	ctx := Cacheable(context.Background())

	firstInner := &fakeGenerator{}
	mw, err := Cache(CacheOptions{Namespace: "m", Store: store})
	require.NoError(t, err)
	_, err = mw(firstInner).Generate(ctx, "p")
	require.NoError(t, err)

	secondInner := &fakeGenerator{}
	stats := NewCacheStats()
	mw, err = Cache(CacheOptions{Namespace: "m", Store: store, Stats: stats})
	require.NoError(t, err)
	out, err := mw(secondInner).Generate(ctx, "p")
	require.NoError(t, err)

	assert.Equal(t, "out:p", out)
	assert.Equal(t, 0, secondInner.callCount())
	assert.Equal(t, int64(1), stats.Snapshot().DiskHits)
}

func TestCacheKey_SeparatesNamespaces(t *testing.T) {
	assert.Equal(t, CacheKey("remote", "gpt-4o", "p"), CacheKey("remote", "gpt-4o", "p"))
	assert.NotEqual(t, CacheKey("remote", "gpt-4o", "p"), CacheKey("remote", "gpt-4o-mini", "p"))
	assert.NotEqual(t, CacheKey("remote", "m", "p"), CacheKey("local", "m", "p"))
	assert.Len(t, CacheKey("a", "b", "c"), 16)
}

func TestDiskStore_CorruptEntryIsMiss(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "bad"+cacheFileSuffix), []byte("not gob"), 0o644))

	_, ok := store.Get("bad")
	assert.False(t, ok)
	_, statErr := os.Stat(filepath.Join(store.Dir(), "bad"+cacheFileSuffix))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDiskStore_CleanupByAgeAndCount(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, store.Set("old", CacheEntry{Text: "x", Timestamp: now.Add(-48 * time.Hour)}))
	require.NoError(t, store.Set("a", CacheEntry{Text: "x", Timestamp: now.Add(-3 * time.Minute)}))
	require.NoError(t, store.Set("b", CacheEntry{Text: "x", Timestamp: now.Add(-2 * time.Minute)}))
	require.NoError(t, store.Set("c", CacheEntry{Text: "x", Timestamp: now.Add(-1 * time.Minute)}))

	report, err := store.Cleanup(CleanupOptions{MaxAge: 24 * time.Hour, MaxFiles: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, report.FilesBefore)
	assert.Equal(t, 1, report.DeletedByAge)
	assert.Equal(t, 1, report.DeletedByCount)
	assert.Equal(t, 2, report.Deleted)

	_, ok := store.Get("a")
	assert.False(t, ok)
	_, ok = store.Get("c")
	assert.True(t, ok)
}

func TestDiskStore_CleanupDryRun(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("old", CacheEntry{Text: "x", Timestamp: time.Now().Add(-48 * time.Hour)}))

	report, err := store.Cleanup(CleanupOptions{MaxAge: time.Hour, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
	_, ok := store.Get("old")
	assert.True(t, ok)
}

func TestDiskStore_Clear(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("a", CacheEntry{Text: "x"}))
	require.NoError(t, store.Set("b", CacheEntry{Text: "y"}))

	deleted, err := store.Clear()
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	_, ok := store.Get("a")
	assert.False(t, ok)
}
