package middleware

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/meysamhadeli/scaffai/logging"
	"github.com/meysamhadeli/scaffai/providers/contracts"
	"github.com/zeebo/xxh3"
)

const defaultMemoryEntries = 256

// CacheOptions configures the Cache middleware.
type CacheOptions struct {
	// Namespace separates entries of different models on the same provider.
	Namespace string
	// MemoryEntries caps the in-memory LRU; zero selects a default.
	MemoryEntries int
	// Store, when set, persists entries across runs.
	Store  *DiskStore
	Stats  *CacheStats
	Logger *logging.Logger
}

// Cache serves repeated prompts from memory, then disk, before calling the provider.
// Only calls whose context is marked with Cacheable participate; errors are never cached.
func Cache(options CacheOptions) (Middleware, error) {
	size := options.MemoryEntries
	if size <= 0 {
		size = defaultMemoryEntries
	}
	memory, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	stats := options.Stats
	if stats == nil {
		stats = newCacheStats()
	}
	logger := options.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return func(next contracts.IGenerator) contracts.IGenerator {
		return &cached{
			next:      next,
			namespace: options.Namespace,
			memory:    memory,
			disk:      options.Store,
			stats:     stats,
			log:       logger.Component("cache"),
		}
	}, nil
}

// NewCacheStats returns an empty counter set to share between Cache and its caller.
func NewCacheStats() *CacheStats { return newCacheStats() }

type cached struct {
	next      contracts.IGenerator
	namespace string
	memory    *lru.Cache[string, string]
	disk      *DiskStore
	stats     *CacheStats
	log       *logging.Logger
}

func (c *cached) Name() string { return c.next.Name() }

func (c *cached) Generate(ctx context.Context, prompt string) (string, error) {
	if !IsCacheable(ctx) {
		return c.next.Generate(ctx, prompt)
	}

	key := CacheKey(c.next.Name(), c.namespace, prompt)
	if text, ok := c.memory.Get(key); ok {
		c.stats.recordMemoryHit()
		c.log.Trace("memory cache hit", "key", key)
		return text, nil
	}
	if c.disk != nil {
		if entry, ok := c.disk.Get(key); ok {
			c.stats.recordDiskHit()
			c.memory.Add(key, entry.Text)
			c.log.Trace("disk cache hit", "key", key)
			return entry.Text, nil
		}
	}
	c.stats.recordMiss()

	text, err := c.next.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	c.memory.Add(key, text)
	if c.disk != nil {
		if err := c.disk.Set(key, CacheEntry{Text: text, Provider: c.next.Name()}); err != nil {
			c.log.Warn("failed to persist cache entry", "error", err)
		}
	}
	return text, nil
}

// CacheKey derives the storage key for a prompt sent to provider/namespace.
func CacheKey(provider, namespace, prompt string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(provider+"\x00"+namespace+"\x00"+prompt))
}
