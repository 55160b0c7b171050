package middleware

import (
	"sync"
	"time"
)

// CacheStats tracks cache performance counters.
type CacheStats struct {
	mutex         sync.RWMutex
	totalRequests int64
	memoryHits    int64
	diskHits      int64
	misses        int64
	lastReset     time.Time
}

// CacheSnapshot is a point-in-time copy of CacheStats.
type CacheSnapshot struct {
	TotalRequests int64
	MemoryHits    int64
	DiskHits      int64
	Misses        int64
	HitRate       float64 // percent
	Uptime        time.Duration
}

func newCacheStats() *CacheStats {
	return &CacheStats{lastReset: time.Now()}
}

func (s *CacheStats) recordMemoryHit() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.totalRequests++
	s.memoryHits++
}

func (s *CacheStats) recordDiskHit() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.totalRequests++
	s.diskHits++
}

func (s *CacheStats) recordMiss() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.totalRequests++
	s.misses++
}

// Snapshot returns the current counters.
func (s *CacheStats) Snapshot() CacheSnapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	hitRate := 0.0
	if s.totalRequests > 0 {
		hitRate = float64(s.memoryHits+s.diskHits) / float64(s.totalRequests) * 100
	}

	return CacheSnapshot{
		TotalRequests: s.totalRequests,
		MemoryHits:    s.memoryHits,
		DiskHits:      s.diskHits,
		Misses:        s.misses,
		HitRate:       hitRate,
		Uptime:        time.Since(s.lastReset),
	}
}

// Reset zeroes all counters.
func (s *CacheStats) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.totalRequests = 0
	s.memoryHits = 0
	s.diskHits = 0
	s.misses = 0
	s.lastReset = time.Now()
}
