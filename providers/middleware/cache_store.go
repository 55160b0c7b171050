package middleware

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const cacheFileSuffix = ".cache"

// CacheEntry is one generated text persisted on disk.
type CacheEntry struct {
	Text      string
	Provider  string
	Timestamp time.Time
}

// DiskStore keeps generated skeletons across runs as gob files, one per key.
type DiskStore struct {
	dir   string
	mutex sync.RWMutex
}

// CleanupOptions bounds the disk cache. Zero values disable the matching phase.
type CleanupOptions struct {
	MaxAge   time.Duration // Remove entries older than this
	MaxSize  int64         // Remove oldest entries while the cache exceeds this size (bytes)
	MaxFiles int           // Remove oldest entries while the cache exceeds this number of files
	DryRun   bool
}

// CleanupReport summarizes one cleanup pass.
type CleanupReport struct {
	FilesBefore    int
	Deleted        int
	DeletedByAge   int
	DeletedBySize  int
	DeletedByCount int
	FreedBytes     int64
	DryRun         bool
}

// NewDiskStore opens (creating if needed) a cache directory.
// An empty dir defaults to ".scaffai-cache" in the working directory.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current working directory: %w", err)
		}
		dir = filepath.Join(cwd, ".scaffai-cache")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &DiskStore{dir: dir}, nil
}

// Dir returns the cache directory.
func (ds *DiskStore) Dir() string { return ds.dir }

func (ds *DiskStore) path(key string) string {
	return filepath.Join(ds.dir, key+cacheFileSuffix)
}

// Get returns the entry stored under key. Unreadable entries are removed and reported as misses.
func (ds *DiskStore) Get(key string) (CacheEntry, bool) {
	ds.mutex.RLock()
	data, err := os.ReadFile(ds.path(key))
	ds.mutex.RUnlock()
	if err != nil {
		return CacheEntry{}, false
	}

	var entry CacheEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		_ = ds.Delete(key)
		return CacheEntry{}, false
	}
	return entry, true
}

// Set stores entry under key, replacing any previous value.
func (ds *DiskStore) Set(key string, entry CacheEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	var buffer bytes.Buffer
	if err := gob.NewEncoder(&buffer).Encode(entry); err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	if err := os.WriteFile(ds.path(key), buffer.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

// Delete removes a cache entry; a missing entry is not an error.
func (ds *DiskStore) Delete(key string) error {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	if err := os.Remove(ds.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}

// Clear removes every cache file and returns how many were deleted.
func (ds *DiskStore) Clear() (int, error) {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	files, err := os.ReadDir(ds.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	deleted := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), cacheFileSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(ds.dir, file.Name())); err == nil {
			deleted++
		}
	}
	return deleted, nil
}

type cacheFile struct {
	path     string
	size     int64
	entryAge time.Time
}

// Cleanup removes entries by age, then by total size, then by count, oldest first.
func (ds *DiskStore) Cleanup(options CleanupOptions) (*CleanupReport, error) {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	dirEntries, err := os.ReadDir(ds.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var files []cacheFile
	var totalSize int64
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), cacheFileSuffix) {
			continue
		}
		info, err := dirEntry.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(ds.dir, dirEntry.Name())
		entryAge := info.ModTime()
		if data, err := os.ReadFile(path); err == nil {
			var entry CacheEntry
			if gob.NewDecoder(bytes.NewReader(data)).Decode(&entry) == nil && !entry.Timestamp.IsZero() {
				entryAge = entry.Timestamp
			}
		}

		files = append(files, cacheFile{path: path, size: info.Size(), entryAge: entryAge})
		totalSize += info.Size()
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].entryAge.Before(files[j].entryAge)
	})

	report := &CleanupReport{FilesBefore: len(files), DryRun: options.DryRun}
	marked := make([]bool, len(files))
	remainingFiles := len(files)
	remainingSize := totalSize

	mark := func(i int) {
		marked[i] = true
		remainingFiles--
		remainingSize -= files[i].size
		report.FreedBytes += files[i].size
	}

	if options.MaxAge > 0 {
		cutoff := time.Now().Add(-options.MaxAge)
		for i, f := range files {
			if f.entryAge.Before(cutoff) {
				mark(i)
				report.DeletedByAge++
			}
		}
	}

	if options.MaxSize > 0 {
		for i := range files {
			if remainingSize <= options.MaxSize {
				break
			}
			if !marked[i] {
				mark(i)
				report.DeletedBySize++
			}
		}
	}

	if options.MaxFiles > 0 {
		for i := range files {
			if remainingFiles <= options.MaxFiles {
				break
			}
			if !marked[i] {
				mark(i)
				report.DeletedByCount++
			}
		}
	}

	for i, f := range files {
		if !marked[i] {
			continue
		}
		if options.DryRun {
			report.Deleted++
			continue
		}
		if err := os.Remove(f.path); err == nil {
			report.Deleted++
		}
	}

	return report, nil
}
