// Package cache keeps recently loaded uploads in memory so re-submitting the
// same file for the same target dataset skips parsing.
package cache

import (
	"sync"
	"time"

	"riskdash/internal/loader"
)

// Key identifies a cached load: the content fingerprint, the upload name and
// the dataset the upload was destined for. A batch is only valid for the name
// it was detected under.
type Key struct {
	Fingerprint string
	FileName    string
	DatasetKey  string
}

// Entry is a cached batch
type Entry struct {
	Batch    *loader.Batch
	CachedAt time.Time
	Expires  time.Time
	HitCount int
}

// Stats reports cache usage
type Stats struct {
	Entries    int     `json:"entries"`
	MaxSize    int     `json:"max_size"`
	HitCount   int64   `json:"hit_count"`
	MissCount  int64   `json:"miss_count"`
	HitRatio   float64 `json:"hit_ratio"`
	TTLSeconds float64 `json:"ttl_seconds"`
}

// UploadCache is a TTL and size bounded cache of loaded batches
type UploadCache struct {
	entries   map[Key]Entry
	mutex     sync.RWMutex
	ttl       time.Duration
	maxSize   int
	hitCount  int64
	missCount int64
	now       func() time.Time
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewUploadCache creates a cache and starts its expiry sweeper. Call Stop to
// release it.
func NewUploadCache(ttl time.Duration, maxSize int) *UploadCache {
	c := &UploadCache{
		entries:  make(map[Key]Entry),
		ttl:      ttl,
		maxSize:  maxSize,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	go c.cleanup()

	return c
}

// Get returns the batch cached under key
func (c *UploadCache) Get(key Key) (*loader.Batch, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists || c.now().After(entry.Expires) {
		c.missCount++
		return nil, false
	}

	entry.HitCount++
	c.entries[key] = entry
	c.hitCount++

	return entry.Batch, true
}

// Set stores a batch, evicting the oldest entry when full. A cache with a
// max size of zero stores nothing.
func (c *UploadCache) Set(key Key, batch *loader.Batch) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.maxSize <= 0 {
		return
	}

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	now := c.now()
	c.entries[key] = Entry{
		Batch:    batch,
		CachedAt: now,
		Expires:  now.Add(c.ttl),
	}
}

// Invalidate removes every entry for a fingerprint
func (c *UploadCache) Invalidate(fingerprint string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for key := range c.entries {
		if key.Fingerprint == fingerprint {
			delete(c.entries, key)
		}
	}
}

// Stats returns cache statistics
func (c *UploadCache) Stats() Stats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	total := c.hitCount + c.missCount
	ratio := float64(0)
	if total > 0 {
		ratio = float64(c.hitCount) / float64(total)
	}

	return Stats{
		Entries:    len(c.entries),
		MaxSize:    c.maxSize,
		HitCount:   c.hitCount,
		MissCount:  c.missCount,
		HitRatio:   ratio,
		TTLSeconds: c.ttl.Seconds(),
	}
}

func (c *UploadCache) evictOldest() {
	var (
		oldestKey  Key
		oldestTime time.Time
		found      bool
	)

	for key, entry := range c.entries {
		if !found || entry.CachedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.CachedAt
			found = true
		}
	}

	if found {
		delete(c.entries, oldestKey)
	}
}

// Stop stops the expiry sweeper. It is safe to call more than once.
func (c *UploadCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *UploadCache) sweep() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.Expires) {
			delete(c.entries, key)
		}
	}
}

func (c *UploadCache) cleanup() {
	interval := c.ttl
	if interval <= 0 || interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopChan:
			return
		}
	}
}
