package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/ppiankov/glimpse/internal/log"
	"github.com/ppiankov/glimpse/internal/model"
)

// MarkerSize is the size accounted for a preload marker entry
const MarkerSize = 1024

// Marker is the placeholder content stored for a URL that has been preloaded
// but whose body was not retained.
type Marker struct {
	Preloaded bool      `json:"preloaded"`
	At        time.Time `json:"timestamp"`
}

// Clock returns the current time
type Clock func() time.Time

// PreloadConfig configures a PreloadCache
type PreloadConfig struct {
	MaxSize       int64         // total byte budget
	TTL           time.Duration // entries at least this old are expired; 0 disables expiry
	SweepInterval time.Duration // background sweep period; 0 disables the sweeper
}

// Entry is a single preload cache entry
type Entry struct {
	URL            string
	Content        any
	Size           int64
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// PreloadCache is a byte-bounded URL cache with least-recently-used eviction
// and time-to-live expiry. Entries are ordered in a list from most to least
// recently accessed, so the list tail always holds the smallest LastAccessedAt.
type PreloadCache struct {
	mu        sync.Mutex
	cfg       PreloadConfig
	now       Clock
	logger    *log.Logger
	list      *list.List               // front = MRU, back = LRU
	index     map[string]*list.Element // url -> list element
	totalSize int64
	destroyed bool

	hits        int64
	misses      int64
	evictions   int64
	expirations int64
	rejections  int64

	stopSweep chan struct{}
	sweepDone chan struct{}
}

// PreloadOption customises a PreloadCache
type PreloadOption func(*PreloadCache)

// WithClock overrides the time source
func WithClock(now Clock) PreloadOption {
	return func(c *PreloadCache) {
		c.now = now
	}
}

// WithLogger sets the logger used for rejections
func WithLogger(l *log.Logger) PreloadOption {
	return func(c *PreloadCache) {
		c.logger = l
	}
}

// NewPreload creates a preload cache and starts its sweeper
func NewPreload(cfg PreloadConfig, opts ...PreloadOption) *PreloadCache {
	c := &PreloadCache{
		cfg:    cfg,
		now:    time.Now,
		logger: log.Discard(),
		list:   list.New(),
		index:  make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.SweepInterval > 0 {
		c.stopSweep = make(chan struct{})
		c.sweepDone = make(chan struct{})
		go c.sweepLoop(cfg.SweepInterval)
	}

	return c
}

// Put stores content under url, evicting least-recently-used entries to make
// room. Entries larger than half of MaxSize are rejected and Put returns false.
func (c *PreloadCache) Put(url string, content any, size int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return false
	}

	if size < 0 || size*2 > c.cfg.MaxSize {
		c.rejections++
		c.logger.Debugf("preload cache: rejected %s (%d bytes, budget %d)", url, size, c.cfg.MaxSize)
		return false
	}

	// Replace semantics: drop the old size contribution first.
	if el, ok := c.index[url]; ok {
		c.removeElement(el)
	}

	for c.totalSize+size > c.cfg.MaxSize && c.list.Len() > 0 {
		c.evictLRU()
	}

	now := c.now()
	el := c.list.PushFront(&Entry{
		URL:            url,
		Content:        content,
		Size:           size,
		CreatedAt:      now,
		LastAccessedAt: now,
	})
	c.index[url] = el
	c.totalSize += size

	return true
}

// Get returns the content stored under url.
// Missing and expired entries are misses; expired entries are removed.
func (c *PreloadCache) Get(url string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[url]
	if !ok {
		c.misses++
		return nil, false
	}

	e := el.Value.(*Entry)
	now := c.now()
	if c.expired(e, now) {
		c.removeElement(el)
		c.expirations++
		c.misses++
		return nil, false
	}

	e.LastAccessedAt = now
	c.list.MoveToFront(el)
	c.hits++
	return e.Content, true
}

// Contains reports whether url holds a live entry without refreshing its recency
func (c *PreloadCache) Contains(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[url]
	if !ok {
		return false
	}
	return !c.expired(el.Value.(*Entry), c.now())
}

// Delete removes the entry for url if present
func (c *PreloadCache) Delete(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[url]; ok {
		c.removeElement(el)
	}
}

// Clear removes all entries
func (c *PreloadCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// Sweep removes every expired entry and returns how many were removed
func (c *PreloadCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.list.Back(); el != nil; {
		prev := el.Prev()
		if c.expired(el.Value.(*Entry), now) {
			c.removeElement(el)
			c.expirations++
			removed++
		}
		el = prev
	}
	return removed
}

// Stats returns a point-in-time snapshot of the cache
func (c *PreloadCache) Stats() model.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	utilization := 0.0
	if c.cfg.MaxSize > 0 {
		utilization = float64(c.totalSize) / float64(c.cfg.MaxSize) * 100
	}

	return model.CacheStats{
		EntryCount:         len(c.index),
		TotalSize:          c.totalSize,
		MaxSize:            c.cfg.MaxSize,
		UtilizationPercent: utilization,
		Hits:               c.hits,
		Misses:             c.misses,
		Evictions:          c.evictions,
		Expirations:        c.expirations,
		Rejections:         c.rejections,
	}
}

// Len returns the number of entries, expired or not
func (c *PreloadCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Destroy stops the sweeper and clears the cache. Safe to call more than once.
func (c *PreloadCache) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.clearLocked()
	stop, done := c.stopSweep, c.sweepDone
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

func (c *PreloadCache) sweepLoop(interval time.Duration) {
	defer close(c.sweepDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopSweep:
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debugf("preload cache: swept %d expired entries", n)
			}
		}
	}
}

// expired reports whether e has reached its TTL. Caller must hold c.mu.
func (c *PreloadCache) expired(e *Entry, now time.Time) bool {
	return c.cfg.TTL > 0 && now.Sub(e.CreatedAt) >= c.cfg.TTL
}

// removeElement removes el from the list and index. Caller must hold c.mu.
func (c *PreloadCache) removeElement(el *list.Element) {
	e := el.Value.(*Entry)
	c.list.Remove(el)
	delete(c.index, e.URL)
	c.totalSize -= e.Size
}

// evictLRU removes the least-recently-used entry. Caller must hold c.mu.
func (c *PreloadCache) evictLRU() {
	el := c.list.Back()
	if el == nil {
		return
	}
	c.logger.Debugf("preload cache: evicted %s", el.Value.(*Entry).URL)
	c.removeElement(el)
	c.evictions++
}

// clearLocked empties the cache. Caller must hold c.mu.
func (c *PreloadCache) clearLocked() {
	c.list.Init()
	c.index = make(map[string]*list.Element)
	c.totalSize = 0
}
