package threadcache

import "sync"
import "sync/atomic"
import "time"

import "github.com/prataprc/bufpool/arena"

// Cache is a per-owner front for a single Arena shard. Gets and Puts
// for classes with a warm, non-empty ring never touch the Arena's
// lock; only a cache miss or a full ring falls through to it.
//
// A Cache is safe for concurrent use, but is designed to be used by
// one owner (goroutine or explicit worker) at a time — the locking
// exists to let the cleanup sweep drain an idle cache concurrently
// with the owner's last few calls, not to make it a free-for-all.
type Cache struct {
	mu    sync.Mutex
	arena *arena.Arena
	rings map[int64]*ring

	cfg         CacheConfig
	allocations int64
	lastTouch   int64 // unix nanos, atomic
	closed      bool
}

func newCache(a *arena.Arena, cfg CacheConfig) *Cache {
	c := &Cache{arena: a, rings: make(map[int64]*ring), cfg: cfg}
	c.touch()
	return c
}

func (c *Cache) touch() {
	atomic.StoreInt64(&c.lastTouch, time.Now().UnixNano())
}

// IdleFor reports how long it has been since this cache last served a
// Get or Put.
func (c *Cache) IdleFor() time.Duration {
	last := atomic.LoadInt64(&c.lastTouch)
	return time.Since(time.Unix(0, last))
}

// Get returns size bytes, preferring a cached entry over a fresh
// Arena allocation.
func (c *Cache) Get(size int64) (*arena.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	c.touch()

	c.allocations++
	if c.allocations >= c.cfg.TrimInterval {
		c.allocations = 0
		c.trimLocked()
	}

	sc := arena.Normalize(size, c.arena.Config().PageSize, c.arena.Config().ChunkSize())
	if sc.Cacheable() && sc.Size <= c.cfg.MaxCachedCapacity {
		if r := c.rings[sc.Size]; r != nil {
			if e, ok := r.pop(); ok {
				debugf("threadcache: hit for size class %d", sc.Size)
				return e, nil
			}
		}
	}
	return c.arena.Allocate(size)
}

// Put returns e to the cache, or directly to its Arena if its class
// isn't cacheable (huge) or its class's ring is already full.
func (c *Cache) Put(e *arena.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return e.Free()
	}
	c.touch()

	if !e.Class.Cacheable() || e.Class.Size > c.cfg.MaxCachedCapacity {
		return e.Free()
	}
	r := c.rings[e.Class.Size]
	if r == nil {
		r = newRing(c.cfg.capFor(e.Class.Kind))
		c.rings[e.Class.Size] = r
	}
	if r.push(e) {
		return nil
	}
	debugf("threadcache: ring full for size class %d, falling through", e.Class.Size)
	return e.Free()
}

// trim evicts roughly half of every ring's contents, called
// periodically on a cache that is idle but not yet closed.
func (c *Cache) trim() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trimLocked()
}

// trimLocked is trim's body, also reachable from Get once allocations
// hits cfg.TrimInterval — a churn-triggered trim independent of the
// wall-clock idle check Cleanup runs.
func (c *Cache) trimLocked() {
	for _, r := range c.rings {
		r.evictHalf()
	}
}

// Close drains every ring back to the Arena and marks the cache dead.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.closed = true
	for _, r := range c.rings {
		r.drainAll()
	}
	return nil
}
