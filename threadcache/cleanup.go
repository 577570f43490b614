package threadcache

import "sync"
import "time"

// Cleanup periodically sweeps a Router for Owners that have gone idle
// past a timeout, reclaiming their Caches. It self-reschedules with
// time.AfterFunc rather than a ticking goroutine, so a Stop that races
// a firing timer can never leave a dangling periodic wakeup behind.
// Once a sweep finds the Router's registry empty, it stops rearming
// itself rather than ticking forever against nothing; Router calls
// Rearm whenever a new Cache enters the registry again.
type Cleanup struct {
	router      *Router
	interval    time.Duration
	idleTimeout time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// StartCleanup begins sweeping router every interval for Caches idle
// longer than idleTimeout, and returns a handle to stop it.
func StartCleanup(router *Router, interval, idleTimeout time.Duration) *Cleanup {
	c := &Cleanup{router: router, interval: interval, idleTimeout: idleTimeout}
	c.arm()
	return c
}

func (c *Cleanup) arm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.timer = time.AfterFunc(c.interval, c.fire)
}

func (c *Cleanup) fire() {
	n := c.router.Sweep(func(cache *Cache) bool {
		return cache.IdleFor() >= c.idleTimeout
	})
	if n == 0 {
		c.trimWarm()
	}

	if c.router.Empty() {
		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()
		return
	}
	c.arm()
}

// Rearm restarts a Cleanup that stopped itself after finding its
// Router's registry empty. Called by Router whenever a new Owner is
// leased or a default-path Cache is minted, since either means the
// registry is no longer empty. A no-op if the Cleanup was never
// stopped.
func (c *Cleanup) Rearm() {
	c.mu.Lock()
	if !c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = false
	c.mu.Unlock()
	c.arm()
}

// trimWarm evicts half of the rings of every leased Cache that has
// been idle for at least one sweep interval, when nothing was idle
// enough to reclaim outright, so a cache that spiked once and went
// quiet doesn't hold its peak working set forever. Default-path caches
// are not visited.
func (c *Cleanup) trimWarm() {
	c.router.mu.Lock()
	caches := make([]*Cache, 0, len(c.router.caches))
	for _, cache := range c.router.caches {
		caches = append(caches, cache)
	}
	c.router.mu.Unlock()

	for _, cache := range caches {
		if cache.IdleFor() >= c.interval {
			cache.trim()
		}
	}
}

// Stop cancels any pending sweep. Safe to call more than once.
func (c *Cleanup) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
	}
}
