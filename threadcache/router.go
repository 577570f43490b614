package threadcache

import "sync"
import "sync/atomic"

import "github.com/prataprc/bufpool/arena"

// Owner is an explicit lease token standing in for thread identity.
// Zero is never issued by Lease and is reserved to mean "no owner".
type Owner uint64

// Router shards a pool of Arenas behind per-Owner Caches, assigning
// each newly leased Owner to an Arena by round robin so steady
// concurrent leasing spreads load evenly across shards, the same way
// the teacher spreads llrb snapshot readers across its free-lists.
type Router struct {
	mu      sync.Mutex
	arenas  []*arena.Arena
	caches  map[Owner]*Cache
	nextID  uint64
	nextArn uint64

	cfg CacheConfig

	pool          sync.Pool // default-path caches, not tied to any Owner
	defaultCaches []*Cache  // every cache pool.New has ever handed out, so CloseAll can drain them

	cleanup *Cleanup // rearmed whenever a new Cache enters the registry
}

// NewRouter builds a Router sharding allocation across arenas, with
// cfg governing every Owner's Cache ring depths and trim behavior.
func NewRouter(arenas []*arena.Arena, cfg CacheConfig) *Router {
	r := &Router{
		arenas: arenas,
		caches: make(map[Owner]*Cache),
		cfg:    cfg,
	}
	r.pool.New = func() interface{} {
		c := newCache(r.pickArena(), r.cfg)
		r.mu.Lock()
		r.defaultCaches = append(r.defaultCaches, c)
		cleanup := r.cleanup
		r.mu.Unlock()
		if cleanup != nil {
			cleanup.Rearm()
		}
		return c
	}
	return r
}

// SetCleanup binds the Cleanup that sweeps this Router, so Lease and
// the default-path pool.New can rearm it once a Cache enters a
// registry it had found empty. Must be called once, after
// StartCleanup returns.
func (r *Router) SetCleanup(c *Cleanup) {
	r.mu.Lock()
	r.cleanup = c
	r.mu.Unlock()
}

// Empty reports whether this Router currently has no leased Owner,
// the condition under which its Cleanup stops rearming itself.
func (r *Router) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.caches) == 0
}

func (r *Router) pickArena() *arena.Arena {
	n := atomic.AddUint64(&r.nextArn, 1)
	return r.arenas[n%uint64(len(r.arenas))]
}

// Lease mints a new Owner bound to one Arena shard and returns its
// Cache. The caller must Release it when done; an unreleased Owner is
// reclaimed only once Sweep decides it has gone idle.
func (r *Router) Lease() (Owner, *Cache) {
	id := atomic.AddUint64(&r.nextID, 1)
	owner := Owner(id)
	cache := newCache(r.pickArena(), r.cfg)

	r.mu.Lock()
	r.caches[owner] = cache
	cleanup := r.cleanup
	r.mu.Unlock()

	if cleanup != nil {
		cleanup.Rearm()
	}

	infof("threadcache: leased owner %d", owner)
	return owner, cache
}

// CacheFor resolves a previously leased Owner's Cache.
func (r *Router) CacheFor(owner Owner) (*Cache, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caches[owner]
	return c, ok
}

// Release closes owner's Cache, draining it back to its Arena, and
// forgets the Owner.
func (r *Router) Release(owner Owner) error {
	r.mu.Lock()
	c, ok := r.caches[owner]
	if ok {
		delete(r.caches, owner)
	}
	r.mu.Unlock()

	if !ok {
		return ErrUnknownOwner
	}
	infof("threadcache: released owner %d", owner)
	return c.Close()
}

// Default borrows a Cache from the sync.Pool-backed convenience path,
// for callers that want one buffer without managing a lease. The
// returned release func must be called exactly once, after the
// caller is done with the Cache for this call.
func (r *Router) Default() (*Cache, func()) {
	c := r.pool.Get().(*Cache)
	return c, func() { r.pool.Put(c) }
}

// Sweep closes every leased Cache for which isStale reports true,
// returning how many it reclaimed. Called periodically by Cleanup;
// exported so tests and callers with their own scheduling can drive
// it directly.
func (r *Router) Sweep(isStale func(*Cache) bool) int {
	r.mu.Lock()
	dead := make(map[Owner]*Cache)
	for owner, c := range r.caches {
		if isStale(c) {
			dead[owner] = c
			delete(r.caches, owner)
		}
	}
	r.mu.Unlock()

	for owner, c := range dead {
		if err := c.Close(); err != nil {
			warnf("threadcache: sweep close of owner %d: %v", owner, err)
		}
	}
	if len(dead) > 0 {
		infof("threadcache: swept %d idle owners", len(dead))
	}
	return len(dead)
}

// NumArenas reports how many Arena shards this Router spreads load
// across.
func (r *Router) NumArenas() int { return len(r.arenas) }

// CloseAll drains and closes every Cache this Router has ever handed
// out, leased or default-path alike, returning the first error. It
// must run before the underlying Arenas are closed: a Cache still
// holding entries in its rings is holding live handles into those
// Arenas' chunks, and for a DirectProvider-backed Arena those chunks
// are unmapped on Close, so anything still cached would alias freed
// memory.
//
// The default-path caches are drained from the defaultCaches slice
// rather than by draining r.pool itself: sync.Pool.Get never returns
// nil once New is set, so looping on it to "empty" the pool would
// never terminate.
func (r *Router) CloseAll() error {
	r.mu.Lock()
	leased := make([]*Cache, 0, len(r.caches))
	for owner, c := range r.caches {
		leased = append(leased, c)
		delete(r.caches, owner)
	}
	defaults := r.defaultCaches
	r.defaultCaches = nil
	r.mu.Unlock()

	var firstErr error
	for _, c := range leased {
		if err := c.Close(); err != nil && firstErr == nil && err != ErrClosed {
			firstErr = err
		}
	}
	for _, c := range defaults {
		if err := c.Close(); err != nil && firstErr == nil && err != ErrClosed {
			firstErr = err
		}
	}
	return firstErr
}
