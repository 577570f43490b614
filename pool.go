package bufpool

import "github.com/prataprc/bufpool/arena"
import "github.com/prataprc/bufpool/threadcache"

// Pool is the top-level allocator: it shards allocation across
// cfg.NumHeapArenas/cfg.NumDirectArenas Arenas for heap-backed and
// direct (mmap'd) memory respectively, and fronts each shard set with
// a threadcache.Router so that steady callers never need to touch an
// Arena's lock. Either half can be configured with zero arenas, in
// which case its Router and Cleanup are never built and every call
// into that half reports ErrPoolHalfDisabled.
type Pool struct {
	cfg Config

	heapArenas   []*arena.Arena
	directArenas []*arena.Arena

	heapRouter   *threadcache.Router
	directRouter *threadcache.Router

	heapCleanup   *threadcache.Cleanup
	directCleanup *threadcache.Cleanup

	closed bool
}

// NewPool builds a Pool from an already-validated Config, typically
// produced by ParseConfig(Defaultsettings()) with caller overrides
// mixed in first.
func NewPool(cfg Config) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	heapArenas, err := buildArenas(cfg, arena.HeapProvider{}, cfg.NumHeapArenas)
	if err != nil {
		return nil, err
	}
	directArenas, err := buildArenas(cfg, arena.DirectProvider{}, cfg.NumDirectArenas)
	if err != nil {
		return nil, err
	}

	p := &Pool{cfg: cfg, heapArenas: heapArenas, directArenas: directArenas}

	if len(heapArenas) > 0 {
		p.heapRouter = threadcache.NewRouter(heapArenas, cfg.Cache)
		p.heapCleanup = threadcache.StartCleanup(p.heapRouter, cfg.SweepInterval, cfg.IdleTimeout)
		p.heapRouter.SetCleanup(p.heapCleanup)
	}
	if len(directArenas) > 0 {
		p.directRouter = threadcache.NewRouter(directArenas, cfg.Cache)
		p.directCleanup = threadcache.StartCleanup(p.directRouter, cfg.SweepInterval, cfg.IdleTimeout)
		p.directRouter.SetCleanup(p.directCleanup)
	}

	infof("bufpool: pool ready, %s", cfg)
	return p, nil
}

// buildArenas constructs numArenas Arenas backed by provider. A
// numArenas of zero is the documented way to disable pooling for one
// half of a Pool and builds nothing.
func buildArenas(cfg Config, provider arena.ChunkProvider, numArenas int) ([]*arena.Arena, error) {
	if numArenas == 0 {
		return nil, nil
	}
	arenas := make([]*arena.Arena, numArenas)
	for i := range arenas {
		a, err := arena.NewArena(cfg.Arena, provider, cfg.MaxChunks)
		if err != nil {
			return nil, err
		}
		arenas[i] = a
	}
	return arenas, nil
}

// NewHeapBuffer allocates size bytes backed by ordinary Go-heap
// memory, via the sync.Pool-backed convenience path. Callers doing
// repeated allocation from one goroutine should prefer Worker instead.
func (p *Pool) NewHeapBuffer(size int64) (*Buffer, error) {
	return p.newBuffer(p.heapRouter, size, false)
}

// NewDirectBuffer is NewHeapBuffer's counterpart backed by memory
// mapped outside the Go heap, so the GC never scans it.
func (p *Pool) NewDirectBuffer(size int64) (*Buffer, error) {
	return p.newBuffer(p.directRouter, size, true)
}

func (p *Pool) newBuffer(router *threadcache.Router, size int64, direct bool) (*Buffer, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if router == nil {
		return nil, ErrPoolHalfDisabled
	}
	cache, release := router.Default()
	defer release()

	e, err := cache.Get(size)
	if err != nil {
		return nil, err
	}
	return &Buffer{
		bytes: e.Bytes, entry: e, direct: direct,
		release: func(e *arena.Entry) error {
			c, rel := router.Default()
			defer rel()
			return c.Put(e)
		},
	}, nil
}

// IsDirectPooled reports whether buf was allocated from the direct
// (off-heap) arena set rather than the heap-backed one.
func IsDirectPooled(buf *Buffer) bool { return buf.direct }

// Worker is an explicit lease held by one goroutine that does steady
// allocation work: unlike the bare NewHeapBuffer/NewDirectBuffer
// convenience path, it keeps its own caches warm across calls instead
// of borrowing a possibly-cold one from the pool each time.
type Worker struct {
	pool *Pool

	heapOwner   threadcache.Owner
	heapCache   *threadcache.Cache
	directOwner threadcache.Owner
	directCache *threadcache.Cache
}

// Worker leases a new Worker from the Pool. The caller must Close it
// when done. Either cache is left nil if the corresponding half of
// the Pool was configured with zero arenas; NewBuffer/NewDirectBuffer
// on that half then report ErrPoolHalfDisabled instead of leasing.
func (p *Pool) Worker() *Worker {
	w := &Worker{pool: p}
	if p.heapRouter != nil {
		w.heapOwner, w.heapCache = p.heapRouter.Lease()
	}
	if p.directRouter != nil {
		w.directOwner, w.directCache = p.directRouter.Lease()
	}
	return w
}

// NewBuffer allocates size bytes from this Worker's warm heap cache.
func (w *Worker) NewBuffer(size int64) (*Buffer, error) {
	return w.newBuffer(w.heapCache, size, false)
}

// NewDirectBuffer allocates size bytes from this Worker's warm direct
// cache.
func (w *Worker) NewDirectBuffer(size int64) (*Buffer, error) {
	return w.newBuffer(w.directCache, size, true)
}

func (w *Worker) newBuffer(cache *threadcache.Cache, size int64, direct bool) (*Buffer, error) {
	if cache == nil {
		return nil, ErrPoolHalfDisabled
	}
	e, err := cache.Get(size)
	if err != nil {
		return nil, err
	}
	return &Buffer{bytes: e.Bytes, entry: e, direct: direct, release: cache.Put}, nil
}

// Close releases this Worker's lease, draining both of its caches
// back to their Arenas.
func (w *Worker) Close() error {
	var err1, err2 error
	if w.pool.heapRouter != nil {
		err1 = w.pool.heapRouter.Release(w.heapOwner)
	}
	if w.pool.directRouter != nil {
		err2 = w.pool.directRouter.Release(w.directOwner)
	}
	if err1 != nil {
		return err1
	}
	return err2
}

// PoolStats summarizes a Pool's current occupancy across every shard.
type PoolStats struct {
	Heap   []arena.Stats
	Direct []arena.Stats
}

// Snapshot reports the current occupancy of every Arena shard, heap
// and direct alike.
func (p *Pool) Snapshot() PoolStats {
	st := PoolStats{
		Heap:   make([]arena.Stats, len(p.heapArenas)),
		Direct: make([]arena.Stats, len(p.directArenas)),
	}
	for i, a := range p.heapArenas {
		st.Heap[i] = a.Snapshot()
	}
	for i, a := range p.directArenas {
		st.Direct[i] = a.Snapshot()
	}
	return st
}

// Memory reports the total backing capacity held across every shard,
// heap and direct alike.
func (p *Pool) Memory() int64 {
	var total int64
	for _, a := range p.heapArenas {
		total += a.Memory()
	}
	for _, a := range p.directArenas {
		total += a.Memory()
	}
	return total
}

// Allocated reports the portion of Memory() currently handed out to
// callers across every shard.
func (p *Pool) Allocated() int64 {
	var total int64
	for _, a := range p.heapArenas {
		total += a.Allocated()
	}
	for _, a := range p.directArenas {
		total += a.Allocated()
	}
	return total
}

// Available reports the portion of Memory() still free across every
// shard.
func (p *Pool) Available() int64 {
	var total int64
	for _, a := range p.heapArenas {
		total += a.Available()
	}
	for _, a := range p.directArenas {
		total += a.Available()
	}
	return total
}

// Close shuts down background cleanup and releases every Arena's
// backing memory. Buffers outstanding at the time of Close must not
// be used afterward.
func (p *Pool) Close() error {
	if p.closed {
		return ErrClosed
	}
	p.closed = true

	if p.heapCleanup != nil {
		p.heapCleanup.Stop()
	}
	if p.directCleanup != nil {
		p.directCleanup.Stop()
	}

	var firstErr error
	if p.heapRouter != nil {
		if err := p.heapRouter.CloseAll(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.directRouter != nil {
		if err := p.directRouter.CloseAll(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, a := range p.heapArenas {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, a := range p.directArenas {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
