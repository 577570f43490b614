package arena

import "sync"
import "sync/atomic"

// searchOrder is the band traversal order used to pick a chunk for a
// new allocation: prefer chunks already well-used (q050, q025, q000)
// before touching a chunk that has never left qInit, and only
// fall back to an almost-full chunk (q075) once nothing emptier fits —
// q100 chunks are never searched, by definition they have no room.
var searchOrder = [5]qband{q050, q025, q000, qInit, q075}

// Arena shards a set of Chunks behind a single lock, handing out
// pooled byte buffers on Allocate and reclaiming them on Free. It is
// the middle tier of the allocator: many Arenas are typically sharded
// across goroutines to reduce contention on this lock (see the
// threadcache package), the way the teacher shards llrb snapshots
// across readers rather than serializing on one.
type Arena struct {
	mu sync.Mutex

	cfg      Config
	provider ChunkProvider

	maxChunks int
	numChunks int

	bands        [q100 + 1]qlist
	subpageLists map[int64]*subpageList

	// allocation counters, updated with sync/atomic. Every update except
	// a huge Entry's Free happens under mu; Snapshot reads them under mu.
	numAllocations       int64
	numDeallocations     int64
	numActiveAllocations int64
	numOverflows         int64

	closed bool
}

// NewArena builds an empty Arena. maxChunks caps how many Chunks it
// will ever hold concurrently; 0 means unbounded.
func NewArena(cfg Config, provider ChunkProvider, maxChunks int) (*Arena, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		provider = HeapProvider{}
	}
	a := &Arena{
		cfg: cfg, provider: provider, maxChunks: maxChunks,
		subpageLists: make(map[int64]*subpageList),
	}
	for b := range a.bands {
		a.bands[b].band = qband(b)
	}
	return a, nil
}

// Config returns the geometry this Arena was built with, so that a
// fronting cache can normalize a request without duplicating it.
func (a *Arena) Config() Config { return a.cfg }

// Entry is the result of a successful Allocate: the bytes handed to
// the caller plus everything Free needs to locate and release them
// again. Chunk is nil for huge allocations, which bypass pooling.
type Entry struct {
	Chunk  *Chunk
	Handle Handle
	Bytes  []byte
	Class  SizeClass

	arena *Arena
	huge  []byte
}

// Allocate normalizes size to its canonical SizeClass and serves it:
// huge requests bypass pooling entirely with a direct provider
// allocation; normal requests carve a page run out of some Chunk;
// tiny/small requests are served from a Subpage, reusing one already
// tracked in the arena-wide list for that size class when possible.
func (a *Arena) Allocate(size int64) (*Entry, error) {
	if size <= 0 {
		return nil, ErrBadConfig
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrReleased
	}

	sc := Normalize(size, a.cfg.PageSize, a.cfg.ChunkSize())
	var e *Entry
	var err error
	switch sc.Kind {
	case KindHuge:
		e, err = a.allocateHuge(size, sc)
	case KindNormal:
		e, err = a.allocateNormal(size, sc)
	default:
		e, err = a.allocateSubpage(size, sc)
	}
	if err != nil {
		return nil, err
	}
	atomic.AddInt64(&a.numAllocations, 1)
	atomic.AddInt64(&a.numActiveAllocations, 1)
	return e, nil
}

// allocateHuge takes the Overflow path: the request exceeds anything
// this Arena pools, so it is served directly from the provider and
// never tracked in any Chunk. Not an error condition.
func (a *Arena) allocateHuge(size int64, sc SizeClass) (*Entry, error) {
	mem, err := a.provider.NewChunk(sc.Size)
	if err != nil {
		return nil, err
	}
	atomic.AddInt64(&a.numOverflows, 1)
	debugf("arena: overflow, huge allocation of %d bytes (requested %d)", sc.Size, size)
	return &Entry{Class: sc, Bytes: mem[:size], arena: a, huge: mem}, nil
}

func (a *Arena) allocateNormal(size int64, sc SizeClass) (*Entry, error) {
	pages := sc.Size / a.cfg.PageSize
	c, err := a.chunkWithRun(pages)
	if err != nil {
		return nil, err
	}
	id, ok := c.AllocateRun(pages)
	if !ok {
		return nil, ErrOutOfMemory
	}
	a.reclassify(c)
	h := NormalHandle(id)
	return &Entry{Chunk: c, Handle: h, Bytes: c.Bytes(h, size), Class: sc}, nil
}

func (a *Arena) allocateSubpage(size int64, sc SizeClass) (*Entry, error) {
	list := a.listFor(sc.Size)
	sp := list.head
	if sp == nil {
		c, err := a.chunkWithRun(1)
		if err != nil {
			return nil, err
		}
		newSp, ok := c.NewSubpageHost(sc.Size)
		if !ok {
			return nil, ErrOutOfMemory
		}
		list.pushHead(newSp)
		a.reclassify(c)
		sp = newSp
	}
	idx, ok := sp.allocate(list)
	if !ok {
		return nil, ErrOutOfMemory
	}
	h := SubpageHandle(sp.id, idx, sp.generation)
	return &Entry{Chunk: sp.chunk, Handle: h, Bytes: sp.chunk.Bytes(h, size), Class: sc}, nil
}

// chunkWithRun finds (or creates) a Chunk with a free run of at least
// sizePages pages, following searchOrder.
func (a *Arena) chunkWithRun(sizePages int64) (*Chunk, error) {
	for _, band := range searchOrder {
		for c := a.bands[band].head; c != nil; c = c.next {
			if c.CanAllocateRun(sizePages) {
				return c, nil
			}
		}
	}
	return a.addChunk()
}

func (a *Arena) addChunk() (*Chunk, error) {
	if a.maxChunks > 0 && a.numChunks >= a.maxChunks {
		return nil, ErrOutOfMemory
	}
	mem, err := a.provider.NewChunk(a.cfg.ChunkSize())
	if err != nil {
		return nil, err
	}
	c := newChunk(a, a.cfg, mem)
	a.bands[qInit].pushTail(c)
	a.numChunks++
	infof("arena: added chunk, now %d of max %d", a.numChunks, a.maxChunks)
	return c, nil
}

// listFor returns the arena-wide subpage list for a tiny/small element
// size, creating it on first use.
func (a *Arena) listFor(elemSize int64) *subpageList {
	l := a.subpageLists[elemSize]
	if l == nil {
		l = &subpageList{}
		a.subpageLists[elemSize] = l
	}
	return l
}

// Free returns e's allocation to the Arena that produced it. A pooled
// Entry resolves its owning Arena from the Chunk's own back-pointer,
// so Free is correct no matter which Arena the calling goroutine is
// currently bound to; a huge Entry carries the Arena directly since it
// has no Chunk.
func (e *Entry) Free() error {
	if e.Chunk == nil {
		a := e.arena
		err := a.provider.ReleaseChunk(e.huge)
		atomic.AddInt64(&a.numDeallocations, 1)
		atomic.AddInt64(&a.numActiveAllocations, -1)
		return err
	}
	a := e.Chunk.arena
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrReleased
	}
	e.Chunk.Free(e.Handle, a.listFor)
	a.reclassify(e.Chunk)
	atomic.AddInt64(&a.numDeallocations, 1)
	atomic.AddInt64(&a.numActiveAllocations, -1)
	return nil
}

// reclassify re-buckets c into the band matching its current usage,
// and reclaims it back to the provider if it is now fully free, sits
// in q000, is not the arena's last remaining chunk, and qInit is not
// empty.
func (a *Arena) reclassify(c *Chunk) {
	newBand := bandFor(c.Usage(), c.everLeftInit)
	if newBand != c.band {
		if c.band == qInit && newBand != qInit {
			c.everLeftInit = true
		}
		a.bands[c.band].remove(c)
		a.bands[newBand].pushTail(c)
	}
	// A chunk that emptied out after having migrated to q000 is only
	// handed back to the provider if qInit still holds a fresh chunk
	// to take its place; a chunk still sitting in qInit itself (never
	// yet migrated) is never a release candidate under this check.
	if c.FreeBytes() == c.Capacity() && a.numChunks > 1 && c.band == q000 && a.bands[qInit].len > 0 {
		a.bands[c.band].remove(c)
		a.numChunks--
		if err := a.provider.ReleaseChunk(c.memory); err != nil {
			warnf("arena: release reclaimed chunk: %v", err)
		}
	}
}

// Stats summarizes an Arena's current occupancy, grouped by q-band.
type Stats struct {
	NumChunks  int
	Capacity   int64
	FreeBytes  int64
	BandCounts map[string]int

	NumAllocations       int64
	NumDeallocations     int64
	NumActiveAllocations int64
	NumOverflows         int64
}

// Utilization reports the fraction of this Arena's total capacity
// currently allocated, in [0,1].
func (a *Arena) Utilization() float64 {
	st := a.Snapshot()
	if st.Capacity == 0 {
		return 0
	}
	return 1.0 - float64(st.FreeBytes)/float64(st.Capacity)
}

// Memory reports the total backing capacity this Arena currently holds
// across every pooled chunk; huge-path allocations are excluded.
func (a *Arena) Memory() int64 { return a.Snapshot().Capacity }

// Allocated reports the portion of Memory() currently handed out to
// callers.
func (a *Arena) Allocated() int64 {
	st := a.Snapshot()
	return st.Capacity - st.FreeBytes
}

// Available reports the portion of Memory() still free to satisfy a
// new Allocate call without growing.
func (a *Arena) Available() int64 { return a.Snapshot().FreeBytes }

// Snapshot reports the Arena's current chunk occupancy.
func (a *Arena) Snapshot() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := Stats{
		NumChunks:  a.numChunks,
		BandCounts: make(map[string]int),

		NumAllocations:       atomic.LoadInt64(&a.numAllocations),
		NumDeallocations:     atomic.LoadInt64(&a.numDeallocations),
		NumActiveAllocations: atomic.LoadInt64(&a.numActiveAllocations),
		NumOverflows:         atomic.LoadInt64(&a.numOverflows),
	}
	for b := range a.bands {
		band := &a.bands[b]
		st.BandCounts[band.band.String()] = band.len
		for c := band.head; c != nil; c = c.next {
			st.Capacity += c.Capacity()
			st.FreeBytes += c.FreeBytes()
		}
	}
	return st
}

// Close releases every Chunk this Arena holds back to its provider.
// Subsequent Allocate calls fail with ErrReleased.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrReleased
	}
	a.closed = true
	var firstErr error
	for b := range a.bands {
		for c := a.bands[b].head; c != nil; c = c.next {
			if err := a.provider.ReleaseChunk(c.memory); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	a.numChunks = 0
	return firstErr
}
