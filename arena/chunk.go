package arena

import "fmt"

// Chunk is a single large backing region partitioned into pages via a
// complete binary tree. Node id 1 is the root; node at depth d covers a
// contiguous run of chunkSize>>d bytes. Leaves, at depth maxOrder,
// are single pages.
//
// A Chunk is mutated only by the thread currently holding its owning
// Arena's lock; it carries no lock of its own.
type Chunk struct {
	arena  *Arena
	memory []byte

	pageSize  int64
	maxOrder  int8
	chunkSize int64

	memoryMap      []uint8
	depthMap       []uint8
	subpages       []*Subpage // indexed by page, lazily populated
	pageGeneration []uint32   // indexed by page, bumped each time a page is (re)carved into a fresh Subpage

	freeBytes int64

	// q-list intrusive membership, mutated only under arena.mu.
	prev, next   *Chunk
	band         qband
	everLeftInit bool
}

// newChunk partitions mem (exactly cfg.ChunkSize() bytes) into a fresh
// buddy tree, fully free.
func newChunk(a *Arena, cfg Config, mem []byte) *Chunk {
	memoryMap, depthMap := buildMaps(cfg.MaxOrder)
	c := &Chunk{
		arena:     a,
		memory:    mem,
		pageSize:  cfg.PageSize,
		maxOrder:  cfg.MaxOrder,
		chunkSize: cfg.ChunkSize(),
		memoryMap:      memoryMap,
		depthMap:       depthMap,
		subpages:       make([]*Subpage, cfg.NumPages()),
		pageGeneration: make([]uint32, cfg.NumPages()),
		freeBytes:      cfg.ChunkSize(),
		band:           qInit,
	}
	return c
}

// buildMaps lays out memoryMap/depthMap for a tree of the given depth:
// node id 1 is the root, and id's children are 2*id and 2*id+1. Depth d
// holds ids in [2^d, 2^(d+1)).
func buildMaps(maxOrder int8) (memoryMap, depthMap []uint8) {
	size := int32(1) << uint(maxOrder+1)
	memoryMap = make([]uint8, size)
	depthMap = make([]uint8, size)
	id := int32(1)
	for d := int8(0); d <= maxOrder; d++ {
		count := int32(1) << uint(d)
		for i := int32(0); i < count; i++ {
			memoryMap[id] = uint8(d)
			depthMap[id] = uint8(d)
			id++
		}
	}
	return memoryMap, depthMap
}

// unusable is the memoryMap sentinel meaning "no free descendant".
func (c *Chunk) unusable() uint8 {
	return uint8(c.maxOrder) + 1
}

// FreeBytes returns the chunk's currently unallocated byte count.
func (c *Chunk) FreeBytes() int64 { return c.freeBytes }

// Capacity returns the chunk's total backing size.
func (c *Chunk) Capacity() int64 { return c.chunkSize }

// Usage returns the fraction of the chunk currently allocated, in
// [0,1].
func (c *Chunk) Usage() float64 {
	return 1.0 - float64(c.freeBytes)/float64(c.chunkSize)
}

// AllocateRun carves a run of sizePages contiguous pages (sizePages
// must be a power of two) out of the buddy tree, preferring the
// leftmost eligible node at equal freeness. Returns (-1, false) if no
// run of that size is currently free.
func (c *Chunk) AllocateRun(sizePages int64) (int32, bool) {
	k := log2i64(sizePages)
	d := int8(c.maxOrder) - k
	if d < 0 || c.memoryMap[1] > uint8(d) {
		return -1, false
	}
	id := c.allocNode(uint8(d))
	c.freeBytes -= sizePages * c.pageSize
	return id, true
}

// CanAllocateRun reports whether a run of sizePages contiguous pages is
// currently free, without mutating the tree. Used by the Arena to pick
// a chunk before committing to an allocation on it.
func (c *Chunk) CanAllocateRun(sizePages int64) bool {
	k := log2i64(sizePages)
	d := int8(c.maxOrder) - k
	return d >= 0 && c.memoryMap[1] <= uint8(d)
}

// allocNode descends from the root to the leftmost free node at depth
// d, marks it unusable, and propagates the change upward.
func (c *Chunk) allocNode(d uint8) int32 {
	id := int32(1)
	for c.depthMap[id] != d {
		left := 2 * id
		if c.memoryMap[left] <= d {
			id = left
		} else {
			id = left + 1
		}
	}
	c.memoryMap[id] = c.unusable()
	c.updateParents(id)
	return id
}

// FreeRun restores the node identified by id to its original depth and
// propagates the change upward, returning its byte size.
func (c *Chunk) FreeRun(id int32) int64 {
	assertNotDoubleFree(c.memoryMap[id] != c.unusable(), fmt.Sprintf("run node %d", id))

	d := c.depthMap[id]
	sizePages := int64(1) << uint(int8(c.maxOrder)-int8(d))
	size := sizePages * c.pageSize
	poison(c.memory[c.offsetOf(id, d) : c.offsetOf(id, d)+size])

	c.memoryMap[id] = d
	c.updateParents(id)
	c.freeBytes += size
	return size
}

// updateParents walks from id to the root; each parent's memoryMap
// entry becomes min(left child, right child), matching the invariant
// that a node's value is the shallowest free depth among descendants.
// When both children are entirely free (each back at its own depth),
// the parent is entirely free too and takes its own depth back, so
// freed buddies merge into the larger run.
func (c *Chunk) updateParents(id int32) {
	for id > 1 {
		parent := id / 2
		childDepth := c.depthMap[id]
		left, right := c.memoryMap[2*parent], c.memoryMap[2*parent+1]
		m := left
		if right < m {
			m = right
		}
		if left == childDepth && right == childDepth {
			m = c.depthMap[parent]
		}
		c.memoryMap[parent] = m
		id = parent
	}
}

// NewSubpageHost allocates a single fresh page run from this chunk and
// carves it into a Subpage of elemSize slots. Callers (Arena) only
// reach this once the arena-wide subpage list for elemSize is empty.
func (c *Chunk) NewSubpageHost(elemSize int64) (*Subpage, bool) {
	pageID, ok := c.AllocateRun(1)
	if !ok {
		return nil, false
	}
	pageIdx := c.pageIdxFromID(pageID)
	c.pageGeneration[pageIdx]++
	sp := newSubpage(c, pageIdx, pageID, elemSize, c.pageSize, c.pageGeneration[pageIdx])
	c.subpages[pageIdx] = sp
	return sp, true
}

// pageIdxFromID converts a leaf tree-node id into its 0-based page
// index.
func (c *Chunk) pageIdxFromID(id int32) int32 {
	return id - (int32(1) << uint(c.maxOrder))
}

// Free releases handle back into this chunk. For subpage handles the
// underlying page run is only returned to the tree once the Subpage
// reports it has become fully free and is not the sole occupant of
// listFor(elemSize).
func (c *Chunk) Free(handle Handle, listFor func(elemSize int64) *subpageList) {
	if handle.IsSubpage() {
		id := handle.ID()
		pageIdx := c.pageIdxFromID(id)
		sp := c.subpages[pageIdx]
		if sp == nil {
			panic(fmt.Sprintf("arena: free of unknown subpage handle on page %d", pageIdx))
		}
		assertForeignHandle(handle.Generation() != sp.generation&uint32(genMask),
			fmt.Sprintf("subpage slot %d on page %d (stale generation)", handle.BitmapIdx(), pageIdx))
		list := listFor(sp.elemSize)
		if sp.free(handle.BitmapIdx(), list) {
			return
		}
		c.subpages[pageIdx] = nil
		c.FreeRun(id)
		return
	}
	c.FreeRun(handle.ID())
}

// SizeClassOf reconstructs the SizeClass an allocated handle belongs
// to, purely from chunk/handle state — no external bookkeeping needed
// at free time.
func (c *Chunk) SizeClassOf(h Handle) SizeClass {
	if h.IsSubpage() {
		sp := c.subpages[c.pageIdxFromID(h.ID())]
		if sp.elemSize < tinyMax {
			return tinyClassForSize(sp.elemSize)
		}
		return smallClassForSize(sp.elemSize)
	}
	depth := c.depthMap[h.ID()]
	k := int8(c.maxOrder) - int8(depth)
	sizePages := int64(1) << uint(k)
	return SizeClass{Kind: KindNormal, Index: int(k), Size: sizePages * c.pageSize}
}

// Bytes returns the byte slice for a given handle's allocation. Normal
// handles map to a contiguous run of pages; subpage handles map to a
// single slot within a page.
func (c *Chunk) Bytes(h Handle, length int64) []byte {
	if h.IsSubpage() {
		sp := c.subpages[c.pageIdxFromID(h.ID())]
		pageOff := int64(sp.pageIdx) * c.pageSize
		slotOff := int64(h.BitmapIdx()) * sp.elemSize
		return c.memory[pageOff+slotOff : pageOff+slotOff+length]
	}
	depth := c.depthMap[h.ID()]
	offset := c.offsetOf(h.ID(), depth)
	return c.memory[offset : offset+length]
}

// offsetOf computes the byte offset of a tree node, given its depth:
// nodes at depth d are numbered left-to-right starting at id 2^d, each
// covering chunkSize>>d bytes.
func (c *Chunk) offsetOf(id int32, depth uint8) int64 {
	firstIDAtDepth := int32(1) << uint(depth)
	slot := int64(id - firstIDAtDepth)
	runSize := c.chunkSize >> uint(depth)
	return slot * runSize
}

func log2i64(n int64) int8 {
	var k int8
	for n > 1 {
		n >>= 1
		k++
	}
	return k
}
