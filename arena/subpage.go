package arena

import "fmt"
import "math/bits"

// Subpage treats a single page as a slab of equal-sized slots, tracked
// by a free-slot bitmap. Mutated only under the owning Arena's lock.
//
// The bitmap representation is grounded on the teacher's hierarchical
// cacheline bitmap (malloc/freebits.go) but flattened to a single level
// of uint64 words searched with math/bits, since a page's slot count
// never exceeds pageSize/tinyMultiple (a few hundred bits) — the extra
// hierarchy the teacher needed for multi-megabyte pools buys nothing
// here.
type Subpage struct {
	chunk    *Chunk
	pageIdx  int32
	id       int32 // host page's buddy-tree node id
	elemSize int64
	numSlots int32

	bitmap    []uint64
	freeCount int32
	hint      int32 // rotating search start, avoids re-scanning low words

	// generation is the host page's reuse counter (Chunk.pageGeneration)
	// as of this Subpage's construction, stamped into every Handle it
	// issues so a handle surviving past this page's next recycle is
	// detectable as foreign rather than aliasing whatever now occupies
	// the page.
	generation uint32

	prev, next *Subpage
	inList     bool
}

func newSubpage(chunk *Chunk, pageIdx, id int32, elemSize, pageSize int64, generation uint32) *Subpage {
	n := int32(pageSize / elemSize)
	words := (n + 63) / 64
	bitmap := make([]uint64, words)
	for i := range bitmap {
		bitmap[i] = ^uint64(0)
	}
	if rem := uint(n) % 64; rem != 0 {
		bitmap[len(bitmap)-1] = (uint64(1) << rem) - 1
	}
	return &Subpage{
		chunk: chunk, pageIdx: pageIdx, id: id,
		elemSize: elemSize, numSlots: n,
		bitmap: bitmap, freeCount: n,
		generation: generation,
	}
}

// allocate claims the next free slot, advancing the rotating hint, and
// removes the page from list if it just became full.
func (sp *Subpage) allocate(list *subpageList) (int32, bool) {
	if sp.freeCount == 0 {
		return 0, false
	}
	idx := sp.findFreeBit()
	word, bit := idx/64, uint(idx%64)
	sp.bitmap[word] &^= uint64(1) << bit
	sp.freeCount--
	sp.hint = idx
	if sp.freeCount == 0 {
		list.remove(sp)
	}
	return idx, true
}

// findFreeBit scans bitmap words starting from the word containing the
// rotating hint, wrapping around, and returns the first set bit.
func (sp *Subpage) findFreeBit() int32 {
	nwords := len(sp.bitmap)
	start := int(sp.hint) / 64
	for i := 0; i < nwords; i++ {
		w := (start + i) % nwords
		if sp.bitmap[w] != 0 {
			return int32(w*64 + bits.TrailingZeros64(sp.bitmap[w]))
		}
	}
	panic("arena: subpage free-bit search found none despite freeCount > 0")
}

// free releases slot bitmapIdx. It returns true if the host page must
// stay reserved (the subpage still has live slots, or it is the sole
// occupant of list and is being kept warm), and false once the caller
// should return the underlying page run to the chunk's buddy tree.
func (sp *Subpage) free(bitmapIdx int32, list *subpageList) bool {
	word, bit := bitmapIdx/64, uint(bitmapIdx%64)
	assertNotDoubleFree(sp.bitmap[word]&(uint64(1)<<bit) != 0, fmt.Sprintf("subpage slot %d", bitmapIdx))

	pageOff := int64(sp.pageIdx) * sp.chunk.pageSize
	slotOff := int64(bitmapIdx) * sp.elemSize
	poison(sp.chunk.memory[pageOff+slotOff : pageOff+slotOff+sp.elemSize])

	wasFull := sp.freeCount == 0
	sp.bitmap[word] |= uint64(1) << bit
	sp.freeCount++
	if wasFull {
		list.pushHead(sp)
	}
	if sp.freeCount == sp.numSlots && list.len > 1 {
		list.remove(sp)
		return false
	}
	return true
}

// subpageList is the arena-wide, per-size-class list of pages with at
// least one free slot. Allocation always checks here first, across all
// chunks, before carving a fresh page out of any one chunk.
type subpageList struct {
	head *Subpage
	len  int
}

func (l *subpageList) pushHead(sp *Subpage) {
	sp.prev, sp.next = nil, l.head
	if l.head != nil {
		l.head.prev = sp
	}
	l.head = sp
	sp.inList = true
	l.len++
}

func (l *subpageList) remove(sp *Subpage) {
	if !sp.inList {
		return
	}
	if sp.prev != nil {
		sp.prev.next = sp.next
	} else {
		l.head = sp.next
	}
	if sp.next != nil {
		sp.next.prev = sp.prev
	}
	sp.prev, sp.next = nil, nil
	sp.inList = false
	l.len--
}
