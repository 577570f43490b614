package arena

import "testing"

func testArena(t *testing.T, maxOrder int8, maxChunks int) *Arena {
	cfg := Config{PageSize: MinPageSize, MaxOrder: maxOrder}
	a, err := NewArena(cfg, HeapProvider{}, maxChunks)
	if err != nil {
		t.Fatalf("unexpected error building arena: %v", err)
	}
	return a
}

func TestArenaAllocateFreeRoundtrip(t *testing.T) {
	a := testArena(t, 4, 0)
	e, err := a.Allocate(100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.Bytes) != 100 {
		t.Errorf("unexpected length %d", len(e.Bytes))
	}
	copy(e.Bytes, []byte("hello"))
	if string(e.Bytes[:5]) != "hello" {
		t.Errorf("buffer did not retain written bytes")
	}
	if err := e.Free(); err != nil {
		t.Errorf("unexpected error freeing: %v", err)
	}
}

func TestArenaHugeBypassesPooling(t *testing.T) {
	a := testArena(t, 2, 0) // chunkSize = 4 pages * 4096 = 16384
	e, err := a.Allocate(100000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Chunk != nil {
		t.Errorf("huge allocation must not be attributed to a chunk")
	}
	if len(e.Bytes) != 100000 {
		t.Errorf("unexpected length %d", len(e.Bytes))
	}
	if err := e.Free(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestArenaTinyAllocationsShareAHostPage(t *testing.T) {
	a := testArena(t, 4, 0)
	entries := []*Entry{}
	for i := 0; i < 8; i++ {
		e, err := a.Allocate(32)
		if err != nil {
			t.Fatalf("unexpected error on alloc %d: %v", i, err)
		}
		entries = append(entries, e)
	}
	first := entries[0].Chunk
	for i, e := range entries {
		if e.Chunk != first {
			t.Errorf("entry %d landed on a different chunk than the first", i)
		}
		if !e.Handle.IsSubpage() {
			t.Errorf("entry %d expected a subpage handle", i)
		}
	}
	for _, e := range entries {
		if err := e.Free(); err != nil {
			t.Errorf("unexpected error freeing: %v", err)
		}
	}
}

func TestArenaAllocationsDoNotOverlap(t *testing.T) {
	a := testArena(t, 4, 0)
	entries := []*Entry{}
	for i := 0; i < 16; i++ {
		e, err := a.Allocate(64)
		if err != nil {
			t.Fatalf("unexpected error on alloc %d: %v", i, err)
		}
		copy(e.Bytes, []byte{byte(i)})
		entries = append(entries, e)
	}
	for i, e := range entries {
		if e.Bytes[0] != byte(i) {
			t.Errorf("entry %d's memory was clobbered by another allocation (got %d)", i, e.Bytes[0])
		}
	}
	for _, e := range entries {
		e.Free()
	}
}

func TestArenaGrowsChunksOnDemand(t *testing.T) {
	a := testArena(t, 1, 0) // tiny chunks: 2 pages each
	var entries []*Entry
	for i := 0; i < 6; i++ {
		e, err := a.Allocate(MinPageSize)
		if err != nil {
			t.Fatalf("unexpected error on alloc %d: %v", i, err)
		}
		entries = append(entries, e)
	}
	if a.numChunks < 3 {
		t.Errorf("expected at least 3 chunks for 6 one-page allocations of a 2-page chunk, got %d", a.numChunks)
	}
	for _, e := range entries {
		e.Free()
	}
}

func TestArenaRespectsMaxChunks(t *testing.T) {
	a := testArena(t, 0, 1) // 1 page per chunk, at most 1 chunk
	_, err := a.Allocate(MinPageSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := a.Allocate(MinPageSize); err != ErrOutOfMemory {
		t.Errorf("expected ErrOutOfMemory once maxChunks is reached, got %v", err)
	}
}

// With 1-page chunks every allocation immediately pushes usage to
// 100%, so a chunk always leaves qInit on its first allocation. Once
// both chunks have left qInit there is no fresh qInit chunk for an
// emptied-out chunk to be replaced by, so it is retained rather than
// handed back to the provider.
func TestArenaRetainsEmptyChunkWhenQInitEmpty(t *testing.T) {
	a := testArena(t, 0, 0) // 1 page per chunk
	e1, _ := a.Allocate(MinPageSize)
	e2, _ := a.Allocate(MinPageSize)
	if a.numChunks != 2 {
		t.Fatalf("expected 2 chunks, got %d", a.numChunks)
	}
	if a.bands[qInit].len != 0 {
		t.Fatalf("expected both chunks to have left qInit, got %d still there", a.bands[qInit].len)
	}
	if err := e2.Free(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if a.numChunks != 2 {
		t.Errorf("expected the now-empty chunk to be retained with qInit empty, got %d chunks", a.numChunks)
	}
	if err := e1.Free(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if a.numChunks != 2 {
		t.Errorf("expected both chunks to remain retained, got %d chunks", a.numChunks)
	}
}

// When a lightly-used chunk is still sitting in qInit, a second chunk
// that empties out after having migrated to q000 is handed back to
// the provider instead of kept around as a second idle chunk.
func TestArenaReclaimsEmptyChunkWhenQInitHasReplacement(t *testing.T) {
	a := testArena(t, 4, 0) // 16 pages per chunk

	small, err := a.Allocate(MinPageSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.bands[qInit].len != 1 {
		t.Fatalf("expected the lightly-used chunk to stay in qInit, got %d there", a.bands[qInit].len)
	}

	full, err := a.Allocate(a.cfg.ChunkSize())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.numChunks != 2 {
		t.Fatalf("expected a second chunk for the full-size run, got %d", a.numChunks)
	}

	if err := full.Free(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if a.numChunks != 1 {
		t.Errorf("expected the emptied chunk to be reclaimed with a qInit replacement on hand, got %d chunks", a.numChunks)
	}

	small.Free()
}

func TestArenaCloseRejectsFurtherAllocation(t *testing.T) {
	a := testArena(t, 2, 0)
	if err := a.Close(); err != nil {
		t.Fatalf("unexpected error closing: %v", err)
	}
	if _, err := a.Allocate(64); err != ErrReleased {
		t.Errorf("expected ErrReleased after Close, got %v", err)
	}
	if err := a.Close(); err != ErrReleased {
		t.Errorf("expected double-close to report ErrReleased, got %v", err)
	}
}

func TestArenaSnapshotAccountsForFreeBytes(t *testing.T) {
	a := testArena(t, 3, 0)
	e, _ := a.Allocate(64)
	snap := a.Snapshot()
	if snap.NumChunks != 1 {
		t.Errorf("expected 1 chunk, got %d", snap.NumChunks)
	}
	if snap.FreeBytes >= snap.Capacity {
		t.Errorf("expected some bytes consumed, got free=%d capacity=%d", snap.FreeBytes, snap.Capacity)
	}
	e.Free()
}

func TestArenaCountersTrackAllocationsAndOverflow(t *testing.T) {
	a := testArena(t, 2, 0) // chunkSize = 4 pages * 4096 = 16384
	normal, err := a.Allocate(64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	huge, err := a.Allocate(100000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := a.Snapshot()
	if snap.NumAllocations != 2 {
		t.Errorf("expected 2 allocations recorded, got %d", snap.NumAllocations)
	}
	if snap.NumActiveAllocations != 2 {
		t.Errorf("expected 2 active allocations, got %d", snap.NumActiveAllocations)
	}
	if snap.NumOverflows != 1 {
		t.Errorf("expected 1 overflow recorded, got %d", snap.NumOverflows)
	}
	if a.Allocated() <= 0 {
		t.Errorf("expected Allocated() > 0 with live allocations")
	}
	if a.Available() > a.Memory() {
		t.Errorf("Available() must not exceed Memory()")
	}

	normal.Free()
	huge.Free()

	snap = a.Snapshot()
	if snap.NumDeallocations != 2 {
		t.Errorf("expected 2 deallocations recorded, got %d", snap.NumDeallocations)
	}
	if snap.NumActiveAllocations != 0 {
		t.Errorf("expected 0 active allocations after freeing both, got %d", snap.NumActiveAllocations)
	}
}
