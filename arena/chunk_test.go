package arena

import "testing"

func testChunk(t *testing.T, maxOrder int8) *Chunk {
	cfg := Config{PageSize: MinPageSize, MaxOrder: maxOrder}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("bad config: %v", err)
	}
	return newChunk(nil, cfg, make([]byte, cfg.ChunkSize()))
}

func TestChunkAllocateRunExhaustion(t *testing.T) {
	c := testChunk(t, 2) // 4 pages
	ids := []int32{}
	for i := 0; i < 4; i++ {
		id, ok := c.AllocateRun(1)
		if !ok {
			t.Fatalf("expected page %d to be free", i)
		}
		ids = append(ids, id)
	}
	if _, ok := c.AllocateRun(1); ok {
		t.Errorf("expected exhaustion on 5th page")
	}
	if c.FreeBytes() != 0 {
		t.Errorf("expected zero free bytes, got %d", c.FreeBytes())
	}
	for _, id := range ids {
		c.FreeRun(id)
	}
	if c.FreeBytes() != c.Capacity() {
		t.Errorf("expected full reclaim, got %d of %d", c.FreeBytes(), c.Capacity())
	}
}

func TestChunkByteConservation(t *testing.T) {
	c := testChunk(t, 4) // 16 pages
	total := c.Capacity()

	id2, ok := c.AllocateRun(2)
	if !ok {
		t.Fatalf("expected run of 2 to succeed")
	}
	id1, ok := c.AllocateRun(1)
	if !ok {
		t.Fatalf("expected run of 1 to succeed")
	}
	if got := total - c.FreeBytes(); got != 3*c.pageSize {
		t.Errorf("expected 3 pages allocated, got %d bytes", got)
	}

	c.FreeRun(id2)
	c.FreeRun(id1)
	if c.FreeBytes() != total {
		t.Errorf("expected all bytes reclaimed, got %d of %d", c.FreeBytes(), total)
	}
}

func TestChunkRunsDoNotOverlap(t *testing.T) {
	c := testChunk(t, 3) // 8 pages
	seen := map[int64]bool{}
	for i := 0; i < 8; i++ {
		id, ok := c.AllocateRun(1)
		if !ok {
			t.Fatalf("expected page %d free", i)
		}
		off := c.offsetOf(id, c.depthMap[id])
		if seen[off] {
			t.Errorf("offset %d allocated twice", off)
		}
		seen[off] = true
	}
}

func TestChunkBuddyMerge(t *testing.T) {
	c := testChunk(t, 1) // 2 pages, one buddy pair
	a, ok := c.AllocateRun(1)
	if !ok {
		t.Fatalf("expected first page")
	}
	b, ok := c.AllocateRun(1)
	if !ok {
		t.Fatalf("expected second page")
	}
	c.FreeRun(a)
	c.FreeRun(b)
	// both buddies free again: a full-chunk run must now be allocatable.
	if _, ok := c.AllocateRun(2); !ok {
		t.Errorf("expected merged buddies to satisfy a run of 2")
	}
}

func TestChunkSizeClassOfNormal(t *testing.T) {
	c := testChunk(t, 3)
	id, ok := c.AllocateRun(2)
	if !ok {
		t.Fatalf("expected run of 2")
	}
	h := NormalHandle(id)
	sc := c.SizeClassOf(h)
	if sc.Kind != KindNormal || sc.Size != 2*c.pageSize {
		t.Errorf("unexpected size class %v", sc)
	}
}
