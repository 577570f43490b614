package threadcache

import "testing"

import "github.com/prataprc/bufpool/arena"

func testCacheConfig() CacheConfig {
	return CacheConfig{
		TinyCacheSize:     8,
		SmallCacheSize:    8,
		NormalCacheSize:   8,
		MaxCachedCapacity: 1 << 20,
		TrimInterval:      8192,
	}
}

func testCache(t *testing.T) *Cache {
	cfg := arena.Config{PageSize: arena.MinPageSize, MaxOrder: 6}
	a, err := arena.NewArena(cfg, arena.HeapProvider{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return newCache(a, testCacheConfig())
}

func TestCacheGetMissFallsThroughToArena(t *testing.T) {
	c := testCache(t)
	e, err := c.Get(64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.Bytes) != 64 {
		t.Errorf("unexpected length %d", len(e.Bytes))
	}
}

func TestCachePutThenGetHits(t *testing.T) {
	c := testCache(t)
	e, err := c.Get(64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	arenaChunk := e.Chunk
	if err := c.Put(e); err != nil {
		t.Fatalf("unexpected error putting: %v", err)
	}
	e2, err := c.Get(64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e2.Chunk != arenaChunk {
		t.Errorf("expected the cached entry to be reused rather than a fresh allocation")
	}
}

func TestCachePutHugeBypassesRing(t *testing.T) {
	c := testCache(t)
	cfg := c.arena.Config()
	e, err := c.Get(cfg.ChunkSize() + 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Class.Cacheable() {
		t.Fatalf("expected huge class to not be cacheable")
	}
	if err := c.Put(e); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(c.rings) != 0 {
		t.Errorf("expected no ring created for a huge put")
	}
}

func TestCacheCloseDrainsRings(t *testing.T) {
	c := testCache(t)
	e, _ := c.Get(64)
	c.Put(e)
	if err := c.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Get(64); err != ErrClosed {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

func TestCacheRingDepthDiffersByTier(t *testing.T) {
	cfg := arena.Config{PageSize: arena.MinPageSize, MaxOrder: 6}
	a, err := arena.NewArena(cfg, arena.HeapProvider{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := newCache(a, CacheConfig{
		TinyCacheSize: 4, SmallCacheSize: 2, NormalCacheSize: 1,
		MaxCachedCapacity: 1 << 20, TrimInterval: 8192,
	})

	// 32 bytes lands in the tiny tier: its ring should hold all 4.
	var tiny []*arena.Entry
	for i := 0; i < 4; i++ {
		e, err := c.Get(32)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tiny = append(tiny, e)
	}
	for _, e := range tiny {
		if err := c.Put(e); err != nil {
			t.Fatalf("unexpected error putting: %v", err)
		}
	}
	if r := c.rings[tiny[0].Class.Size]; r.len() != 4 {
		t.Errorf("expected the tiny ring to hold all 4 entries, got %d", r.len())
	}

	// arena.MinPageSize (4096) lands in the normal tier, capped at 1.
	n1, _ := c.Get(arena.MinPageSize)
	n2, _ := c.Get(arena.MinPageSize)
	c.Put(n1)
	if err := c.Put(n2); err != nil {
		t.Fatalf("unexpected error putting: %v", err)
	}
	if r := c.rings[n1.Class.Size]; r.len() != 1 {
		t.Errorf("expected the normal ring to cap at 1 entry, got %d", r.len())
	}
}

func TestCacheNeverCachesAboveMaxCachedCapacity(t *testing.T) {
	cfg := arena.Config{PageSize: arena.MinPageSize, MaxOrder: 6}
	a, err := arena.NewArena(cfg, arena.HeapProvider{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := newCache(a, CacheConfig{
		TinyCacheSize: 4, SmallCacheSize: 4, NormalCacheSize: 4,
		MaxCachedCapacity: arena.MinPageSize, TrimInterval: 8192,
	})

	e, err := c.Get(arena.MinPageSize * 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.Class.Cacheable() {
		t.Fatalf("expected a normal-tier class to be cacheable in principle")
	}
	if err := c.Put(e); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(c.rings) != 0 {
		t.Errorf("expected no ring for a class above MaxCachedCapacity, got %d rings", len(c.rings))
	}
}

func TestCacheTrimsOnAllocationCount(t *testing.T) {
	cfg := arena.Config{PageSize: arena.MinPageSize, MaxOrder: 6}
	a, err := arena.NewArena(cfg, arena.HeapProvider{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := newCache(a, CacheConfig{
		TinyCacheSize: 8, SmallCacheSize: 8, NormalCacheSize: 8,
		MaxCachedCapacity: 1 << 20, TrimInterval: 4,
	})

	var entries []*arena.Entry
	for i := 0; i < 8; i++ {
		e, err := c.Get(32)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		entries = append(entries, e)
	}
	for _, e := range entries {
		if err := c.Put(e); err != nil {
			t.Fatalf("unexpected error putting: %v", err)
		}
	}
	ringSize := entries[0].Class.Size
	if r := c.rings[ringSize]; r.len() != 8 {
		t.Fatalf("expected all 8 entries to have landed in the ring before any trim, got %d", r.len())
	}

	// 4 further Gets of an unrelated tiny class push the allocation
	// counter past TrimInterval (4), which should trim every ring,
	// this one included, without any idle wait.
	for i := 0; i < int(c.cfg.TrimInterval); i++ {
		if _, err := c.Get(16); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if r := c.rings[ringSize]; r.len() >= 8 {
		t.Errorf("expected the allocation-count trim to have halved the ring, got %d still held", r.len())
	}
	if c.allocations >= c.cfg.TrimInterval {
		t.Errorf("expected the allocation counter to have reset across a trim boundary, got %d", c.allocations)
	}
}
