package threadcache

import "testing"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

import "github.com/prataprc/bufpool/arena"

func testRouter(t *testing.T, numArenas int) *Router {
	arenas := make([]*arena.Arena, numArenas)
	for i := range arenas {
		a, err := arena.NewArena(arena.Config{PageSize: arena.MinPageSize, MaxOrder: 6}, arena.HeapProvider{}, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		arenas[i] = a
	}
	return NewRouter(arenas, testCacheConfig())
}

func TestRouterLeaseAndRelease(t *testing.T) {
	r := testRouter(t, 2)
	owner, cache := r.Lease()
	assert.NotZero(t, owner)

	got, ok := r.CacheFor(owner)
	assert.True(t, ok)
	assert.Equal(t, cache, got)

	require.NoError(t, r.Release(owner))
	_, ok = r.CacheFor(owner)
	assert.False(t, ok, "expected owner to be forgotten after release")
}

func TestRouterReleaseUnknownOwner(t *testing.T) {
	r := testRouter(t, 1)
	assert.Equal(t, ErrUnknownOwner, r.Release(Owner(999)))
}

func TestRouterLeaseSpreadsAcrossArenas(t *testing.T) {
	r := testRouter(t, 4)
	seen := map[*arena.Arena]bool{}
	for i := 0; i < 8; i++ {
		_, cache := r.Lease()
		seen[cache.arena] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected leases to spread across more than one arena, got %d distinct", len(seen))
	}
}

func TestRouterSweepReclaimsStaleOwners(t *testing.T) {
	r := testRouter(t, 1)
	owner, _ := r.Lease()
	n := r.Sweep(func(c *Cache) bool { return true })
	if n != 1 {
		t.Errorf("expected 1 reclaimed, got %d", n)
	}
	if _, ok := r.CacheFor(owner); ok {
		t.Errorf("expected owner forgotten after sweep")
	}
}

func TestRouterSweepKeepsFreshOwners(t *testing.T) {
	r := testRouter(t, 1)
	r.Lease()
	n := r.Sweep(func(c *Cache) bool { return false })
	if n != 0 {
		t.Errorf("expected 0 reclaimed, got %d", n)
	}
}

func TestRouterDefaultPoolReusesCache(t *testing.T) {
	r := testRouter(t, 1)
	c1, release1 := r.Default()
	release1()
	c2, release2 := r.Default()
	defer release2()
	if c1 != c2 {
		t.Errorf("expected sync.Pool to hand back the same cache when uncontended")
	}
}

func TestRouterCloseAllDrainsLeasedAndDefaultCaches(t *testing.T) {
	r := testRouter(t, 1)

	_, leased := r.Lease()
	e, err := leased.Get(64)
	require.NoError(t, err)
	require.NoError(t, leased.Put(e))

	def, release := r.Default()
	e2, err := def.Get(64)
	require.NoError(t, err)
	require.NoError(t, def.Put(e2))
	release()

	require.NoError(t, r.CloseAll())

	if _, err := leased.Get(64); err != ErrClosed {
		t.Errorf("expected leased cache closed after CloseAll, got %v", err)
	}
	if _, err := def.Get(64); err != ErrClosed {
		t.Errorf("expected default-path cache closed after CloseAll, got %v", err)
	}
}
