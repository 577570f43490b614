package threadcache

import "github.com/prataprc/bufpool/arena"

// ring is a fixed-capacity circular buffer of cached entries for a
// single size class. Pushing onto a full ring fails rather than
// growing, the way the teacher's free-list pools cap per-class
// retention (malloc/pool_flist.go) instead of letting a hot class
// balloon unboundedly.
type ring struct {
	buf        []*arena.Entry
	head, tail int
	count      int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]*arena.Entry, capacity)}
}

func (r *ring) cap() int { return len(r.buf) }

func (r *ring) len() int { return r.count }

func (r *ring) push(e *arena.Entry) bool {
	if r.count == len(r.buf) {
		return false
	}
	r.buf[r.tail] = e
	r.tail = (r.tail + 1) % len(r.buf)
	r.count++
	return true
}

func (r *ring) pop() (*arena.Entry, bool) {
	if r.count == 0 {
		return nil, false
	}
	e := r.buf[r.head]
	r.buf[r.head] = nil
	r.head = (r.head + 1) % len(r.buf)
	r.count--
	return e, true
}

// evictHalf frees roughly half of the ring's contents back to their
// arenas, called when a cache has gone idle without being emptied by
// ordinary use, and by Get once the cache's allocation count reaches
// its TrimInterval.
func (r *ring) evictHalf() {
	n := r.count / 2
	for i := 0; i < n; i++ {
		e, ok := r.pop()
		if !ok {
			return
		}
		if err := e.Free(); err != nil {
			warnf("threadcache: evict free: %v", err)
		}
	}
}

// drainAll frees every entry currently held in the ring.
func (r *ring) drainAll() {
	for {
		e, ok := r.pop()
		if !ok {
			return
		}
		if err := e.Free(); err != nil {
			warnf("threadcache: drain free: %v", err)
		}
	}
}
