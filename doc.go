// Package bufpool implements a pooled byte-buffer allocator in three
// tiers: package arena carves pages out of large backing chunks with a
// buddy/slab allocator, Pool shards a set of Arenas to reduce lock
// contention, and package threadcache fronts each shard with small
// per-owner caches so that a hot allocate/free loop mostly never touches
// an Arena's lock at all.
//
// A Pool is the entry point:
//
//	cfg, err := bufpool.ParseConfig(bufpool.Defaultsettings())
//	pool, err := bufpool.NewPool(cfg)
//	buf, err := pool.NewHeapBuffer(128)
//	defer buf.Release()
//
// Callers doing steady allocation work from one goroutine get a better
// deal from an explicit Worker lease, which keeps its own cache warm
// across calls instead of borrowing one from a shared pool each time:
//
//	w := pool.Worker()
//	defer w.Close()
//	buf, err := w.NewBuffer(128)
package bufpool
