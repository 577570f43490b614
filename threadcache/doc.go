// Package threadcache fronts a set of sharded arenas with small
// per-owner caches, keeping the hot allocate/free path off the
// Arena's lock entirely once a cache is warm. An Owner is an explicit
// lease token: Go has no true OS-thread-local storage, so instead of
// pretending to reconstruct one, callers that want a persistent cache
// across calls lease an Owner once (typically one per goroutine that
// does steady allocation work) and release it when done. Callers that
// just want a single buffer without managing a lease go through the
// Router's default sync.Pool-backed path instead.
//
// Dead leases are reclaimed by idle timeout rather than by any
// thread-death notification, since Go goroutines carry no such event.
package threadcache
