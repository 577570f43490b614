// Package arena implements the per-arena buddy/slab allocator that backs
// a pooled byte-buffer allocator: Chunks carved into pages by a complete
// binary tree, Subpages that slice a page into equal sized slots, and the
// Arena that shards a set of Chunks behind a single lock.
//
//   - Types and methods exported by this package are safe for concurrent
//     use unless documented otherwise; the Arena's own lock is only taken
//     on a thread-cache miss.
//   - A Chunk is owned exclusively by the Arena that created it; callers
//     never mutate a Chunk without holding that Arena's lock.
//   - Allocated handles are 64-bit opaque values (see Handle) valid only
//     for the Chunk and Arena that produced them.
package arena
