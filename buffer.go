package bufpool

import "github.com/prataprc/bufpool/arena"

// Buffer is a pooled byte slice handed out by a Pool or Worker. Bytes
// returns the usable slice; Release must be called exactly once, when
// the caller is done with it, or the backing memory is never returned
// to its Arena.
type Buffer struct {
	bytes    []byte
	entry    *arena.Entry
	release  func(*arena.Entry) error
	released bool
	direct   bool
}

// Bytes returns the buffer's usable byte slice, sized exactly to the
// caller's original request (never to its rounded-up size class).
func (b *Buffer) Bytes() []byte { return b.bytes }

// Len is equivalent to len(b.Bytes()).
func (b *Buffer) Len() int { return len(b.bytes) }

// Release returns the buffer's backing memory to the Pool. Calling it
// more than once is a no-op.
func (b *Buffer) Release() error {
	if b.released {
		return nil
	}
	b.released = true
	return b.release(b.entry)
}
