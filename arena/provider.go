package arena

import "fmt"

import "golang.org/x/sys/unix"

// ChunkProvider supplies and reclaims the backing memory for a Chunk.
// Grounded on the heap-vs-mmap split in holmberd-go-cmap/chunk_pool.go:
// a HeapProvider keeps everything inside the Go heap and GC, a
// DirectProvider maps memory outside it for callers who want to avoid
// GC scan pressure from large pools.
type ChunkProvider interface {
	// NewChunk returns a freshly backed, zeroed byte slice of exactly
	// size bytes.
	NewChunk(size int64) ([]byte, error)
	// ReleaseChunk returns a chunk's backing memory. HeapProvider's
	// implementation is a no-op; DirectProvider unmaps it.
	ReleaseChunk(mem []byte) error
}

// HeapProvider backs chunks with ordinary Go-heap allocations.
type HeapProvider struct{}

func (HeapProvider) NewChunk(size int64) ([]byte, error) {
	return make([]byte, size), nil
}

func (HeapProvider) ReleaseChunk(mem []byte) error { return nil }

// DirectProvider backs chunks with anonymous mmap regions, outside the
// Go heap, so the GC never scans them.
type DirectProvider struct{}

func (DirectProvider) NewChunk(size int64) ([]byte, error) {
	mem, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("arena: mmap %d bytes: %w", size, err)
	}
	return mem, nil
}

func (DirectProvider) ReleaseChunk(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("arena: munmap %d bytes: %w", len(mem), err)
	}
	return nil
}
