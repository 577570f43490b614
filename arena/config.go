package arena

import "fmt"
import "math/bits"

import "github.com/dustin/go-humanize"

// MinPageSize is the smallest page size an Arena will accept.
const MinPageSize = int64(4096)

// MaxOrderLimit bounds how many tree levels a Chunk may have; chunkSize
// is capped at 2^30 bytes as a consequence.
const MaxOrderLimit = int8(14)

// MaxChunkSize is the hard ceiling implied by MaxOrderLimit.
const MaxChunkSize = int64(1) << 30

// Config carries the per-arena tree geometry: page size and tree depth.
// Everything else (cache sizing, arena counts) lives a layer up, in the
// pool-wide configuration.
type Config struct {
	PageSize int64
	MaxOrder int8
}

// Validate checks the geometry invariants from the data model: page size
// must be a power of two no smaller than MinPageSize, max order must fit
// within [0, MaxOrderLimit], and the resulting chunk size must not
// overflow the 2^30 byte ceiling.
func (cfg Config) Validate() error {
	if cfg.PageSize < MinPageSize || cfg.PageSize&(cfg.PageSize-1) != 0 {
		return fmt.Errorf("%w: pageSize must be power of two >= %s, got %s",
			ErrBadConfig, humanize.Bytes(uint64(MinPageSize)), humanize.Bytes(uint64(cfg.PageSize)))
	}
	if cfg.MaxOrder < 0 || cfg.MaxOrder > MaxOrderLimit {
		return fmt.Errorf("%w: maxOrder expected 0-%d, got %d", ErrBadConfig, MaxOrderLimit, cfg.MaxOrder)
	}
	if cfg.ChunkSize() > MaxChunkSize {
		return fmt.Errorf("%w: chunkSize %s exceeds %s ceiling",
			ErrBadConfig, humanize.Bytes(uint64(cfg.ChunkSize())), humanize.Bytes(uint64(MaxChunkSize)))
	}
	return nil
}

// ChunkSize is pageSize << maxOrder, the size of a single backing region.
func (cfg Config) ChunkSize() int64 {
	return cfg.PageSize << uint(cfg.MaxOrder)
}

// PageShifts returns log2(pageSize), computed from PageSize on each
// call.
func (cfg Config) PageShifts() int8 {
	return int8(bits.Len64(uint64(cfg.PageSize)) - 1)
}

// NumPages is the number of leaves in the chunk's buddy tree.
func (cfg Config) NumPages() int64 {
	return int64(1) << uint(cfg.MaxOrder)
}
