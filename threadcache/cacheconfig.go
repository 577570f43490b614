package threadcache

import "fmt"

import "github.com/prataprc/bufpool/arena"

// CacheConfig carries the per-Cache tuning knobs that used to be a
// single uniform ring depth: each size-class tier keeps its own depth
// (tiny allocations churn far more than normal ones, so they warrant a
// deeper ring), a ceiling above which an entry is never cached
// regardless of tier, and an allocation-count threshold that triggers
// a trim pass independent of the idle-time-based one Cleanup already
// runs.
type CacheConfig struct {
	TinyCacheSize   int
	SmallCacheSize  int
	NormalCacheSize int

	MaxCachedCapacity int64
	TrimInterval      int64
}

// capFor returns the ring depth a Cache should use for entries of the
// given Kind.
func (cfg CacheConfig) capFor(kind arena.Kind) int {
	switch kind {
	case arena.KindTiny:
		return cfg.TinyCacheSize
	case arena.KindSmall:
		return cfg.SmallCacheSize
	default:
		return cfg.NormalCacheSize
	}
}

// Validate checks that every knob is usable; a CacheConfig with a
// zero TrimInterval would never trim, and a zero cache size for a
// reachable tier would defeat caching for it entirely.
func (cfg CacheConfig) Validate() error {
	if cfg.TinyCacheSize < 1 {
		return fmt.Errorf("%w: cache.tinycachesize must be >= 1, got %d", ErrBadConfig, cfg.TinyCacheSize)
	}
	if cfg.SmallCacheSize < 1 {
		return fmt.Errorf("%w: cache.smallcachesize must be >= 1, got %d", ErrBadConfig, cfg.SmallCacheSize)
	}
	if cfg.NormalCacheSize < 1 {
		return fmt.Errorf("%w: cache.normalcachesize must be >= 1, got %d", ErrBadConfig, cfg.NormalCacheSize)
	}
	if cfg.MaxCachedCapacity < 1 {
		return fmt.Errorf("%w: cache.maxcachedcapacity must be >= 1, got %d", ErrBadConfig, cfg.MaxCachedCapacity)
	}
	if cfg.TrimInterval < 1 {
		return fmt.Errorf("%w: cache.triminterval must be >= 1, got %d", ErrBadConfig, cfg.TrimInterval)
	}
	return nil
}
