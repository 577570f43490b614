package bufpool

import "fmt"
import "runtime"
import "time"

import s "github.com/bnclabs/gosettings"
import "github.com/cloudfoundry/gosigar"
import "github.com/dustin/go-humanize"

import "github.com/prataprc/bufpool/arena"
import "github.com/prataprc/bufpool/threadcache"

// FreeRAMFraction is the portion of free system RAM Defaultsettings
// takes as its memory budget. The default arena.maxchunks is that
// budget's worth of chunks and caps each Arena shard separately, not
// all arenas combined.
const FreeRAMFraction = 0.10

// Defaultsettings returns a sized-to-the-machine configuration, the
// way llrb.Defaultsettings sizes key/value capacity off sigar.Mem
// (llrb/config.go).
//
// "arena.pagesize" (int64, default: 8192)
//		Smallest unit a Chunk is split into.
//
// "arena.maxorder" (int64, default: 11)
//		Tree depth per Chunk; chunk size is pagesize << maxorder
//		(16MiB at the defaults above).
//
// "arena.maxchunks" (int64, default: sized off free RAM)
//		Upper bound on Chunks per Arena shard, 0 means unbounded.
//
// "arena.direct" (bool, default: false)
//		Back chunks with mmap'd memory outside the Go heap instead
//		of ordinary heap allocations.
//
// "arena.numheaparenas" (int64, default: min(cores, freeRAM budget/chunksize/6))
//		Number of Arena shards NewHeapBuffer/Worker.NewBuffer spread
//		allocations across. 0 disables pooled heap allocation.
//
// "arena.numdirectarenas" (int64, default: min(cores, freeRAM budget/chunksize/6))
//		Same as arena.numheaparenas, for NewDirectBuffer/
//		Worker.NewDirectBuffer. 0 disables pooled direct allocation.
//
// "cache.tinycachesize" (int64, default: 512)
//		Ring depth for the tiny tier, the most heavily churned.
//
// "cache.smallcachesize" (int64, default: 256)
//		Ring depth for the small tier.
//
// "cache.normalcachesize" (int64, default: 64)
//		Ring depth for the normal (page-run) tier.
//
// "cache.maxcachedcapacity" (int64, default: 32768)
//		Classes larger than this are never cached regardless of
//		tier; they always round-trip through the Arena.
//
// "cache.triminterval" (int64, default: 8192)
//		Get calls a Cache serves before it trims itself,
//		independent of cache.sweepinterval's idle-time check.
//
// "cache.idletimeout" (int64, milliseconds, default: 30000)
//		How long an unreleased Worker's cache must sit untouched
//		before Cleanup reclaims it.
//
// "cache.sweepinterval" (int64, milliseconds, default: 5000)
//		How often Cleanup scans for idle caches.
func Defaultsettings() s.Settings {
	_, _, free := getsysmem()
	chunkSize := int64(8192) << 11 // pagesize(8192) * 2^11 = 16MiB
	budget := int64(float64(free) * FreeRAMFraction)
	maxchunks := budget / chunkSize
	if maxchunks < 1 {
		maxchunks = 1
	}
	numArenas := defaultNumArenas(budget, chunkSize)
	return s.Settings{
		"arena.pagesize":          int64(8192),
		"arena.maxorder":          int64(11),
		"arena.maxchunks":         maxchunks,
		"arena.direct":            false,
		"arena.numheaparenas":     numArenas,
		"arena.numdirectarenas":  numArenas,
		"cache.tinycachesize":     int64(512),
		"cache.smallcachesize":    int64(256),
		"cache.normalcachesize":  int64(64),
		"cache.maxcachedcapacity": int64(32 * 1024),
		"cache.triminterval":     int64(8192),
		"cache.idletimeout":      int64(30000),
		"cache.sweepinterval":    int64(5000),
	}
}

// defaultNumArenas follows the same cores-vs-memory cap Netty's
// PooledByteBufAllocator applies to its own default arena counts:
// never more shards than there are cores, and never so many that six
// fully-grown chunks per shard would outrun budget. Go has no
// separate heap-vs-off-heap memory ceiling the way -Xmx and
// -XX:MaxDirectMemorySize give the JVM, so both arena.numheaparenas
// and arena.numdirectarenas default off the same free-RAM budget.
func defaultNumArenas(budget, chunkSize int64) int64 {
	cores := int64(runtime.GOMAXPROCS(0))
	byMemory := budget / chunkSize / 6
	if byMemory < 1 {
		byMemory = 1
	}
	if byMemory < cores {
		return byMemory
	}
	return cores
}

// Config is the parsed, validated form of the settings a Pool is
// built from.
type Config struct {
	Arena           arena.Config
	MaxChunks       int
	Direct          bool
	NumHeapArenas   int
	NumDirectArenas int
	Cache           threadcache.CacheConfig
	IdleTimeout     time.Duration
	SweepInterval   time.Duration
}

// ParseConfig converts a raw Settings map into a Config, filling in
// anything Defaultsettings would have supplied for missing keys.
func ParseConfig(setts s.Settings) (Config, error) {
	setts = Defaultsettings().Mixin(setts)

	cfg := Config{
		Arena: arena.Config{
			PageSize: setts.Int64("arena.pagesize"),
			MaxOrder: int8(setts.Int64("arena.maxorder")),
		},
		MaxChunks:       int(setts.Int64("arena.maxchunks")),
		Direct:          setts.Bool("arena.direct"),
		NumHeapArenas:   int(setts.Int64("arena.numheaparenas")),
		NumDirectArenas: int(setts.Int64("arena.numdirectarenas")),
		Cache: threadcache.CacheConfig{
			TinyCacheSize:     int(setts.Int64("cache.tinycachesize")),
			SmallCacheSize:    int(setts.Int64("cache.smallcachesize")),
			NormalCacheSize:   int(setts.Int64("cache.normalcachesize")),
			MaxCachedCapacity: setts.Int64("cache.maxcachedcapacity"),
			TrimInterval:      setts.Int64("cache.triminterval"),
		},
		IdleTimeout:   time.Duration(setts.Int64("cache.idletimeout")) * time.Millisecond,
		SweepInterval: time.Duration(setts.Int64("cache.sweepinterval")) * time.Millisecond,
	}
	return cfg, cfg.Validate()
}

// Validate checks the pool-wide invariants on top of what
// arena.Config.Validate already checks for the per-arena geometry.
// Zero is a valid arena count for either half: it disables pooled
// heap or pooled direct allocation respectively, rather than
// signaling a misconfiguration.
func (cfg Config) Validate() error {
	if err := cfg.Arena.Validate(); err != nil {
		return err
	}
	if cfg.NumHeapArenas < 0 {
		return fmt.Errorf("%w: arena.numheaparenas must be >= 0, got %d", ErrBadConfig, cfg.NumHeapArenas)
	}
	if cfg.NumDirectArenas < 0 {
		return fmt.Errorf("%w: arena.numdirectarenas must be >= 0, got %d", ErrBadConfig, cfg.NumDirectArenas)
	}
	if err := cfg.Cache.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadConfig, err)
	}
	if cfg.IdleTimeout <= 0 {
		return fmt.Errorf("%w: cache.idletimeout must be positive, got %s", ErrBadConfig, cfg.IdleTimeout)
	}
	if cfg.SweepInterval <= 0 {
		return fmt.Errorf("%w: cache.sweepinterval must be positive, got %s", ErrBadConfig, cfg.SweepInterval)
	}
	return nil
}

func (cfg Config) String() string {
	return fmt.Sprintf(
		"bufpool.Config{arena:%s/order%d, maxchunks:%d, heaparenas:%d, directarenas:%d}",
		humanize.Bytes(uint64(cfg.Arena.PageSize)), cfg.Arena.MaxOrder, cfg.MaxChunks,
		cfg.NumHeapArenas, cfg.NumDirectArenas,
	)
}

func getsysmem() (total, used, free uint64) {
	mem := sigar.Mem{}
	mem.Get()
	return mem.Total, mem.Used, mem.Free
}
