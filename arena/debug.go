//go:build debug

package arena

// poisonPattern overwrites freed memory so that a use-after-free shows
// up as recognizable garbage instead of silently-stale data. Only
// compiled into debug builds (`go build -tags debug`), mirroring the
// teacher's debug/production split for its own block-init pattern
// (malloc/debug.go, malloc/production.go).
var poisonPattern = []byte("DEADBEEFDEADBEEF")

func poison(mem []byte) {
	for i := range mem {
		mem[i] = poisonPattern[i%len(poisonPattern)]
	}
}

// assertNotDoubleFree panics if cond (already freed) holds. Compiled
// out entirely in production builds so the check costs nothing there.
func assertNotDoubleFree(alreadyFreed bool, what string) {
	if alreadyFreed {
		panic("arena: double free of " + what)
	}
}

// assertForeignHandle panics if mismatch holds, catching a handle that
// outlived the page generation it was issued against.
func assertForeignHandle(mismatch bool, what string) {
	if mismatch {
		panic("arena: foreign handle for " + what)
	}
}
