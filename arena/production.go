//go:build !debug

package arena

func poison(mem []byte) {}

func assertNotDoubleFree(alreadyFreed bool, what string) {}

func assertForeignHandle(mismatch bool, what string) {}
