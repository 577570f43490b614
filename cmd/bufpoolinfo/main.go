package main

import "fmt"
import "flag"

import "github.com/prataprc/bufpool"
import "github.com/prataprc/bufpool/arena"

var options struct {
	pageSize int64
	maxOrder int
}

func argParse() {
	flag.Int64Var(&options.pageSize, "pagesize", 8192, "arena page size")
	flag.IntVar(&options.maxOrder, "maxorder", 11, "arena chunk tree depth")
	flag.Parse()
}

func main() {
	argParse()
	tellsizeclasses()
}

func tellsizeclasses() {
	pageSize, chunkSize := options.pageSize, options.pageSize<<uint(options.maxOrder)

	maxOrder := int8(options.maxOrder)

	fmt.Printf("pagesize %d, chunksize %d\n", pageSize, chunkSize)
	fmt.Printf("--- tiny (%d classes) ---\n", arena.TinyClassCount)
	for c := int64(1); c < 512; c += 16 {
		sc := arena.Normalize(c, pageSize, chunkSize)
		fmt.Printf("  class %2d: %6d bytes\n", sc.Index, sc.Size)
	}
	fmt.Printf("--- small (%d classes) ---\n", arena.SmallClassCount(pageSize))
	for size := int64(512); size < pageSize; size <<= 1 {
		sc := arena.Normalize(size, pageSize, chunkSize)
		fmt.Printf("  class %2d: %6d bytes\n", sc.Index, sc.Size)
	}
	fmt.Printf("--- normal (%d classes) ---\n", arena.NormalClassCount(maxOrder))
	for size := pageSize; size <= chunkSize; size <<= 1 {
		sc := arena.Normalize(size, pageSize, chunkSize)
		fmt.Printf("  class %2d: %8d bytes\n", sc.Index, sc.Size)
	}

	fmt.Println()
	fmt.Println(bufpool.Defaultsettings())
}
