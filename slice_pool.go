package vex

import "github.com/delaneyj/toolbelt"

var (
	entryScratchPool = toolbelt.New(func() []TableEntry { return make([]TableEntry, 0, 16) })
	blockScratchPool = toolbelt.New(func() []uint32 { return make([]uint32, 0, 64) })
)

func getEntryScratch(n int) []TableEntry {
	s := entryScratchPool.Get()
	if cap(s) < n {
		return make([]TableEntry, 0, n)
	}
	return s[:0]
}

func putEntryScratch(s []TableEntry) {
	if s == nil {
		return
	}
	entryScratchPool.Put(s[:0])
}

func getBlockScratch(n int) []uint32 {
	s := blockScratchPool.Get()
	if cap(s) < n {
		return make([]uint32, 0, n)
	}
	return s[:0]
}

func putBlockScratch(s []uint32) {
	if s == nil {
		return
	}
	blockScratchPool.Put(s[:0])
}
