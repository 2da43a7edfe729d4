package packbytes

import "sync"

var packValuesPool = &sync.Pool{
	New: func() any {
		return make([]uint64, 0, 64)
	},
}

func acquirePackValues(n int) []uint64 {
	vals := packValuesPool.Get().([]uint64)
	if cap(vals) < n {
		vals = make([]uint64, 0, n)
	}
	vals = vals[:n]
	clear(vals)
	return vals
}

func releasePackValues(vals []uint64) {
	packValuesPool.Put(vals[:0])
}
