package packbytes

import "math/bits"

// enumMap maps an ordered list of distinct symbols to their indices.
type enumMap struct {
	bits    int
	symbols []string
	indices map[string]int
}

func newEnumMap(symbols []string) *enumMap {
	m := &enumMap{
		bits:    symbolBits(len(symbols)),
		symbols: symbols,
		indices: make(map[string]int, len(symbols)),
	}
	for i, s := range symbols {
		m.indices[s] = i
	}
	return m
}

// symbolBits returns ceil(log2(n)), at least 1.
func symbolBits(n int) int {
	if n <= 2 {
		return 1
	}
	return bits.Len(uint(n - 1))
}

func (m *enumMap) index(symbol string) (int, bool) {
	i, ok := m.indices[symbol]
	return i, ok
}

func (m *enumMap) symbol(i uint64) (string, bool) {
	if i >= uint64(len(m.symbols)) {
		return "", false
	}
	return m.symbols[i], true
}
