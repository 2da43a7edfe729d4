package packbytes

import (
	"slices"
)

// packScope collects the bit fields of a struct, including those of nested
// structs that share it, and the words they were allocated to.
type packScope struct {
	members []*node
	words   []*word // 8-bit words first, then 16-bit, then 32-bit
}

// word is a group of bit fields stored in one 8, 16 or 32 bit integer.
// Members are packed most significant first, in list order.
type word struct {
	width   int
	members []*node
}

func (w *word) bytes() int { return w.width / 8 }

func (w *word) bits() int {
	var n int
	for _, m := range w.members {
		n += m.width
	}
	return n
}

func (w *word) pack(vals []uint64) uint64 {
	var acc uint64
	for _, m := range w.members {
		acc = acc<<m.width | vals[m.slot]
	}
	return acc
}

func (w *word) unpack(packed uint64, vals []uint64) {
	for i := len(w.members) - 1; i >= 0; i-- {
		m := w.members[i]
		vals[m.slot] = packed & m.max
		packed >>= m.width
	}
}

// allocateWords partitions bit fields into words. Fields are taken widest
// first and greedily fitted into 32-bit candidates; a candidate with enough
// slack shrinks to a 16-bit or 8-bit word, or splits into a 16-bit plus an
// 8-bit word when its members allow.
func allocateWords(members []*node) []*word {
	pending := slices.Clone(members)
	slices.SortStableFunc(pending, func(a, b *node) int {
		return b.width - a.width
	})

	var words8, words16, words32 []*word
	for len(pending) > 0 {
		var group []*node
		remaining := 32
		rest := make([]*node, 0, len(pending))
		for i, m := range pending {
			if remaining == 0 {
				rest = append(rest, pending[i:]...)
				break
			}
			if m.width <= remaining {
				group = append(group, m)
				remaining -= m.width
			} else {
				rest = append(rest, m)
			}
		}
		pending = rest

		switch {
		case remaining < 8:
			words32 = append(words32, &word{32, group})
		case remaining < 16:
			if g16, g8, ok := splitWord(group); ok {
				words16 = append(words16, &word{16, g16})
				words8 = append(words8, &word{8, g8})
			} else {
				words32 = append(words32, &word{32, group})
			}
		case remaining < 24:
			words16 = append(words16, &word{16, group})
		default:
			words8 = append(words8, &word{8, group})
		}
	}

	words := make([]*word, 0, len(words8)+len(words16)+len(words32))
	words = append(words, words8...)
	words = append(words, words16...)
	return append(words, words32...)
}

// splitWord tries to fit a group into a 16-bit word plus an 8-bit word.
func splitWord(group []*node) (g16, g8 []*node, ok bool) {
	rem16, rem8 := 16, 8
	for _, m := range group {
		switch {
		case m.width <= rem16:
			g16 = append(g16, m)
			rem16 -= m.width
		case m.width <= rem8:
			g8 = append(g8, m)
			rem8 -= m.width
		default:
			return nil, nil, false
		}
	}
	return g16, g8, true
}
