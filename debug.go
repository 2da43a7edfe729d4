package packbytes

import (
	"fmt"
	"strings"
)

const indentStep = "  "

// LayoutStats summarizes a compiled layout. Size is the exact encoded size
// when Variable is false.
type LayoutStats struct {
	Words8       int
	Words16      int
	Words32      int
	PackedFields int
	PackedBits   int
	Size         int
	Variable     bool
}

func (c *Codec) Stats() LayoutStats {
	var st LayoutStats
	size, fixed := st.visit(c.root)
	st.Size, st.Variable = size, !fixed
	if st.Variable {
		st.Size = 0
	}
	return st
}

func (st *LayoutStats) visit(n *node) (size int, fixed bool) {
	if n.slot >= 0 {
		return 0, true
	}
	if n.isBitField() {
		return n.bytes, true
	}
	switch n.kind {
	case KindFloat:
		return n.bytes, true
	case KindVarInt, KindString:
		return 0, false
	case KindBlob:
		return n.size, n.size > 0
	case KindObjectID:
		return len(OID{}), true
	case KindUUID:
		return 16, true
	case KindDate:
		return 4, true
	case KindLonLat:
		return 8, true
	case KindArray:
		if n.dense {
			return bitStreamSize(n.size, n.elem.width), n.size > 0
		}
		es, ef := st.visit(n.elem)
		return n.size * es, n.size > 0 && ef
	case KindUnion:
		for _, v := range n.variants {
			if v != nil {
				st.visit(v)
			}
		}
		return 0, false
	case KindStruct:
		fixed = true
		if n.scope != nil {
			for _, w := range n.scope.words {
				switch w.width {
				case 8:
					st.Words8++
				case 16:
					st.Words16++
				case 32:
					st.Words32++
				}
				st.PackedFields += len(w.members)
				st.PackedBits += w.bits()
				size += w.bytes()
			}
		}
		for _, f := range n.fields {
			s, ok := st.visit(f.node)
			size += s
			fixed = fixed && ok
		}
		return size, fixed
	}
	panic("packbytes: unhandled kind " + n.kind.String())
}

// Dump renders the compiled layout, one node per line, with packing words
// listed in wire order.
func (c *Codec) Dump() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "schema %s\n", hexUint64(c.fingerprint))
	dumpNode(&buf, "", "", c.root)
	return buf.String()
}

func dumpNode(w *strings.Builder, indent, name string, n *node) {
	label := nodeLabel(n)
	if name != "" {
		label = rpad(name+":", 12, ' ') + " " + label
	}
	w.WriteString(indent)
	w.WriteString(label)
	w.WriteByte('\n')

	indent += indentStep
	switch n.kind {
	case KindArray:
		if !n.dense {
			dumpNode(w, indent, "[]", n.elem)
		}
	case KindUnion:
		for i, v := range n.variants {
			if v == nil {
				fmt.Fprintf(w, "%s%s #%d\n", indent, n.enum.symbols[i], i)
			} else {
				dumpNode(w, indent, fmt.Sprintf("%s #%d", n.enum.symbols[i], i), v)
			}
		}
	case KindStruct:
		if n.scope != nil {
			for _, wd := range n.scope.words {
				parts := make([]string, len(wd.members))
				for i, m := range wd.members {
					parts[i] = fmt.Sprintf("#%d:%d", m.slot, m.width)
				}
				fmt.Fprintf(w, "%sword%d {%s} %d/%d bits\n", indent, wd.width, strings.Join(parts, " "), wd.bits(), wd.width)
			}
		}
		for _, f := range n.fields {
			dumpNode(w, indent, f.name, f.node)
		}
	}
}

func nodeLabel(n *node) string {
	s := typeLabel(n)
	switch {
	case n.slot >= 0:
		s += fmt.Sprintf(" packed #%d", n.slot)
	case n.isBitField():
		s += fmt.Sprintf(" %dB", n.bytes)
	}
	return s
}

func typeLabel(n *node) string {
	var s string
	switch n.kind {
	case KindBits, KindFloat:
		s = fmt.Sprintf("%s(%d)", n.kind, n.width)
	case KindString:
		if n.enum != nil {
			s = fmt.Sprintf("string enum(%d)", len(n.enum.symbols))
		} else {
			s = "string"
		}
	case KindBlob:
		s = "blob"
		if n.size > 0 {
			s = fmt.Sprintf("blob[%d]", n.size)
		}
	case KindArray:
		s = "array"
		if n.size > 0 {
			s = fmt.Sprintf("array[%d]", n.size)
		}
		if n.dense {
			s += fmt.Sprintf(" of %s, %d bit stream", typeLabel(n.elem), n.elem.width)
		}
	case KindUnion:
		s = fmt.Sprintf("schemas(%d), %d bit discriminant", len(n.variants), n.enum.bits)
	case KindStruct:
		s = "struct"
		if n.merged() {
			s += " (shares parent words)"
		}
	default:
		s = n.kind.String()
	}
	return s
}
