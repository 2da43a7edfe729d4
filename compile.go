package packbytes

// node is the compiled counterpart of a Type. The compiled tree mirrors the
// declaration and carries the derived layout.
type node struct {
	typ  *Type
	kind Kind

	width int    // bit width of Bool, Bits and enum String; bit width of Float
	bytes int    // standalone byte width of Bool, Bits, enum String and Float
	max   uint64 // largest encodable value of a bit field
	enum  *enumMap

	elem  *node
	size  int  // fixed Array or Blob length
	dense bool // Array elements are written as one bit stream

	fields   []*fieldNode
	variants []*node // parallel to enum for unions; nil entries carry no payload

	scope   *packScope // set on structs that own their packing scope
	slot    int        // index into the owning scope's members, or -1
	wordOff int        // byte offset of the slot's word from the scope's first word
}

type fieldNode struct {
	name string
	node *node
}

func (n *node) isBitField() bool {
	return n.width > 0 && n.kind != KindFloat
}

// merged reports whether n is a struct whose bit fields were packed into the
// words of an enclosing struct.
func (n *node) merged() bool {
	return n.kind == KindStruct && n.scope == nil
}

// byteWidthFor rounds a bit width up to a byte width supported by Buffer.
func byteWidthFor(bits int) int {
	switch {
	case bits <= 8:
		return 1
	case bits <= 16:
		return 2
	default:
		return 4
	}
}

// compile builds the compiled tree for t. A non-nil scope means t is a
// direct field of a struct: bit fields register with it and nested structs
// share it.
func compile(t *Type, scope *packScope, path fieldPath) (*node, error) {
	if t == nil {
		return nil, schemaErrf(path.String(), "missing type")
	}
	n := &node{typ: t, kind: t.kind, slot: -1}
	switch t.kind {
	case KindBool:
		n.width = 1
	case KindBits:
		if t.width < 1 || t.width > 32 {
			return nil, schemaErrf(path.String(), "bits width must be 1..32, got %d", t.width)
		}
		n.width = t.width
	case KindString:
		if len(t.enum) > 0 {
			if dup, ok := firstDuplicate(t.enum); ok {
				return nil, schemaErrf(path.String(), "duplicate enum value %q", dup)
			}
			n.enum = newEnumMap(t.enum)
			n.width = n.enum.bits
		}
	case KindFloat:
		if t.width != 32 && t.width != 64 {
			return nil, schemaErrf(path.String(), "float width must be 32 or 64, got %d", t.width)
		}
		n.width = t.width
		n.bytes = t.width / 8
		return n, nil
	case KindVarInt, KindObjectID, KindUUID, KindDate, KindLonLat:
		return n, nil
	case KindBlob:
		if t.size < 0 {
			return nil, schemaErrf(path.String(), "negative blob size %d", t.size)
		}
		n.size = t.size
		return n, nil
	case KindArray:
		return compileArray(n, path)
	case KindUnion:
		return compileUnion(n, path)
	case KindStruct:
		return compileStruct(n, scope, path)
	default:
		return nil, schemaErrf(path.String(), "invalid kind %v", t.kind)
	}

	// bit fields
	n.max = 1<<n.width - 1
	n.bytes = byteWidthFor(n.width)
	if scope != nil {
		n.slot = len(scope.members)
		scope.members = append(scope.members, n)
	}
	return n, nil
}

func compileArray(n *node, path fieldPath) (*node, error) {
	t := n.typ
	if t.size < 0 {
		return nil, schemaErrf(path.String(), "negative array size %d", t.size)
	}
	elem, err := compile(t.elem, nil, path.index(0))
	if err != nil {
		return nil, err
	}
	n.elem = elem
	n.size = t.size
	n.dense = elem.isBitField()
	return n, nil
}

func compileUnion(n *node, path fieldPath) (*node, error) {
	t := n.typ
	if len(t.fields) == 0 {
		return nil, schemaErrf(path.String(), "union has no variants")
	}
	names, err := fieldNames(t.fields, path)
	if err != nil {
		return nil, err
	}
	n.enum = newEnumMap(names)
	n.variants = make([]*node, len(t.fields))
	for i, f := range t.fields {
		if f.Type == nil {
			continue
		}
		n.variants[i], err = compile(f.Type, nil, path.field(f.Name))
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

func compileStruct(n *node, scope *packScope, path fieldPath) (*node, error) {
	t := n.typ
	if len(t.fields) == 0 {
		return nil, schemaErrf(path.String(), "struct has no fields")
	}
	if _, err := fieldNames(t.fields, path); err != nil {
		return nil, err
	}
	owner := scope == nil
	if owner {
		scope = &packScope{}
		n.scope = scope
	}
	n.fields = make([]*fieldNode, len(t.fields))
	for i, f := range t.fields {
		child, err := compile(f.Type, scope, path.field(f.Name))
		if err != nil {
			return nil, err
		}
		n.fields[i] = &fieldNode{f.Name, child}
	}
	if owner && len(scope.members) > 0 {
		scope.words = allocateWords(scope.members)
		var off int
		for _, w := range scope.words {
			for _, m := range w.members {
				m.wordOff = off
			}
			off += w.bytes()
		}
	}
	return n, nil
}

func fieldNames(fields []Field, path fieldPath) ([]string, error) {
	names := make([]string, len(fields))
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return nil, schemaErrf(path.String(), "field %d has an empty name", i)
		}
		if seen[f.Name] {
			return nil, schemaErrf(path.String(), "duplicate field %q", f.Name)
		}
		seen[f.Name] = true
		names[i] = f.Name
	}
	return names, nil
}

func firstDuplicate(values []string) (string, bool) {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return v, true
		}
		seen[v] = true
	}
	return "", false
}
