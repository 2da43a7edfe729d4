package packbytes

import (
	"strconv"

	"github.com/google/uuid"
)

type decoder struct {
	r *Reader
}

func (d *decoder) decode(n *node) (any, error) {
	if n.isBitField() {
		off := d.r.Off()
		u, err := d.r.ReadUint(n.bytes)
		if err != nil {
			return nil, err
		}
		if u > n.max {
			return nil, dataErrf(d.r.orig, off, nil, "%s value %d exceeds %d bit(s)", n.kind, u, n.width)
		}
		return d.bitField(n, u, off)
	}

	switch n.kind {
	case KindFloat:
		return d.r.ReadFloat(n.bytes)

	case KindVarInt:
		u, err := d.r.ReadVarInt()
		if err != nil {
			return nil, err
		}
		return uint32(u), nil

	case KindString:
		return d.r.ReadString()

	case KindBlob:
		return d.r.ReadBlob(n.size)

	case KindObjectID:
		var id OID
		raw, err := d.r.Raw(len(id))
		if err != nil {
			return nil, err
		}
		copy(id[:], raw)
		return id, nil

	case KindUUID:
		var id uuid.UUID
		raw, err := d.r.Raw(len(id))
		if err != nil {
			return nil, err
		}
		copy(id[:], raw)
		return id, nil

	case KindDate:
		sec, err := d.r.ReadUint(4)
		if err != nil {
			return nil, err
		}
		return dateFromSeconds(sec), nil

	case KindLonLat:
		lon, err := d.r.ReadUint(4)
		if err != nil {
			return nil, err
		}
		lat, err := d.r.ReadUint(4)
		if err != nil {
			return nil, err
		}
		return Point{coordFromFixed(lon, lonOffset), coordFromFixed(lat, latOffset)}, nil

	case KindArray:
		return d.decodeArray(n)
	case KindUnion:
		return d.decodeUnion(n)
	case KindStruct:
		return d.decodeStruct(n, nil, 0)
	}
	panic("packbytes: unhandled kind " + n.kind.String())
}

// bitField converts a wire integer of a Bool, Bits or enum String back to
// its value.
func (d *decoder) bitField(n *node, u uint64, off int) (any, error) {
	switch n.kind {
	case KindBool:
		return u != 0, nil
	case KindString:
		s, ok := n.enum.symbol(u)
		if !ok {
			return nil, dataErrf(d.r.orig, off, nil, "enum index %d out of range (%d values)", u, len(n.enum.symbols))
		}
		return s, nil
	default:
		return uint32(u), nil
	}
}

func (d *decoder) decodeArray(n *node) (any, error) {
	length := n.size
	if length == 0 {
		off := d.r.Off()
		u, err := d.r.ReadVarInt()
		if err != nil {
			return nil, err
		}
		length = int(u)
		need := length
		if n.dense {
			need = bitStreamSize(length, n.elem.width)
		}
		// every element that is not a bit stream takes at least one byte
		if need > d.r.Remaining() {
			return nil, dataErrf(d.r.orig, off, nil, "array of %d elements exceeds remaining %d bytes", length, d.r.Remaining())
		}
	}

	arr := make([]any, 0, min(length, d.r.Remaining()+1))
	if n.dense {
		br := bitReader{r: d.r}
		for i := 0; i < length; i++ {
			off := d.r.Off()
			u, err := br.read(n.elem.width)
			if err != nil {
				return nil, err
			}
			v, err := d.bitField(n.elem, u, off)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	}
	for i := 0; i < length; i++ {
		v, err := d.decode(n.elem)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	return arr, nil
}

func (d *decoder) decodeUnion(n *node) (any, error) {
	off := d.r.Off()
	idx, err := d.r.ReadVarInt()
	if err != nil {
		return nil, err
	}
	name, ok := n.enum.symbol(idx)
	if !ok {
		return nil, dataErrf(d.r.orig, off, &UnknownVariantError{Name: strconv.FormatUint(idx, 10)}, "union discriminant %d out of range (%d variants)", idx, len(n.variants))
	}
	vn := n.variants[idx]
	if vn == nil {
		return Variant{Name: name}, nil
	}
	v, err := d.decode(vn)
	if err != nil {
		return nil, err
	}
	return Variant{name, v}, nil
}

// decodeStruct reads a struct. Structs that own a packing scope read their
// words first; merged structs take their bit fields from the owner's vals.
// base is the offset of the owner's first word.
func (d *decoder) decodeStruct(n *node, vals []uint64, base int) (map[string]any, error) {
	if n.scope != nil {
		vals = nil
		base = d.r.Off()
		if words := n.scope.words; len(words) > 0 {
			vals = acquirePackValues(len(n.scope.members))
			defer releasePackValues(vals)
			for _, w := range words {
				u, err := d.r.ReadUint(w.bytes())
				if err != nil {
					return nil, err
				}
				w.unpack(u, vals)
			}
		}
	}

	m := make(map[string]any, len(n.fields))
	for _, f := range n.fields {
		var v any
		var err error
		switch {
		case f.node.slot >= 0:
			v, err = d.bitField(f.node, vals[f.node.slot], base+f.node.wordOff)
		case f.node.merged():
			v, err = d.decodeStruct(f.node, vals, base)
		default:
			v, err = d.decode(f.node)
		}
		if err != nil {
			return nil, err
		}
		m[f.name] = v
	}
	return m, nil
}
