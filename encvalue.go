package packbytes

import (
	"errors"
	"math"
	"reflect"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type encoder struct {
	b           *Buffer
	strictBlobs bool
}

func (e *encoder) encode(n *node, v any, path fieldPath) error {
	if n.isBitField() {
		u, err := bitFieldValue(n, v, path)
		if err != nil {
			return err
		}
		return e.b.WriteUint(u, n.bytes)
	}

	switch n.kind {
	case KindFloat:
		f, err := floatValue(v, path)
		if err != nil {
			return err
		}
		if n.bytes == 4 && math.Abs(f) > math.MaxFloat32 && !math.IsInf(f, 0) {
			return rangeErrf(path.String(), v, "value does not fit into float(32)")
		}
		e.b.WriteFloat(f, n.bytes)
		return nil

	case KindVarInt:
		u, err := uintValue(n.kind, v, path)
		if err != nil {
			return err
		}
		return withErrPath(e.b.WriteVarInt(u), path)

	case KindString:
		s, ok := v.(string)
		if !ok && v != nil {
			rv := reflect.ValueOf(v)
			if rv.Kind() != reflect.String {
				return valueErr(path.String(), n.kind, v)
			}
			s = rv.String()
		}
		if !utf8.ValidString(s) {
			return rangeErrf(path.String(), s, "invalid UTF-8 string")
		}
		return withErrPath(e.b.WriteString(s), path)

	case KindBlob:
		var data []byte
		switch x := v.(type) {
		case nil:
		case []byte:
			data = x
		case string:
			data = []byte(x)
		default:
			return valueErr(path.String(), n.kind, v)
		}
		if n.size > 0 && e.strictBlobs && len(data) != n.size {
			return rangeErrf(path.String(), len(data), "blob length must be %d", n.size)
		}
		return withErrPath(e.b.WriteBlob(data, n.size), path)

	case KindObjectID:
		id, err := oidValue(v, path)
		if err != nil {
			return err
		}
		return e.b.WriteBlob(id[:], len(id))

	case KindUUID:
		id, err := uuidValue(v, path)
		if err != nil {
			return err
		}
		return e.b.WriteBlob(id[:], len(id))

	case KindDate:
		t := epoch
		switch x := v.(type) {
		case nil:
		case time.Time:
			t = x
		case *time.Time:
			if x != nil {
				t = *x
			}
		default:
			return valueErr(path.String(), n.kind, v)
		}
		sec, ok := dateSeconds(t)
		if !ok {
			return rangeErrf(path.String(), t, "date outside of %s..%s", epoch.Format(time.RFC3339), dateFromSeconds(maxDateSeconds).Format(time.RFC3339))
		}
		return e.b.WriteUint(sec, 4)

	case KindLonLat:
		p, err := pointValue(v, path)
		if err != nil {
			return err
		}
		lon, ok := fixedCoord(p.Lon, lonOffset)
		if !ok {
			return rangeErrf(path.String(), p.Lon, "longitude outside of -180..180")
		}
		lat, ok := fixedCoord(p.Lat, latOffset)
		if !ok {
			return rangeErrf(path.String(), p.Lat, "latitude outside of -90..90")
		}
		if err := e.b.WriteUint(lon, 4); err != nil {
			return err
		}
		return e.b.WriteUint(lat, 4)

	case KindArray:
		return e.encodeArray(n, v, path)
	case KindUnion:
		return e.encodeUnion(n, v, path)
	case KindStruct:
		return e.encodeStruct(n, v, path)
	}
	panic("packbytes: unhandled kind " + n.kind.String())
}

func (e *encoder) encodeArray(n *node, v any, path fieldPath) error {
	var rv reflect.Value
	length := 0
	if v != nil {
		rv = reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return valueErr(path.String(), n.kind, v)
		}
		length = rv.Len()
	}
	if n.size > 0 {
		if rv.IsValid() && length != n.size {
			return rangeErrf(path.String(), length, "array length must be %d", n.size)
		}
		length = n.size
	} else if err := e.b.WriteVarInt(uint64(length)); err != nil {
		return withErrPath(err, path)
	}

	item := func(i int) any {
		if !rv.IsValid() {
			return nil
		}
		return rv.Index(i).Interface()
	}

	if n.dense {
		w := bitWriter{b: e.b}
		for i := 0; i < length; i++ {
			u, err := bitFieldValue(n.elem, item(i), path.index(i))
			if err != nil {
				return err
			}
			w.write(u, n.elem.width)
		}
		w.flush()
		return nil
	}
	for i := 0; i < length; i++ {
		if err := e.encode(n.elem, item(i), path.index(i)); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) encodeUnion(n *node, v any, path fieldPath) error {
	var vr Variant
	switch x := v.(type) {
	case Variant:
		vr = x
	case *Variant:
		if x == nil {
			return missingField(path)
		}
		vr = *x
	case nil:
		return missingField(path)
	default:
		return valueErr(path.String(), n.kind, v)
	}
	idx, ok := n.enum.index(vr.Name)
	if !ok {
		return &UnknownVariantError{path.String(), vr.Name}
	}
	if err := e.b.WriteVarInt(uint64(idx)); err != nil {
		return withErrPath(err, path)
	}
	if vn := n.variants[idx]; vn != nil {
		return e.encode(vn, vr.Value, path.field(vr.Name))
	}
	return nil
}

func (e *encoder) encodeStruct(n *node, v any, path fieldPath) error {
	m, err := structValue(v, path)
	if err != nil {
		return err
	}
	if words := n.scope.words; len(words) > 0 {
		vals := acquirePackValues(len(n.scope.members))
		defer releasePackValues(vals)
		if err := collectBits(n, m, vals, path); err != nil {
			return err
		}
		for _, w := range words {
			if err := e.b.WriteUint(w.pack(vals), w.bytes()); err != nil {
				return withErrPath(err, path)
			}
		}
	}
	return e.encodeFields(n, m, path)
}

// collectBits gathers the values of all bit fields of a scope, descending
// into nested structs that share it.
func collectBits(n *node, m map[string]any, vals []uint64, path fieldPath) error {
	for _, f := range n.fields {
		fp := path.field(f.name)
		switch {
		case f.node.slot >= 0:
			u, err := bitFieldValue(f.node, m[f.name], fp)
			if err != nil {
				return err
			}
			vals[f.node.slot] = u
		case f.node.merged():
			sub, err := structValue(m[f.name], fp)
			if err != nil {
				return err
			}
			if err := collectBits(f.node, sub, vals, fp); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *encoder) encodeFields(n *node, m map[string]any, path fieldPath) error {
	for _, f := range n.fields {
		if f.node.slot >= 0 {
			continue
		}
		fp := path.field(f.name)
		if f.node.merged() {
			sub, err := structValue(m[f.name], fp)
			if err != nil {
				return err
			}
			if err := e.encodeFields(f.node, sub, fp); err != nil {
				return err
			}
			continue
		}
		if err := e.encode(f.node, m[f.name], fp); err != nil {
			return err
		}
	}
	return nil
}

func missingField(path fieldPath) error {
	var name string
	if len(path) > 0 {
		name = path[len(path)-1]
		path = path[:len(path)-1]
	}
	return &MissingFieldError{path.String(), name}
}

func structValue(v any, path fieldPath) (map[string]any, error) {
	switch x := v.(type) {
	case map[string]any:
		if x == nil {
			return nil, missingField(path)
		}
		return x, nil
	case nil:
		return nil, missingField(path)
	default:
		return nil, valueErr(path.String(), KindStruct, v)
	}
}

// bitFieldValue converts the value of a Bool, Bits or enum String to the
// integer stored on the wire. A missing value encodes as 0.
func bitFieldValue(n *node, v any, path fieldPath) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	switch n.kind {
	case KindBool:
		if b, ok := v.(bool); ok {
			if b {
				return 1, nil
			}
			return 0, nil
		}
	case KindString:
		s, ok := v.(string)
		if !ok {
			return 0, valueErr(path.String(), n.kind, v)
		}
		i, ok := n.enum.index(s)
		if !ok {
			return 0, rangeErrf(path.String(), s, "value is not one of %d enum values", len(n.enum.symbols))
		}
		return uint64(i), nil
	}
	u, err := uintValue(n.kind, v, path)
	if err != nil {
		return 0, err
	}
	if u > n.max {
		return 0, rangeErrf(path.String(), v, "value exceeds %d bit(s)", n.width)
	}
	return u, nil
}

func uintValue(kind Kind, v any, path fieldPath) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i < 0 {
			return 0, rangeErrf(path.String(), v, "negative value")
		}
		return uint64(i), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f < 0 || f != math.Trunc(f) || f >= math.MaxUint64 {
			return 0, rangeErrf(path.String(), v, "not an unsigned integer")
		}
		return uint64(f), nil
	default:
		return 0, valueErr(path.String(), kind, v)
	}
}

func floatValue(v any, path fieldPath) (float64, error) {
	if v == nil {
		return 0, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	default:
		return 0, valueErr(path.String(), KindFloat, v)
	}
}

func oidValue(v any, path fieldPath) (OID, error) {
	switch x := v.(type) {
	case nil:
		return OID{}, nil
	case OID:
		return x, nil
	case [12]byte:
		return OID(x), nil
	case []byte:
		if len(x) != len(OID{}) {
			return OID{}, rangeErrf(path.String(), len(x), "object id must be 12 bytes")
		}
		return OID(x), nil
	case string:
		id, err := ParseOID(x)
		if err != nil {
			return OID{}, rangeErrf(path.String(), x, "%v", err)
		}
		return id, nil
	default:
		return OID{}, valueErr(path.String(), KindObjectID, v)
	}
}

func uuidValue(v any, path fieldPath) (uuid.UUID, error) {
	switch x := v.(type) {
	case nil:
		return uuid.Nil, nil
	case uuid.UUID:
		return x, nil
	case [16]byte:
		return uuid.UUID(x), nil
	case []byte:
		id, err := uuid.FromBytes(x)
		if err != nil {
			return uuid.Nil, rangeErrf(path.String(), len(x), "uuid must be 16 bytes")
		}
		return id, nil
	case string:
		id, err := uuid.Parse(x)
		if err != nil {
			return uuid.Nil, rangeErrf(path.String(), x, "%v", err)
		}
		return id, nil
	default:
		return uuid.Nil, valueErr(path.String(), KindUUID, v)
	}
}

func pointValue(v any, path fieldPath) (Point, error) {
	switch x := v.(type) {
	case nil:
		return Point{}, nil
	case Point:
		return x, nil
	case *Point:
		if x == nil {
			return Point{}, nil
		}
		return *x, nil
	case [2]float64:
		return Point{x[0], x[1]}, nil
	case []float64:
		if len(x) != 2 {
			return Point{}, rangeErrf(path.String(), len(x), "lonlat must have 2 coordinates")
		}
		return Point{x[0], x[1]}, nil
	default:
		return Point{}, valueErr(path.String(), KindLonLat, v)
	}
}

// withErrPath attaches path to a RangeError produced by Buffer.
func withErrPath(err error, path fieldPath) error {
	var re *RangeError
	if errors.As(err, &re) && re.Path == "" {
		re.Path = path.String()
	}
	return err
}
