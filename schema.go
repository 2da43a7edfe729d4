package packbytes

import (
	"fmt"
	"slices"
)

type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindBits
	KindFloat
	KindVarInt
	KindString
	KindBlob
	KindObjectID
	KindUUID
	KindDate
	KindLonLat
	KindArray
	KindUnion
	KindStruct
)

var kindNames = [...]string{
	KindInvalid:  "invalid",
	KindBool:     "bool",
	KindBits:     "bits",
	KindFloat:    "float",
	KindVarInt:   "varint",
	KindString:   "string",
	KindBlob:     "blob",
	KindObjectID: "objectid",
	KindUUID:     "uuid",
	KindDate:     "date",
	KindLonLat:   "lonlat",
	KindArray:    "array",
	KindUnion:    "schemas",
	KindStruct:   "struct",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func kindByName(name string) Kind {
	for k, n := range kindNames {
		if n == name && k != int(KindInvalid) {
			return Kind(k)
		}
	}
	return KindInvalid
}

// Type is a node of a schema declaration. A declaration is never modified
// by compilation, so one tree can back any number of codecs.
type Type struct {
	kind   Kind
	width  int      // Bits and Float
	size   int      // fixed Array or Blob length, 0 when variable
	enum   []string // String enumeration
	elem   *Type    // Array element
	fields []Field  // Struct fields or Union variants, in declaration order
}

// Field is a named struct field or union variant. A union variant may have
// a nil Type, in which case it carries no payload.
type Field struct {
	Name string
	Type *Type
}

func F(name string, typ *Type) Field {
	return Field{name, typ}
}

func (t *Type) Kind() Kind      { return t.kind }
func (t *Type) Width() int      { return t.width }
func (t *Type) FixedSize() int  { return t.size }
func (t *Type) Enum() []string  { return slices.Clone(t.enum) }
func (t *Type) Elem() *Type     { return t.elem }
func (t *Type) Fields() []Field { return slices.Clone(t.fields) }
func (t *Type) IsEnum() bool    { return t.kind == KindString && len(t.enum) > 0 }
func (t *Type) String() string  { return t.kind.String() }

// Size returns a copy of an Array or Blob type with a fixed length. Fixed
// lengths are not written to the wire.
func (t *Type) Size(n int) *Type {
	if t.kind != KindArray && t.kind != KindBlob {
		panic(fmt.Sprintf("packbytes: Size is not applicable to %s", t.kind))
	}
	c := *t
	c.size = n
	return &c
}

func Bool() *Type   { return &Type{kind: KindBool} }
func VarInt() *Type { return &Type{kind: KindVarInt} }

// Bits declares an unsigned integer of 1 to 32 bits.
func Bits(width int) *Type { return &Type{kind: KindBits, width: width} }

// Float declares a 32 or 64 bit IEEE-754 value.
func Float(width int) *Type { return &Type{kind: KindFloat, width: width} }

// String declares UTF-8 text. With enumValues, the value must be one of them
// and is stored as its index.
func String(enumValues ...string) *Type {
	return &Type{kind: KindString, enum: slices.Clone(enumValues)}
}

func Blob() *Type     { return &Type{kind: KindBlob} }
func ObjectID() *Type { return &Type{kind: KindObjectID} }
func UUID() *Type     { return &Type{kind: KindUUID} }
func Date() *Type     { return &Type{kind: KindDate} }
func LonLat() *Type   { return &Type{kind: KindLonLat} }

func Array(elem *Type) *Type { return &Type{kind: KindArray, elem: elem} }

// Union declares a tagged union. Variant indices follow declaration order.
func Union(variants ...Field) *Type {
	return &Type{kind: KindUnion, fields: slices.Clone(variants)}
}

// Struct declares an ordered record. The order fixes both the bit-packing
// order and the order in which plain fields are written.
func Struct(fields ...Field) *Type {
	return &Type{kind: KindStruct, fields: slices.Clone(fields)}
}
