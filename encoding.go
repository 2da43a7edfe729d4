package packbytes

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// DeclEncoding is a serialized form of a schema declaration. Both forms
// carry only the declaration, never compiled layout, so a receiver compiles
// the schema independently.
type DeclEncoding int

const (
	MsgPack DeclEncoding = iota
	JSON
)

type declNode struct {
	Type   string      `json:"_type" msgpack:"_type"`
	Width  int         `json:"width,omitempty" msgpack:"width,omitempty"`
	Size   int         `json:"size,omitempty" msgpack:"size,omitempty"`
	Enum   []string    `json:"enum,omitempty" msgpack:"enum,omitempty"`
	Elem   *declNode   `json:"elem,omitempty" msgpack:"elem,omitempty"`
	Fields []declField `json:"fields,omitempty" msgpack:"fields,omitempty"`
}

type declField struct {
	Name string    `json:"name" msgpack:"name"`
	Type *declNode `json:"type,omitempty" msgpack:"type,omitempty"`
}

func toDecl(t *Type) *declNode {
	if t == nil {
		return nil
	}
	d := &declNode{
		Type:  t.kind.String(),
		Width: t.width,
		Size:  t.size,
		Enum:  t.enum,
		Elem:  toDecl(t.elem),
	}
	for _, f := range t.fields {
		d.Fields = append(d.Fields, declField{f.Name, toDecl(f.Type)})
	}
	return d
}

func fromDecl(d *declNode, path fieldPath) (*Type, error) {
	if d == nil {
		return nil, nil
	}
	kind := kindByName(d.Type)
	if kind == KindInvalid {
		return nil, schemaErrf(path.String(), "unknown type %q", d.Type)
	}
	t := &Type{
		kind:  kind,
		width: d.Width,
		size:  d.Size,
		enum:  d.Enum,
	}
	var err error
	if t.elem, err = fromDecl(d.Elem, path.index(0)); err != nil {
		return nil, err
	}
	for _, f := range d.Fields {
		ft, err := fromDecl(f.Type, path.field(f.Name))
		if err != nil {
			return nil, err
		}
		t.fields = append(t.fields, Field{f.Name, ft})
	}
	return t, nil
}

func (enc DeclEncoding) Marshal(t *Type) ([]byte, error) {
	switch enc {
	case MsgPack:
		b := NewBuffer(256)
		e := msgpack.GetEncoder()
		e.Reset(b)
		e.SetSortMapKeys(true)
		err := e.Encode(toDecl(t))
		msgpack.PutEncoder(e)
		if err != nil {
			return nil, fmt.Errorf("failed to encode schema using MsgPack: %w", err)
		}
		return b.Bytes(), nil
	case JSON:
		raw, err := json.Marshal(toDecl(t))
		if err != nil {
			return nil, fmt.Errorf("failed to encode schema to JSON: %w", err)
		}
		return raw, nil
	default:
		panic("unsupported encoding")
	}
}

func (enc DeclEncoding) Unmarshal(data []byte) (*Type, error) {
	var d declNode
	switch enc {
	case MsgPack:
		var r bytes.Reader
		r.Reset(data)
		dec := msgpack.GetDecoder()
		dec.Reset(&r)
		err := dec.Decode(&d)
		msgpack.PutDecoder(dec)
		if err != nil {
			return nil, dataErrf(data, 0, err, "failed to decode msgpack schema")
		}
	case JSON:
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, dataErrf(data, 0, err, "failed to decode JSON schema")
		}
	default:
		panic("unsupported encoding")
	}
	return fromDecl(&d, nil)
}

// ParseSchema reads a JSON schema declaration.
func ParseSchema(data []byte) (*Type, error) {
	return JSON.Unmarshal(data)
}

func (t *Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(toDecl(t))
}

func (t *Type) UnmarshalJSON(data []byte) error {
	v, err := JSON.Unmarshal(data)
	if err != nil {
		return err
	}
	*t = *v
	return nil
}

var (
	_ msgpack.CustomEncoder = (*Type)(nil)
	_ msgpack.CustomDecoder = (*Type)(nil)
)

func (t *Type) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(toDecl(t))
}

func (t *Type) DecodeMsgpack(dec *msgpack.Decoder) error {
	var d declNode
	if err := dec.Decode(&d); err != nil {
		return err
	}
	v, err := fromDecl(&d, nil)
	if err != nil {
		return err
	}
	*t = *v
	return nil
}

// Fingerprint hashes the msgpack form of a declaration.
func Fingerprint(t *Type) uint64 {
	return xxhash.Sum64(must(MsgPack.Marshal(t)))
}
