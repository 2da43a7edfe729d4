package packbytes

import (
	"log/slog"
)

// DefaultInitialSize is the initial capacity of the buffer allocated by
// Encode.
const DefaultInitialSize = 1024

type Options struct {
	// InitialSize is the initial capacity of the encode buffer. The buffer
	// doubles as needed.
	InitialSize int

	// Logger receives Debug-level layout and buffer growth events.
	Logger *slog.Logger

	// StrictBlobs rejects fixed-length blob values of a different length
	// instead of truncating or zero-padding them.
	StrictBlobs bool
}

// Codec encodes and decodes values of one compiled schema.
//
// A Codec is immutable after New; all per-call state lives in the encoder
// and decoder, so a Codec may be shared between goroutines.
type Codec struct {
	schema      *Type
	root        *node
	opt         Options
	fingerprint uint64
}

// New compiles schema. Compilation errors are *SchemaError.
func New(schema *Type, opt Options) (*Codec, error) {
	if opt.InitialSize <= 0 {
		opt.InitialSize = DefaultInitialSize
	}
	root, err := compile(schema, nil, nil)
	if err != nil {
		return nil, err
	}
	c := &Codec{
		schema:      schema,
		root:        root,
		opt:         opt,
		fingerprint: Fingerprint(schema),
	}
	if opt.Logger != nil {
		st := c.Stats()
		opt.Logger.Debug("packbytes: schema compiled",
			"root", root.kind.String(),
			"words8", st.Words8,
			"words16", st.Words16,
			"words32", st.Words32,
			"bits", st.PackedBits,
			"fingerprint", hexUint64(c.fingerprint))
	}
	return c, nil
}

// NewFromJSON compiles a schema declaration previously produced by
// Type.MarshalJSON, possibly by another process.
func NewFromJSON(data []byte, opt Options) (*Codec, error) {
	schema, err := ParseSchema(data)
	if err != nil {
		return nil, err
	}
	return New(schema, opt)
}

func (c *Codec) Schema() *Type { return c.schema }

// Fingerprint identifies the schema declaration; two codecs with equal
// fingerprints produce identical wire formats.
func (c *Codec) Fingerprint() uint64 { return c.fingerprint }

// Encode returns the encoding of v. On error no output is returned.
func (c *Codec) Encode(v any) ([]byte, error) {
	out, err := c.AppendEncode(make([]byte, 0, c.opt.InitialSize), v)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeVariant encodes a value of a union-rooted schema.
func (c *Codec) EncodeVariant(name string, payload any) ([]byte, error) {
	return c.Encode(Variant{name, payload})
}

// AppendEncode appends the encoding of v to buf. On error, buf is returned
// unchanged in length and must not be used as a complete encoding.
func (c *Codec) AppendEncode(buf []byte, v any) ([]byte, error) {
	e := encoder{
		b:           wrapBuffer(buf, c.opt.Logger),
		strictBlobs: c.opt.StrictBlobs,
	}
	if err := e.encode(c.root, v, nil); err != nil {
		return buf, err
	}
	return e.b.Bytes(), nil
}

// Decode reconstructs a value tree from data. The whole input must be
// consumed; malformed input yields a *DataError.
func (c *Codec) Decode(data []byte) (any, error) {
	d := decoder{r: NewReader(data)}
	v, err := d.decode(c.root)
	if err != nil {
		return nil, err
	}
	if n := d.r.Remaining(); n > 0 {
		return nil, dataErrf(data, d.r.Off(), nil, "%d trailing bytes", n)
	}
	return v, nil
}
