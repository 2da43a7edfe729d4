package packbytes

import (
	"fmt"
	"strings"
)

// SchemaError reports an invalid schema declaration. It is returned by New
// and never by Encode or Decode.
type SchemaError struct {
	Path string
	Msg  string
}

func schemaErrf(path string, format string, args ...any) error {
	return &SchemaError{path, fmt.Sprintf(format, args...)}
}

func (e *SchemaError) Error() string {
	return "schema: " + withPath(e.Path, e.Msg)
}

// RangeError reports a value that does not fit the capacity of its field.
type RangeError struct {
	Path  string
	Value any
	Msg   string
}

func rangeErrf(path string, value any, format string, args ...any) error {
	return &RangeError{path, value, fmt.Sprintf(format, args...)}
}

func (e *RangeError) Error() string {
	return withPath(e.Path, fmt.Sprintf("%s: %v", e.Msg, e.Value))
}

// UnknownVariantError reports a tagged-union variant name that the schema
// does not declare.
type UnknownVariantError struct {
	Path string
	Name string
}

func (e *UnknownVariantError) Error() string {
	return withPath(e.Path, fmt.Sprintf("unknown variant %q", e.Name))
}

// MissingFieldError reports a nested struct that has no value on encode.
type MissingFieldError struct {
	Path  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return withPath(e.Path, fmt.Sprintf("missing value for struct field %q", e.Field))
}

// ValueError reports a Go value whose type cannot represent the schema kind.
type ValueError struct {
	Path   string
	Kind   Kind
	GoType string
}

func valueErr(path string, kind Kind, v any) error {
	return &ValueError{path, kind, fmt.Sprintf("%T", v)}
}

func (e *ValueError) Error() string {
	return withPath(e.Path, fmt.Sprintf("cannot encode %s as %s", e.GoType, e.Kind))
}

// DataError reports malformed input on decode.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s at offset %d: %v: (%d) %x", e.Msg, e.Off, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s at offset %d: (%d) %x", e.Msg, e.Off, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s at offset %d: %v: (%d) %x...%x", e.Msg, e.Off, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s at offset %d: (%d) %x...%x", e.Msg, e.Off, n, p, s)
		}
	}
}

func withPath(path, msg string) string {
	if path == "" {
		return msg
	}
	return path + ": " + msg
}

// fieldPath tracks the position inside a value tree for diagnostics.
type fieldPath []string

func (p fieldPath) String() string {
	var buf strings.Builder
	for _, c := range p {
		if buf.Len() > 0 && c[0] != '[' {
			buf.WriteByte('.')
		}
		buf.WriteString(c)
	}
	return buf.String()
}

func (p fieldPath) field(name string) fieldPath {
	return append(p, name)
}

func (p fieldPath) index(i int) fieldPath {
	return append(p, fmt.Sprintf("[%d]", i))
}
