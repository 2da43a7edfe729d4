package packbytes

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"unicode/utf8"
)

const (
	// MaxVarInt is the largest value representable by the variable-length
	// integer frame.
	MaxVarInt = 1<<30 - 1

	varInt1Limit = 1 << 7
	varInt2Limit = 1 << 14

	varInt2Tag = 0x8000
	varInt4Tag = 0xC000_0000
)

func ensureCapacity(buf []byte, minCap int) []byte {
	c := cap(buf)
	if minCap > c {
		if c < 16 {
			c = 16
		}
		for minCap > c {
			c <<= 1
		}
		old := buf
		buf = make([]byte, len(old), c)
		copy(buf, old)
	}
	return buf
}

// Buffer is an expandable byte sequence. The write cursor is always at the
// end of the written data; growth doubles the capacity.
type Buffer struct {
	buf    []byte
	logger *slog.Logger
}

func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultInitialSize
	}
	return &Buffer{buf: make([]byte, 0, capacity)}
}

func wrapBuffer(buf []byte, logger *slog.Logger) *Buffer {
	return &Buffer{buf: buf, logger: logger}
}

// Bytes returns the written portion of the buffer. The result aliases
// the buffer's storage.
func (b *Buffer) Bytes() []byte { return b.buf }
func (b *Buffer) Len() int      { return len(b.buf) }
func (b *Buffer) Cap() int      { return cap(b.buf) }
func (b *Buffer) Reset()        { b.buf = b.buf[:0] }

func (b *Buffer) grow(n int) (off int) {
	off = len(b.buf)
	need := off + n
	if need > cap(b.buf) {
		oldCap := cap(b.buf)
		b.buf = ensureCapacity(b.buf, need)
		if b.logger != nil {
			b.logger.Debug("packbytes: buffer grown", "old_cap", oldCap, "new_cap", cap(b.buf), "needed", need)
		}
	}
	b.buf = b.buf[:need]
	return off
}

var _ io.Writer = (*Buffer)(nil)

func (b *Buffer) Write(p []byte) (int, error) {
	off := b.grow(len(p))
	copy(b.buf[off:], p)
	return len(p), nil
}

func (b *Buffer) WriteByte(v byte) error {
	off := b.grow(1)
	b.buf[off] = v
	return nil
}

func maxUint(width int) uint64 {
	switch width {
	case 1:
		return math.MaxUint8
	case 2:
		return math.MaxUint16
	case 4:
		return math.MaxUint32
	default:
		panic(fmt.Sprintf("packbytes: invalid uint width %d", width))
	}
}

// WriteUint writes v as a big-endian unsigned integer of 1, 2 or 4 bytes.
func (b *Buffer) WriteUint(v uint64, width int) error {
	if v > maxUint(width) {
		return rangeErrf("", v, "value does not fit into %d byte(s)", width)
	}
	off := b.grow(width)
	switch width {
	case 1:
		b.buf[off] = byte(v)
	case 2:
		binary.BigEndian.PutUint16(b.buf[off:], uint16(v))
	case 4:
		binary.BigEndian.PutUint32(b.buf[off:], uint32(v))
	}
	return nil
}

// WriteFloat writes v as a big-endian IEEE-754 value of 4 or 8 bytes.
func (b *Buffer) WriteFloat(v float64, width int) {
	switch width {
	case 4:
		off := b.grow(4)
		binary.BigEndian.PutUint32(b.buf[off:], math.Float32bits(float32(v)))
	case 8:
		off := b.grow(8)
		binary.BigEndian.PutUint64(b.buf[off:], math.Float64bits(v))
	default:
		panic(fmt.Sprintf("packbytes: invalid float width %d", width))
	}
}

// WriteVarInt writes v using 1, 2 or 4 bytes. The leading bits of the first
// byte tell the frame size: 0 for one byte, 10 for two, 11 for four.
func (b *Buffer) WriteVarInt(v uint64) error {
	switch {
	case v < varInt1Limit:
		off := b.grow(1)
		b.buf[off] = byte(v)
	case v < varInt2Limit:
		off := b.grow(2)
		binary.BigEndian.PutUint16(b.buf[off:], uint16(v)|varInt2Tag)
	case v <= MaxVarInt:
		off := b.grow(4)
		binary.BigEndian.PutUint32(b.buf[off:], uint32(v)|varInt4Tag)
	default:
		return rangeErrf("", v, "varint max %d exceeded", MaxVarInt)
	}
	return nil
}

func (b *Buffer) WriteString(s string) error {
	if err := b.WriteVarInt(uint64(len(s))); err != nil {
		return err
	}
	off := b.grow(len(s))
	copy(b.buf[off:], s)
	return nil
}

// WriteBlob writes v prefixed by its varint length. With fixed > 0 no
// prefix is written; v is truncated or zero-padded to exactly fixed bytes.
func (b *Buffer) WriteBlob(v []byte, fixed int) error {
	if fixed > 0 {
		off := b.grow(fixed)
		n := copy(b.buf[off:], v)
		clear(b.buf[off+n : off+fixed])
		return nil
	}
	if err := b.WriteVarInt(uint64(len(v))); err != nil {
		return err
	}
	off := b.grow(len(v))
	copy(b.buf[off:], v)
	return nil
}

// VarIntSize returns the number of bytes WriteVarInt uses for v.
func VarIntSize(v uint64) int {
	switch {
	case v < varInt1Limit:
		return 1
	case v < varInt2Limit:
		return 2
	default:
		return 4
	}
}

// StrTotalLength returns the encoded size of s including its length prefix.
func StrTotalLength(s string) int {
	return VarIntSize(uint64(len(s))) + len(s)
}

// Reader consumes a byte sequence written by Buffer.
type Reader struct {
	orig []byte
	buf  []byte
}

func NewReader(data []byte) *Reader {
	return &Reader{data, data}
}

func (r *Reader) Off() int       { return len(r.orig) - len(r.buf) }
func (r *Reader) Remaining() int { return len(r.buf) }

func (r *Reader) Raw(n int) ([]byte, error) {
	if len(r.buf) < n {
		return nil, dataErrf(r.orig, r.Off(), nil, "not enough data: %d bytes remaining, %d wanted", len(r.buf), n)
	}
	v := r.buf[:n]
	r.buf = r.buf[n:]
	return v, nil
}

func (r *Reader) ReadUint(width int) (uint64, error) {
	maxUint(width)
	raw, err := r.Raw(width)
	if err != nil {
		return 0, err
	}
	switch width {
	case 1:
		return uint64(raw[0]), nil
	case 2:
		return uint64(binary.BigEndian.Uint16(raw)), nil
	default:
		return uint64(binary.BigEndian.Uint32(raw)), nil
	}
}

func (r *Reader) ReadFloat(width int) (float64, error) {
	if width != 4 && width != 8 {
		panic(fmt.Sprintf("packbytes: invalid float width %d", width))
	}
	raw, err := r.Raw(width)
	if err != nil {
		return 0, err
	}
	if width == 4 {
		return float64(math.Float32frombits(binary.BigEndian.Uint32(raw))), nil
	}
	return math.Float64frombits(binary.BigEndian.Uint64(raw)), nil
}

func (r *Reader) ReadVarInt() (uint64, error) {
	if len(r.buf) == 0 {
		return 0, dataErrf(r.orig, r.Off(), nil, "not enough data for varint")
	}
	lead := r.buf[0]
	if lead < 0x80 {
		r.buf = r.buf[1:]
		return uint64(lead), nil
	}
	if lead&0x40 == 0 {
		v, err := r.ReadUint(2)
		return v &^ varInt2Tag, err
	}
	v, err := r.ReadUint(4)
	return v &^ varInt4Tag, err
}

func (r *Reader) readLength() (int, error) {
	off := r.Off()
	n, err := r.ReadVarInt()
	if err != nil {
		return 0, err
	}
	if int(n) > len(r.buf) {
		return 0, dataErrf(r.orig, off, nil, "length %d exceeds remaining %d bytes", n, len(r.buf))
	}
	return int(n), nil
}

func (r *Reader) ReadString() (string, error) {
	off := r.Off()
	n, err := r.readLength()
	if err != nil {
		return "", err
	}
	raw, _ := r.Raw(n)
	if !utf8.Valid(raw) {
		return "", dataErrf(r.orig, off, nil, "invalid UTF-8 string")
	}
	return string(raw), nil
}

// ReadBlob reads fixed bytes, or a varint-prefixed blob when fixed is 0.
// The result is a copy and does not alias the input.
func (r *Reader) ReadBlob(fixed int) ([]byte, error) {
	n := fixed
	if n == 0 {
		var err error
		n, err = r.readLength()
		if err != nil {
			return nil, err
		}
	}
	raw, err := r.Raw(n)
	if err != nil {
		return nil, err
	}
	return slices.Clone(raw), nil
}

// bitWriter appends values as a contiguous most-significant-first bit
// stream; flush pads the final byte with zero bits.
type bitWriter struct {
	b   *Buffer
	acc uint64
	n   int
}

func (w *bitWriter) write(v uint64, width int) {
	w.acc = w.acc<<width | v
	w.n += width
	for w.n >= 8 {
		w.n -= 8
		off := w.b.grow(1)
		w.b.buf[off] = byte(w.acc >> w.n)
	}
	w.acc &= 1<<w.n - 1
}

func (w *bitWriter) flush() {
	if w.n > 0 {
		off := w.b.grow(1)
		w.b.buf[off] = byte(w.acc << (8 - w.n))
	}
	w.acc, w.n = 0, 0
}

type bitReader struct {
	r   *Reader
	acc uint64
	n   int
}

func (br *bitReader) read(width int) (uint64, error) {
	for br.n < width {
		raw, err := br.r.Raw(1)
		if err != nil {
			return 0, err
		}
		br.acc = br.acc<<8 | uint64(raw[0])
		br.n += 8
	}
	br.n -= width
	v := br.acc >> br.n
	br.acc &= 1<<br.n - 1
	return v, nil
}

// bitStreamSize returns the number of bytes a bit stream of count values,
// width bits each, occupies.
func bitStreamSize(count, width int) int {
	return (count*width + 7) / 8
}
