package packbytes

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestVarInt_Boundaries(t *testing.T) {
	tests := []struct {
		v    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x80}},
		{16383, []byte{0xbf, 0xff}},
		{16384, []byte{0xc0, 0x00, 0x40, 0x00}},
		{1073741823, []byte{0xff, 0xff, 0xff, 0xff}},
	}
	for _, tt := range tests {
		b := NewBuffer(0)
		if err := b.WriteVarInt(tt.v); err != nil {
			t.Fatalf("WriteVarInt(%d) failed: %v", tt.v, err)
		}
		if !bytes.Equal(b.Bytes(), tt.want) {
			t.Fatalf("WriteVarInt(%d) = %x, wanted %x", tt.v, b.Bytes(), tt.want)
		}
		if n := VarIntSize(tt.v); n != len(tt.want) {
			t.Fatalf("VarIntSize(%d) = %d, wanted %d", tt.v, n, len(tt.want))
		}

		r := NewReader(b.Bytes())
		a, err := r.ReadVarInt()
		if err != nil {
			t.Fatalf("ReadVarInt(%x) failed: %v", tt.want, err)
		}
		if a != tt.v {
			t.Fatalf("ReadVarInt(%x) = %d, wanted %d", tt.want, a, tt.v)
		}
		if r.Remaining() != 0 {
			t.Fatalf("ReadVarInt(%x) left %d bytes", tt.want, r.Remaining())
		}
	}
}

func TestVarInt_Overflow(t *testing.T) {
	b := NewBuffer(0)
	err := b.WriteVarInt(MaxVarInt + 1)
	var re *RangeError
	if !errors.As(err, &re) {
		t.Fatalf("WriteVarInt(2^30) err = %v, wanted *RangeError", err)
	}
	if b.Len() != 0 {
		t.Fatalf("Len after failed WriteVarInt = %d, wanted 0", b.Len())
	}
}

func TestVarInt_Truncated(t *testing.T) {
	for _, data := range [][]byte{{}, {0x80}, {0xc0, 0x00, 0x00}} {
		_, err := NewReader(data).ReadVarInt()
		var de *DataError
		if !errors.As(err, &de) {
			t.Fatalf("ReadVarInt(%x) err = %v, wanted *DataError", data, err)
		}
	}
}

func TestBuffer_Growth(t *testing.T) {
	b := NewBuffer(2)
	var want []byte
	for i := 0; i < 100; i++ {
		if err := b.WriteUint(uint64(i), 1); err != nil {
			t.Fatal(err)
		}
		want = append(want, byte(i))
	}
	if !bytes.Equal(b.Bytes(), want) {
		t.Fatalf("Bytes = %x, wanted %x", b.Bytes(), want)
	}
	if b.Cap() != 128 {
		t.Fatalf("Cap = %d, wanted 128", b.Cap())
	}

	b.Reset()
	if b.Len() != 0 || b.Cap() != 128 {
		t.Fatalf("after Reset: Len = %d, Cap = %d, wanted 0, 128", b.Len(), b.Cap())
	}
}

func TestBuffer_WriteUint(t *testing.T) {
	b := NewBuffer(0)
	must(0, b.WriteUint(0xab, 1))
	must(0, b.WriteUint(0xabcd, 2))
	must(0, b.WriteUint(0x0a0b0c0d, 4))
	want := []byte{0xab, 0xab, 0xcd, 0x0a, 0x0b, 0x0c, 0x0d}
	if !bytes.Equal(b.Bytes(), want) {
		t.Fatalf("Bytes = %x, wanted %x", b.Bytes(), want)
	}

	var re *RangeError
	if err := b.WriteUint(256, 1); !errors.As(err, &re) {
		t.Fatalf("WriteUint(256, 1) err = %v, wanted *RangeError", err)
	}

	r := NewReader(want)
	for _, tt := range []struct {
		width int
		want  uint64
	}{{1, 0xab}, {2, 0xabcd}, {4, 0x0a0b0c0d}} {
		a, err := r.ReadUint(tt.width)
		if err != nil {
			t.Fatal(err)
		}
		if a != tt.want {
			t.Fatalf("ReadUint(%d) = %x, wanted %x", tt.width, a, tt.want)
		}
	}
}

func TestBuffer_WriteUint_badWidthPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("WriteUint(1, 3) did not panic")
		}
	}()
	NewBuffer(0).WriteUint(1, 3)
}

func TestBuffer_Float(t *testing.T) {
	b := NewBuffer(0)
	b.WriteFloat(1.5, 4)
	b.WriteFloat(math.Pi, 8)
	if !bytes.Equal(b.Bytes()[:4], []byte{0x3f, 0xc0, 0x00, 0x00}) {
		t.Fatalf("float32 1.5 = %x, wanted 3fc00000", b.Bytes()[:4])
	}

	r := NewReader(b.Bytes())
	if a := must(r.ReadFloat(4)); a != 1.5 {
		t.Fatalf("ReadFloat(4) = %v, wanted 1.5", a)
	}
	if a := must(r.ReadFloat(8)); a != math.Pi {
		t.Fatalf("ReadFloat(8) = %v, wanted %v", a, math.Pi)
	}
}

func TestBuffer_String(t *testing.T) {
	s := strings.Repeat("ж", 100)
	b := NewBuffer(0)
	must(0, b.WriteString(s))
	must(0, b.WriteString(""))
	if b.Len() != StrTotalLength(s)+1 {
		t.Fatalf("Len = %d, wanted %d", b.Len(), StrTotalLength(s)+1)
	}

	r := NewReader(b.Bytes())
	if a := must(r.ReadString()); a != s {
		t.Fatalf("ReadString = %q, wanted %q", a, s)
	}
	if a := must(r.ReadString()); a != "" {
		t.Fatalf("ReadString = %q, wanted empty", a)
	}
}

func TestReader_String_invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"bad utf8", []byte{0x01, 0xff}},
		{"too long", []byte{0x05, 'a', 'b'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(tt.data).ReadString()
			var de *DataError
			if !errors.As(err, &de) {
				t.Fatalf("ReadString(%x) err = %v, wanted *DataError", tt.data, err)
			}
		})
	}
}

func TestBuffer_Blob(t *testing.T) {
	tests := []struct {
		v     []byte
		fixed int
		want  []byte
	}{
		{[]byte{1, 2, 3}, 0, []byte{3, 1, 2, 3}},
		{nil, 0, []byte{0}},
		{[]byte{1, 2, 3}, 2, []byte{1, 2}},
		{[]byte{1}, 3, []byte{1, 0, 0}},
	}
	for _, tt := range tests {
		b := NewBuffer(0)
		must(0, b.WriteBlob(tt.v, tt.fixed))
		if !bytes.Equal(b.Bytes(), tt.want) {
			t.Fatalf("WriteBlob(%x, %d) = %x, wanted %x", tt.v, tt.fixed, b.Bytes(), tt.want)
		}
	}

	data := []byte{2, 0xaa, 0xbb}
	a := must(NewReader(data).ReadBlob(0))
	data[1] = 0
	if !bytes.Equal(a, []byte{0xaa, 0xbb}) {
		t.Fatalf("ReadBlob = %x, wanted aabb (must not alias input)", a)
	}
}

func TestBitStream(t *testing.T) {
	b := NewBuffer(0)
	w := bitWriter{b: b}
	for _, v := range []uint64{0, 1, 2, 3} {
		w.write(v, 3)
	}
	w.flush()
	if want := []byte{0x05, 0x30}; !bytes.Equal(b.Bytes(), want) {
		t.Fatalf("bit stream = %x, wanted %x", b.Bytes(), want)
	}
	if n := bitStreamSize(4, 3); n != 2 {
		t.Fatalf("bitStreamSize(4, 3) = %d, wanted 2", n)
	}

	br := bitReader{r: NewReader(b.Bytes())}
	for i, want := range []uint64{0, 1, 2, 3} {
		a, err := br.read(3)
		if err != nil {
			t.Fatal(err)
		}
		if a != want {
			t.Fatalf("read #%d = %d, wanted %d", i, a, want)
		}
	}
}

func TestBitStream_wide(t *testing.T) {
	vals := []uint64{0x1ffff, 0, 0x15555, 1}
	b := NewBuffer(0)
	w := bitWriter{b: b}
	for _, v := range vals {
		w.write(v, 17)
	}
	w.flush()
	if b.Len() != bitStreamSize(len(vals), 17) {
		t.Fatalf("Len = %d, wanted %d", b.Len(), bitStreamSize(len(vals), 17))
	}
	br := bitReader{r: NewReader(b.Bytes())}
	for i, want := range vals {
		if a := must(br.read(17)); a != want {
			t.Fatalf("read #%d = %x, wanted %x", i, a, want)
		}
	}
}
