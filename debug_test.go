package packbytes

import (
	"strings"
	"testing"
)

func TestCodec_Stats(t *testing.T) {
	tests := []struct {
		name   string
		schema *Type
		want   LayoutStats
	}{
		{"bool", Bool(), LayoutStats{Size: 1}},
		{"bits 12", Bits(12), LayoutStats{Size: 2}},
		{"string", String(), LayoutStats{Variable: true}},
		{"fixed blob", Blob().Size(5), LayoutStats{Size: 5}},
		{"dense", Array(Bool()).Size(9), LayoutStats{Size: 2}},
		{
			"struct",
			Struct(F("a", Bits(20)), F("b", Bits(4)), F("c", Bool()), F("f", Float(32))),
			LayoutStats{Words32: 1, PackedFields: 3, PackedBits: 25, Size: 8},
		},
		{
			"split word",
			Struct(F("a", Bits(5)), F("b", Bits(5)), F("c", Bits(5)), F("d", Bits(5))),
			LayoutStats{Words8: 1, Words16: 1, PackedFields: 4, PackedBits: 20, Size: 3},
		},
		{
			"union counts variant words",
			Union(F("x", Struct(F("a", Bool()))), F("y", nil)),
			LayoutStats{Words8: 1, PackedFields: 1, PackedBits: 1, Variable: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustCodec(t, tt.schema, Options{})
			if a := c.Stats(); a != tt.want {
				t.Fatalf("Stats = %+v, wanted %+v", a, tt.want)
			}
		})
	}
}

func TestCodec_Dump(t *testing.T) {
	c := mustCodec(t, Struct(
		F("id", VarInt()),
		F("flags", Struct(F("x", Bool()), F("y", Bool()))),
		F("kind", String("a", "b", "c")),
		F("grid", Array(Bits(3)).Size(4)),
		F("ev", Union(F("none", nil), F("n", Float(64)))),
	), Options{})

	s := c.Dump()
	for _, want := range []string{
		"schema " + hexUint64(c.Fingerprint()),
		"word8 {#2:2 #0:1 #1:1} 4/8 bits",
		"flags:       struct (shares parent words)",
		"kind:        string enum(3) packed #2",
		"grid:        array[4] of bits(3), 3 bit stream",
		"ev:          schemas(2), 1 bit discriminant",
		"none #0",
		"n #1:        float(64)",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("Dump() = \n%s\nwanted it to contain %q", s, want)
		}
	}
}
