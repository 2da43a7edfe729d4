/*
Package packbytes implements a compact schema-driven binary codec.

A schema is declared as a tree of types (Bool, Bits, Float, VarInt, String,
Blob, ObjectID, UUID, Date, LonLat, Array, Union and Struct), compiled once by
New, and then used to encode and decode any number of values.

We implement:

1. Bit packing. Bool, Bits and enum String fields of a struct (including
fields of nested structs) share 8, 16 and 32 bit words instead of taking
a byte each.

2. A self-describing variable-length integer for lengths and union
discriminants.

3. Declaration exchange: a schema serializes to JSON or msgpack without any
compiled state, so independently built peers compile identical layouts.

# Technical Details

**Compiled tree.**
Compilation never touches the declaration; it builds a parallel tree of
nodes that carry byte widths, bit widths, value bounds and enumeration maps.
Each struct that is not a direct field of another struct owns a packing
scope; nested structs contribute their bit fields to the owner's scope.

**Word allocation.**
Bit fields are sorted by descending width (stable) and greedily fitted into
32-bit candidates. A candidate with 8..15 bits to spare is split into a
16-bit and an 8-bit word if its members allow, 16..23 spare bits make it a
16-bit word and 24 or more an 8-bit word. Members are packed most
significant first.

## Wire format

All fixed-width integers and floats are big-endian.

**Varint**: `0xxxxxxx` (< 2^7), `10xxxxxx xxxxxxxx` (< 2^14),
`11xxxxxx xxxxxxxx xxxxxxxx xxxxxxxx` (< 2^30).

**Struct**: packing words (all 8-bit words, then 16-bit, then 32-bit), then
the remaining fields in declaration order.

**Array**: varint length unless the length is fixed, then the elements.
Elements of bit field types form one bit stream padded to a whole byte.

**Union**: varint discriminant (the variant's declaration index), then the
variant's payload.

**String**, **Blob**: varint length, then bytes. Fixed-length blobs have no
length prefix. Enum strings are their index, 1, 2 or 4 bytes wide.

**Date**: uint32 seconds since the Unix epoch.

**LonLat**: two uint32 values, (lon+180)*1e7 and (lat+90)*1e7.
*/
package packbytes
