package packbytes

import (
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// Variant is the value of a tagged union: the active variant name and its
// payload (nil for payload-less variants).
type Variant struct {
	Name  string
	Value any
}

func (v Variant) String() string {
	return fmt.Sprintf("%s(%v)", v.Name, v.Value)
}

// OID is the 12-byte value of an ObjectID field. Its text form is 24 hex
// digits.
type OID [12]byte

func ParseOID(s string) (OID, error) {
	var id OID
	if len(s) != 2*len(id) {
		return id, fmt.Errorf("invalid object id %q: wanted %d hex digits", s, 2*len(id))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("invalid object id %q: %w", s, err)
	}
	return id, nil
}

func (id OID) String() string {
	return hex.EncodeToString(id[:])
}

func (id OID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *OID) UnmarshalText(b []byte) error {
	v, err := ParseOID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// Point is the value of a LonLat field, in degrees.
type Point struct {
	Lon float64
	Lat float64
}

const (
	lonLatScale = 1e7
	lonOffset   = 180
	latOffset   = 90
)

func fixedCoord(deg, offset float64) (uint64, bool) {
	if math.IsNaN(deg) || deg < -offset || deg > offset {
		return 0, false
	}
	return uint64(math.Round((deg + offset) * lonLatScale)), true
}

func coordFromFixed(v uint64, offset float64) float64 {
	return float64(v)/lonLatScale - offset
}

const maxDateSeconds = math.MaxUint32

var epoch = time.Unix(0, 0).UTC()

func dateSeconds(t time.Time) (uint64, bool) {
	sec := t.Unix()
	if sec < 0 || sec > maxDateSeconds {
		return 0, false
	}
	return uint64(sec), true
}

func dateFromSeconds(sec uint64) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}
