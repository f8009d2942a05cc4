// Package wkb decodes the compact binary point geometry produced by the
// upstream spatial store (PostGIS EWKB). Only the Point variant is consumed;
// everything else is rejected.
package wkb

import (
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/rotisserie/eris"
)

// sridFlag marks a geometry type word that carries a 4-byte SRID.
const sridFlag = 0x20000000

// geomPoint is the WKB base geometry type for a point.
const geomPoint = 1

// SRID for WGS84, the only reference system the upstream store writes.
const SRIDWGS84 = 4326

var (
	// ErrShortBuffer is returned when the buffer ends before the point is
	// fully read.
	ErrShortBuffer = eris.New("wkb: buffer too short")

	// ErrUnsupportedGeometry is returned for any geometry type other than
	// Point.
	ErrUnsupportedGeometry = eris.New("wkb: unsupported geometry type")
)

// Point is a decoded WGS84 position.
type Point struct {
	Lon float64 `json:"longitude"`
	Lat float64 `json:"latitude"`
}

// Decode reads a WKB or EWKB point from buf and returns its coordinates.
//
// Layout: one endianness byte (0 = big endian, 1 = little endian), a 4-byte
// geometry type word in that byte order, an optional 4-byte SRID when the
// type word has the SRID flag set, then longitude and latitude as IEEE-754
// doubles.
func Decode(buf []byte) (Point, error) {
	if len(buf) < 5 {
		return Point{}, eris.Wrapf(ErrShortBuffer, "%d bytes", len(buf))
	}

	var order binary.ByteOrder = binary.BigEndian
	if buf[0] == 1 {
		order = binary.LittleEndian
	}

	geomType := order.Uint32(buf[1:5])
	offset := 5

	if geomType&sridFlag != 0 {
		offset += 4
	}

	if geomType&0xFFFF != geomPoint {
		return Point{}, eris.Wrapf(ErrUnsupportedGeometry, "type %#x", geomType&0xFFFF)
	}

	if len(buf) < offset+16 {
		return Point{}, eris.Wrapf(ErrShortBuffer, "%d bytes, need %d", len(buf), offset+16)
	}

	lon := math.Float64frombits(order.Uint64(buf[offset : offset+8]))
	lat := math.Float64frombits(order.Uint64(buf[offset+8 : offset+16]))

	return Point{Lon: lon, Lat: lat}, nil
}

// DecodeHex decodes a hex-encoded WKB point, the representation position rows
// carry in the database.
func DecodeHex(s string) (Point, error) {
	buf, err := hex.DecodeString(s)
	if err != nil {
		return Point{}, eris.Wrap(err, "wkb: decode hex")
	}
	return Decode(buf)
}

// Encode writes p as a little-endian EWKB point with SRID 4326, matching what
// the spatial store produces. Decode is its exact inverse.
func Encode(p Point) []byte {
	buf := make([]byte, 25)
	buf[0] = 1 // little endian
	binary.LittleEndian.PutUint32(buf[1:5], geomPoint|sridFlag)
	binary.LittleEndian.PutUint32(buf[5:9], SRIDWGS84)
	binary.LittleEndian.PutUint64(buf[9:17], math.Float64bits(p.Lon))
	binary.LittleEndian.PutUint64(buf[17:25], math.Float64bits(p.Lat))
	return buf
}

// EncodeHex returns the hex form of Encode, as stored in position rows.
func EncodeHex(p Point) string {
	return hex.EncodeToString(Encode(p))
}
