package wkb

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// encodePlain builds a bare WKB point (no SRID) in the given byte order.
func encodePlain(order binary.ByteOrder, endianByte byte, lon, lat float64) []byte {
	buf := make([]byte, 21)
	buf[0] = endianByte
	order.PutUint32(buf[1:5], geomPoint)
	order.PutUint64(buf[5:13], math.Float64bits(lon))
	order.PutUint64(buf[13:21], math.Float64bits(lat))
	return buf
}

func TestDecode_LittleEndianPlainPoint(t *testing.T) {
	buf := encodePlain(binary.LittleEndian, 1, 11.5492349, 48.1313557)
	require.Len(t, buf, 21)

	p, err := Decode(buf)
	require.NoError(t, err)
	assert.InDelta(t, 11.5492349, p.Lon, 1e-9)
	assert.InDelta(t, 48.1313557, p.Lat, 1e-9)
}

func TestDecode_BigEndianPlainPoint(t *testing.T) {
	buf := encodePlain(binary.BigEndian, 0, -122.4194, 37.7749)

	p, err := Decode(buf)
	require.NoError(t, err)
	assert.InDelta(t, -122.4194, p.Lon, 1e-9)
	assert.InDelta(t, 37.7749, p.Lat, 1e-9)
}

func TestDecode_RoundTrip(t *testing.T) {
	want := Point{Lon: 11.5498, Lat: 48.1315}

	got, err := Decode(Encode(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeHex_RoundTrip(t *testing.T) {
	want := Point{Lon: 11.544973, Lat: 48.136293}

	got, err := DecodeHex(EncodeHex(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// Decode must agree with the reference EWKB encoder for both byte orders.
func TestDecode_MatchesReferenceEncoder(t *testing.T) {
	g := geom.NewPointFlat(geom.XY, []float64{11.5492349, 48.1313557}).SetSRID(SRIDWGS84)

	for name, order := range map[string]binary.ByteOrder{
		"ndr": ewkb.NDR,
		"xdr": ewkb.XDR,
	} {
		t.Run(name, func(t *testing.T) {
			data, err := ewkb.Marshal(g, order)
			require.NoError(t, err)

			p, err := Decode(data)
			require.NoError(t, err)
			assert.InDelta(t, 11.5492349, p.Lon, 1e-9)
			assert.InDelta(t, 48.1313557, p.Lat, 1e-9)
		})
	}
}

func TestDecode_ShortBuffer(t *testing.T) {
	for _, n := range []int{0, 1, 4, 5, 12, 20} {
		buf := encodePlain(binary.LittleEndian, 1, 11.5, 48.1)[:n]
		_, err := Decode(buf)
		assert.ErrorIs(t, err, ErrShortBuffer, "len %d", n)
	}
}

func TestDecode_SRIDPointTruncated(t *testing.T) {
	// SRID flag claims 4 extra bytes; a 21-byte buffer is then too short.
	buf := encodePlain(binary.LittleEndian, 1, 11.5, 48.1)
	binary.LittleEndian.PutUint32(buf[1:5], geomPoint|sridFlag)

	_, err := Decode(buf)
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestDecode_NonPointGeometry(t *testing.T) {
	buf := encodePlain(binary.LittleEndian, 1, 11.5, 48.1)
	binary.LittleEndian.PutUint32(buf[1:5], 2) // LineString

	_, err := Decode(buf)
	assert.ErrorIs(t, err, ErrUnsupportedGeometry)
}

func TestDecodeHex_InvalidHex(t *testing.T) {
	_, err := DecodeHex("not-hex")
	assert.Error(t, err)
}
