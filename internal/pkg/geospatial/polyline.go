package geospatial

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrMalformedPolyline is returned when an encoded path cannot be decoded.
var ErrMalformedPolyline = errors.New("malformed polyline")

const polylineFactor = 1e5

// EncodePath encodes a path with the 1e-5 precision polyline algorithm used by
// static map overlays. Latitude precedes longitude for every point, each as a
// delta from the previous point. An empty path encodes to "".
func EncodePath(points []Coordinate) string {
	var sb strings.Builder
	// worst case is ~6 chars per axis
	sb.Grow(len(points) * 12)

	var prevLat, prevLon int64
	for _, p := range points {
		lat := scaleE5(p.Lat)
		lon := scaleE5(p.Lon)

		encodeSigned(&sb, lat-prevLat)
		encodeSigned(&sb, lon-prevLon)

		prevLat, prevLon = lat, lon
	}
	return sb.String()
}

// DecodePath reverses EncodePath. Coordinates come back rounded to 1e-5.
func DecodePath(encoded string) ([]Coordinate, error) {
	var (
		points   []Coordinate
		lat, lon int64
		idx      int
	)
	for idx < len(encoded) {
		dLat, n, err := decodeSigned(encoded, idx)
		if err != nil {
			return nil, err
		}
		idx = n

		dLon, n, err := decodeSigned(encoded, idx)
		if err != nil {
			return nil, err
		}
		idx = n

		lat += dLat
		lon += dLon
		points = append(points, Coordinate{
			Lon: float64(lon) / polylineFactor,
			Lat: float64(lat) / polylineFactor,
		})
	}
	return points, nil
}

// scaleE5 rounds half away from zero, like reference encoders do.
func scaleE5(deg float64) int64 {
	return int64(math.Round(deg * polylineFactor))
}

func encodeSigned(sb *strings.Builder, v int64) {
	u := uint64(v) << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte((0x20 | (u & 0x1f)) + 63))
		u >>= 5
	}
	sb.WriteByte(byte(u + 63))
}

func decodeSigned(s string, idx int) (int64, int, error) {
	var (
		result uint64
		shift  uint
	)
	for {
		if idx >= len(s) {
			return 0, idx, fmt.Errorf("%w: truncated at offset %d", ErrMalformedPolyline, idx)
		}
		b := int(s[idx]) - 63
		idx++
		if b < 0 || b > 0x3f {
			return 0, idx, fmt.Errorf("%w: invalid character %q at offset %d", ErrMalformedPolyline, s[idx-1], idx-1)
		}
		if shift > 60 {
			return 0, idx, fmt.Errorf("%w: value overflow at offset %d", ErrMalformedPolyline, idx-1)
		}
		result |= uint64(b&0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	v := int64(result >> 1)
	if result&1 != 0 {
		v = ^v
	}
	return v, idx, nil
}
