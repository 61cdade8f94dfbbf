package geospatial

import "math"

// Bearing returns the initial great-circle bearing from start toward end in
// degrees clockwise from true north, normalised to [0, 360).
//
// Identical points yield 0, which carries no direction. Out-of-range or NaN
// input is not rejected and propagates into the result.
func Bearing(start, end Coordinate) float64 {
	lat1 := toRad(start.Lat)
	lat2 := toRad(end.Lat)
	dLon := toRad(end.Lon - start.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	theta := toDeg(math.Atan2(y, x))
	return math.Mod(theta+360, 360)
}

// RoundBearing rounds a bearing to the given number of decimal places and
// keeps it in [0, 360): values that round up to 360 wrap to 0.
func RoundBearing(bearing float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	r := math.Round(bearing*scale) / scale
	if r >= 360 {
		r -= 360
	}
	return r
}

var compassPoints = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Compass converts a bearing to an 8-point compass label.
func Compass(bearing float64) string {
	if math.IsNaN(bearing) {
		return ""
	}
	b := math.Mod(bearing, 360)
	if b < 0 {
		b += 360
	}
	return compassPoints[int((b+22.5)/45.0)%8]
}
