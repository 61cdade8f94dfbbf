package geospatial

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCoordinate is returned by Validate for NaN or out-of-range values.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a WGS 84 position. On the wire it is a [lon, lat] pair,
// the order GeoJSON and the directions provider use.
type Coordinate struct {
	Lon float64 `json:"lon" validate:"longitude"`
	Lat float64 `json:"lat" validate:"latitude"`
}

// Validate reports whether c is a usable position. The geometry functions
// themselves never validate; callers are expected to do it first.
func Validate(c Coordinate) error {
	if math.IsNaN(c.Lon) || math.IsNaN(c.Lat) || math.IsInf(c.Lon, 0) || math.IsInf(c.Lat, 0) {
		return fmt.Errorf("%w: not a number", ErrInvalidCoordinate)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinate, c.Lon)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, c.Lat)
	}
	return nil
}

// ValidatePath validates every point of a path.
func ValidatePath(path []Coordinate) error {
	for i, c := range path {
		if err := Validate(c); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}
	return nil
}

func (c Coordinate) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lon, c.Lat})
}

// UnmarshalJSON accepts [lon, lat] or {"lon": .., "lat": ..}.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("coordinate must have 2 elements, got %d", len(pair))
		}
		c.Lon, c.Lat = pair[0], pair[1]
		return nil
	}

	var obj struct {
		Lon *float64 `json:"lon"`
		Lat *float64 `json:"lat"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("coordinate: %w", err)
	}
	if obj.Lon == nil || obj.Lat == nil {
		return errors.New("coordinate requires lon and lat")
	}
	c.Lon, c.Lat = *obj.Lon, *obj.Lat
	return nil
}
