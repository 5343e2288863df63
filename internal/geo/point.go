// Package geo handles geographic primitives, bounds fitting and coordinate conversions.
package geo

import (
	"fmt"
	"math"
)

// GeoPoint is a WGS84 coordinate.
//
// The zero value (0,0) doubles as the "no result" sentinel returned by
// geocoding; use IsEmpty to test for it and Validate to test for range.
type GeoPoint struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Valid reports whether lat is in [-90, 90] and lon is in [-180, 180).
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon < 180
}

// IsEmpty reports whether both components are exactly zero.
func (p GeoPoint) IsEmpty() bool {
	return p.Lat == 0 && p.Lon == 0
}

// String implements fmt.Stringer.
func (p GeoPoint) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lon)
}

// Validate returns an *InvalidCoordinateError when p is out of range.
func Validate(p GeoPoint) error {
	if !p.Valid() {
		return &InvalidCoordinateError{Lat: p.Lat, Lon: p.Lon}
	}
	return nil
}

// ValidatePath validates every point of a polyline or ring.
func ValidatePath(points []GeoPoint, minLen int) error {
	if len(points) < minLen {
		return fmt.Errorf("%w: need at least %d points, got %d", ErrInvalidGeometry, minLen, len(points))
	}
	for i, p := range points {
		if err := Validate(p); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}
	return nil
}

// ValidateRings validates polygon rings; the first ring is the outer boundary.
func ValidateRings(rings [][]GeoPoint) error {
	if len(rings) == 0 {
		return fmt.Errorf("%w: polygon has no rings", ErrInvalidGeometry)
	}
	for i, ring := range rings {
		if err := ValidatePath(ring, 3); err != nil {
			return fmt.Errorf("ring %d: %w", i, err)
		}
	}
	return nil
}
