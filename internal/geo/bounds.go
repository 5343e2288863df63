package geo

import (
	"fmt"
	"math"
)

// Bounds is an axis-aligned geographic bounding box.
type Bounds struct {
	SouthWest GeoPoint `json:"south_west" yaml:"south_west"`
	NorthEast GeoPoint `json:"north_east" yaml:"north_east"`
}

// Viewport is a pixel viewport size.
type Viewport struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Offset is a pixel offset, used as the vanishing point bias when fitting bounds.
type Offset struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// NewBounds returns the min/max pair over points. ok is false for an empty set.
func NewBounds(points ...GeoPoint) (b Bounds, ok bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}

	b = Bounds{SouthWest: points[0], NorthEast: points[0]}
	for _, p := range points[1:] {
		b = b.Extend(p)
	}

	return b, true
}

// Extend returns b grown to include p.
func (b Bounds) Extend(p GeoPoint) Bounds {
	b.SouthWest.Lat = math.Min(b.SouthWest.Lat, p.Lat)
	b.SouthWest.Lon = math.Min(b.SouthWest.Lon, p.Lon)
	b.NorthEast.Lat = math.Max(b.NorthEast.Lat, p.Lat)
	b.NorthEast.Lon = math.Max(b.NorthEast.Lon, p.Lon)
	return b
}

// Contains returns true if p is within the bounds.
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Lat >= b.SouthWest.Lat && p.Lat <= b.NorthEast.Lat &&
		p.Lon >= b.SouthWest.Lon && p.Lon <= b.NorthEast.Lon
}

// Center returns the midpoint of the bounds in projected space.
func (b Bounds) Center() GeoPoint {
	x1, y1 := Project(b.SouthWest)
	x2, y2 := Project(b.NorthEast)
	return Unproject((x1+x2)/2, (y1+y2)/2)
}

// Points returns the two corners, suitable for FitBounds.
func (b Bounds) Points() []GeoPoint {
	return []GeoPoint{b.SouthWest, b.NorthEast}
}

// FitBounds computes the camera center and zoom that fit points into the viewport.
//
// The bounding box is computed in Web Mercator space and inflated by padding
// (a fraction of its size). The returned center is shifted by offset pixels at
// the resulting zoom so the box lands on the vanishing point instead of the
// viewport center. An empty set yields the empty point and defaultZoom; a
// single point (or points collapsing to one) yields that point and defaultZoom.
func FitBounds(points []GeoPoint, vp Viewport, padding float64, offset Offset, defaultZoom float64) (GeoPoint, float64, error) {
	if vp.Width <= 0 || vp.Height <= 0 {
		return GeoPoint{}, 0, fmt.Errorf("fit bounds: invalid viewport %.0fx%.0f", vp.Width, vp.Height)
	}
	if padding < 0 {
		return GeoPoint{}, 0, fmt.Errorf("fit bounds: negative padding %f", padding)
	}
	if len(points) == 0 {
		return GeoPoint{}, defaultZoom, nil
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i, p := range points {
		if err := Validate(p); err != nil {
			return GeoPoint{}, 0, fmt.Errorf("fit bounds: point %d: %w", i, err)
		}
		x, y := Project(p)
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}

	dx := (maxX - minX) * (1 + padding)
	dy := (maxY - minY) * (1 + padding)

	zoom := defaultZoom
	if dx > 0 || dy > 0 {
		zoom = MaxZoom
		if dx > 0 {
			zoom = math.Min(zoom, math.Log2(vp.Width/(dx*TileSize)))
		}
		if dy > 0 {
			zoom = math.Min(zoom, math.Log2(vp.Height/(dy*TileSize)))
		}
		zoom = math.Max(0, zoom)
	}

	scale := WorldScale(zoom)
	cx := (minX+maxX)/2 - offset.X/scale
	cy := (minY+maxY)/2 - offset.Y/scale

	return Unproject(cx, cy), zoom, nil
}
