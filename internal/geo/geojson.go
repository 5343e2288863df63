package geo

import (
	"github.com/paulmach/orb"
)

// ToOrb converts a point to orb's [lon, lat] layout.
func ToOrb(p GeoPoint) orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromOrb converts an orb point to a GeoPoint.
func FromOrb(p orb.Point) GeoPoint {
	return GeoPoint{Lat: p.Lat(), Lon: p.Lon()}
}

// LineString converts a path to an orb.LineString.
func LineString(points []GeoPoint) orb.LineString {
	ls := make(orb.LineString, 0, len(points))
	for _, p := range points {
		ls = append(ls, ToOrb(p))
	}
	return ls
}

// Polygon converts rings to an orb.Polygon, closing each ring when needed.
func Polygon(rings [][]GeoPoint) orb.Polygon {
	poly := make(orb.Polygon, 0, len(rings))
	for _, ring := range rings {
		r := make(orb.Ring, 0, len(ring)+1)
		for _, p := range ring {
			r = append(r, ToOrb(p))
		}
		if len(r) > 0 && !r.Closed() {
			r = append(r, r[0])
		}
		poly = append(poly, r)
	}
	return poly
}

// PathFromOrb converts a line string (or ring) to GeoPoints.
func PathFromOrb(ls []orb.Point) []GeoPoint {
	points := make([]GeoPoint, 0, len(ls))
	for _, p := range ls {
		points = append(points, FromOrb(p))
	}
	return points
}

// RingsFromOrb converts an orb.Polygon to rings of GeoPoints.
func RingsFromOrb(poly orb.Polygon) [][]GeoPoint {
	rings := make([][]GeoPoint, 0, len(poly))
	for _, r := range poly {
		rings = append(rings, PathFromOrb(r))
	}
	return rings
}
