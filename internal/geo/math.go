package geo

import "math"

const (
	// MaxLat is the latitude limit of the Web Mercator projection.
	MaxLat = 85.05112878

	// TileSize is the pixel size of a zoom-0 world.
	TileSize = 256.0

	// MaxZoom bounds zoom levels computed by FitBounds.
	MaxZoom = 22.0
)

// Project converts a WGS84 point to normalized Web Mercator world coordinates,
// both axes in [0..1], y growing southwards.
func Project(p GeoPoint) (x, y float64) {
	lat := p.Lat
	if lat > MaxLat {
		lat = MaxLat
	} else if lat < -MaxLat {
		lat = -MaxLat
	}

	x = (p.Lon + 180.0) / 360.0

	sinLat := math.Sin(lat * math.Pi / 180.0)
	y = 0.5 - math.Log((1+sinLat)/(1-sinLat))/(4*math.Pi)

	return x, y
}

// Unproject converts normalized Web Mercator world coordinates back to WGS84
// using the inverse Mercator projection.
func Unproject(x, y float64) GeoPoint {
	lon := x*360.0 - 180.0

	// y: [0..1] -> mercatorY: [PI..-PI]
	mercatorY := math.Pi - 2*math.Pi*y
	latRad := (2.0 * math.Atan(math.Exp(mercatorY))) - (math.Pi * 0.5)

	lat := latRad * (180.0 / math.Pi)
	if lat > MaxLat {
		lat = MaxLat
	} else if lat < -MaxLat {
		lat = -MaxLat
	}

	return GeoPoint{Lat: lat, Lon: lon}
}

// WorldScale returns the world size in pixels at zoom.
func WorldScale(zoom float64) float64 {
	return TileSize * math.Exp2(zoom)
}
