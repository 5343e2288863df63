package engine

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"slices"
	"time"

	"github.com/woozymasta/mapkit/internal/geo"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

type cameraState struct {
	position   geo.GeoPoint
	zoom       float64
	rotation   float64
	tilt       float64
	cameraType CameraType
	lastEase   EaseType
	lastEaseD  time.Duration
}

func (m *Memory) setCamera(op string, fn func(c *cameraState)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call(op); err != nil {
		return err
	}
	fn(&m.camera)
	return nil
}

// SetPosition implements CameraEngine.
func (m *Memory) SetPosition(p geo.GeoPoint) error {
	return m.setCamera("set_position", func(c *cameraState) { c.position = p })
}

// SetPositionEased implements CameraEngine.
func (m *Memory) SetPositionEased(p geo.GeoPoint, d time.Duration, ease EaseType) error {
	return m.setCamera("set_position_eased", func(c *cameraState) {
		c.position, c.lastEase, c.lastEaseD = p, ease, d
	})
}

// Position implements CameraEngine.
func (m *Memory) Position() geo.GeoPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.camera.position
}

// SetZoom implements CameraEngine.
func (m *Memory) SetZoom(z float64) error {
	return m.setCamera("set_zoom", func(c *cameraState) { c.zoom = z })
}

// SetZoomEased implements CameraEngine.
func (m *Memory) SetZoomEased(z float64, d time.Duration, ease EaseType) error {
	return m.setCamera("set_zoom_eased", func(c *cameraState) {
		c.zoom, c.lastEase, c.lastEaseD = z, ease, d
	})
}

// Zoom implements CameraEngine.
func (m *Memory) Zoom() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.camera.zoom
}

// SetRotation implements CameraEngine.
func (m *Memory) SetRotation(radians float64) error {
	return m.setCamera("set_rotation", func(c *cameraState) { c.rotation = radians })
}

// SetRotationEased implements CameraEngine.
func (m *Memory) SetRotationEased(radians float64, d time.Duration, ease EaseType) error {
	return m.setCamera("set_rotation_eased", func(c *cameraState) {
		c.rotation, c.lastEase, c.lastEaseD = radians, ease, d
	})
}

// Rotation implements CameraEngine.
func (m *Memory) Rotation() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.camera.rotation
}

// SetTilt implements CameraEngine.
func (m *Memory) SetTilt(radians float64) error {
	return m.setCamera("set_tilt", func(c *cameraState) { c.tilt = radians })
}

// SetTiltEased implements CameraEngine.
func (m *Memory) SetTiltEased(radians float64, d time.Duration, ease EaseType) error {
	return m.setCamera("set_tilt_eased", func(c *cameraState) {
		c.tilt, c.lastEase, c.lastEaseD = radians, ease, d
	})
}

// Tilt implements CameraEngine.
func (m *Memory) Tilt() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.camera.tilt
}

// SetCameraType implements CameraEngine.
func (m *Memory) SetCameraType(t CameraType) error {
	return m.setCamera("set_camera_type", func(c *cameraState) { c.cameraType = t })
}

// CameraType implements CameraEngine.
func (m *Memory) CameraType() CameraType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.camera.cameraType
}

// LastEase returns the curve and duration of the latest eased camera change.
func (m *Memory) LastEase() (EaseType, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.camera.lastEase, m.camera.lastEaseD
}

// Resize implements CameraEngine.
func (m *Memory) Resize(width, height int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("resize"); err != nil {
		return err
	}
	m.viewport = geo.Viewport{Width: float64(width), Height: float64(height)}
	return nil
}

// Viewport implements CameraEngine.
func (m *Memory) Viewport() geo.Viewport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewport
}

// ScreenToGeo implements CameraEngine. Rotation and tilt are ignored.
func (m *Memory) ScreenToGeo(x, y float64) (geo.GeoPoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screenToGeo(x, y)
}

// GeoToScreen implements CameraEngine. Rotation and tilt are ignored.
func (m *Memory) GeoToScreen(p geo.GeoPoint) (float64, float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.geoToScreen(p)
}

func (m *Memory) screenToGeo(x, y float64) (geo.GeoPoint, bool) {
	if m.viewport.Width <= 0 || m.viewport.Height <= 0 {
		return geo.GeoPoint{}, false
	}
	scale := geo.WorldScale(m.camera.zoom)
	cx, cy := geo.Project(m.camera.position)
	wx := cx + (x-m.viewport.Width/2)/scale
	wy := cy + (y-m.viewport.Height/2)/scale
	if wy < 0 || wy > 1 {
		return geo.GeoPoint{}, false
	}
	return geo.Unproject(wx, wy), true
}

func (m *Memory) geoToScreen(p geo.GeoPoint) (float64, float64, bool) {
	if m.viewport.Width <= 0 || m.viewport.Height <= 0 {
		return 0, 0, false
	}
	scale := geo.WorldScale(m.camera.zoom)
	cx, cy := geo.Project(m.camera.position)
	px, py := geo.Project(p)
	x := (px-cx)*scale + m.viewport.Width/2
	y := (py-cy)*scale + m.viewport.Height/2
	return x, y, x >= 0 && y >= 0 && x <= m.viewport.Width && y <= m.viewport.Height
}

// SetPickRadius implements PickEngine.
func (m *Memory) SetPickRadius(px float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("set_pick_radius"); err != nil {
		return err
	}
	m.pickRadius = px
	return nil
}

// pickItem is an R-tree entry for either a marker or a feature.
type pickItem struct {
	bound  orb.Bound
	marker Handle
	order  int
	feat   *Feature
}

// Bounds implements rtreego.Spatial.
func (p *pickItem) Bounds() rtreego.Rect {
	point := rtreego.Point{p.bound.Min.Lon(), p.bound.Min.Lat()}

	// R-tree requires non-zero dimensions
	const epsilon = 1e-9
	lonLength := math.Max(p.bound.Max.Lon()-p.bound.Min.Lon(), epsilon)
	latLength := math.Max(p.bound.Max.Lat()-p.bound.Min.Lat(), epsilon)

	rect, _ := rtreego.NewRect(point, []float64{lonLength, latLength})
	return rect
}

// pickRect converts the screen pick radius around (x, y) to a geographic
// query rectangle. Caller holds mu.
func (m *Memory) pickRect(x, y float64) (orb.Point, rtreego.Rect, bool) {
	center, ok := m.screenToGeo(x, y)
	if !ok {
		return orb.Point{}, rtreego.Rect{}, false
	}
	r := m.pickRadius
	sw, ok1 := m.screenToGeo(x-r, y+r)
	ne, ok2 := m.screenToGeo(x+r, y-r)
	if !ok1 || !ok2 {
		sw, ne = center, center
	}

	lengths := []float64{
		math.Max(ne.Lon-sw.Lon, 1e-9),
		math.Max(ne.Lat-sw.Lat, 1e-9),
	}
	rect, _ := rtreego.NewRect(rtreego.Point{sw.Lon, sw.Lat}, lengths)
	return geo.ToOrb(center), rect, true
}

// PickMarker implements PickEngine. The closest visible marker wins, higher
// draw order breaking ties.
func (m *Memory) PickMarker(x, y float64) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("pick_marker"); err != nil {
		return InvalidHandle, err
	}

	at, rect, ok := m.pickRect(x, y)
	if !ok {
		return InvalidHandle, nil
	}

	tree := rtreego.NewTree(2, 25, 50)
	for h, s := range m.markers {
		if !s.Visible {
			continue
		}
		p := geo.ToOrb(s.Point)
		tree.Insert(&pickItem{bound: p.Bound(), marker: h, order: s.DrawOrder})
	}
	if tree.Size() == 0 {
		return InvalidHandle, nil
	}

	best := InvalidHandle
	bestDist, bestOrder := math.Inf(1), math.MinInt
	for _, hit := range tree.SearchIntersect(rect) {
		item := hit.(*pickItem)
		d := planar.Distance(at, item.bound.Min)
		if d < bestDist || (d == bestDist && item.order > bestOrder) ||
			(d == bestDist && item.order == bestOrder && item.marker > best) {
			best, bestDist, bestOrder = item.marker, d, item.order
		}
	}
	return best, nil
}

// PickFeature implements PickEngine. Polygons must contain the pick point;
// other geometries match when their bounds intersect the pick radius.
func (m *Memory) PickFeature(x, y float64) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("pick_feature"); err != nil {
		return nil, err
	}

	props := make(map[string]string)
	at, rect, ok := m.pickRect(x, y)
	if !ok {
		return props, nil
	}

	tree := rtreego.NewTree(2, 25, 50)
	order := 0
	for _, h := range sortedHandles(m.sources) {
		s := m.sources[h]
		for i := range s.Features {
			f := &s.Features[i]
			tree.Insert(&pickItem{bound: f.Geometry.Bound(), order: order, feat: f})
			order++
		}
	}
	if tree.Size() == 0 {
		return props, nil
	}

	var best *pickItem
	for _, hit := range tree.SearchIntersect(rect) {
		item := hit.(*pickItem)
		if !featureHit(item.feat.Geometry, at) {
			continue
		}
		// the latest added feature is drawn on top
		if best == nil || item.order > best.order {
			best = item
		}
	}
	if best != nil {
		for k, v := range best.feat.Properties {
			props[k] = v
		}
	}
	return props, nil
}

func featureHit(g orb.Geometry, at orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, at)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, at)
	default:
		return true
	}
}

func sortedHandles[V any](in map[Handle]V) []Handle {
	out := handleKeys(in)
	slices.Sort(out)
	return out
}

// Capture implements Engine. It rasterizes visible markers and feature
// vertices onto a flat background.
func (m *Memory) Capture() (*image.RGBA, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("capture"); err != nil {
		return nil, err
	}

	w, h := int(m.viewport.Width), int(m.viewport.Height)
	if w <= 0 || h <= 0 {
		w, h = 256, 256
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 0xee, G: 0xee, B: 0xe6, A: 0xff}}, image.Point{}, draw.Src)

	dot := func(p orb.Point, size int, c color.Color) {
		x, y, ok := m.geoToScreen(geo.FromOrb(p))
		if !ok {
			return
		}
		r := image.Rect(int(x)-size, int(y)-size, int(x)+size+1, int(y)+size+1)
		draw.Draw(img, r.Intersect(img.Bounds()), &image.Uniform{C: c}, image.Point{}, draw.Src)
	}

	featureColor := color.RGBA{R: 0x33, G: 0x66, B: 0xcc, A: 0xff}
	for _, s := range m.sources {
		for _, f := range s.Features {
			eachPoint(f.Geometry, func(p orb.Point) { dot(p, 1, featureColor) })
		}
	}

	markerColor := color.RGBA{R: 0xd0, G: 0x20, B: 0x20, A: 0xff}
	for _, s := range m.markers {
		if s.Visible {
			dot(geo.ToOrb(s.Point), 3, markerColor)
		}
	}

	return img, nil
}

func eachPoint(g orb.Geometry, fn func(orb.Point)) {
	switch geom := g.(type) {
	case orb.Point:
		fn(geom)
	case orb.MultiPoint:
		for _, p := range geom {
			fn(p)
		}
	case orb.LineString:
		for _, p := range geom {
			fn(p)
		}
	case orb.MultiLineString:
		for _, ls := range geom {
			eachPoint(ls, fn)
		}
	case orb.Ring:
		for _, p := range geom {
			fn(p)
		}
	case orb.Polygon:
		for _, r := range geom {
			eachPoint(r, fn)
		}
	case orb.MultiPolygon:
		for _, p := range geom {
			eachPoint(p, fn)
		}
	}
}
