package mapctl

import (
	"time"

	"github.com/woozymasta/mapkit/internal/annotation"
	"github.com/woozymasta/mapkit/internal/engine"
	"github.com/woozymasta/mapkit/internal/geo"
	"github.com/woozymasta/mapkit/internal/metrics"

	"github.com/rs/zerolog/log"
)

// doubleTapZoomDuration is the zoom-in animation of a double tap.
const doubleTapZoomDuration = 300 * time.Millisecond

// ResolveFeature maps feature pick properties to a polyline or polygon.
// The "id" property is checked against polylines first.
func (c *Controller) ResolveFeature(props map[string]string) annotation.Shape {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg.resolveFeature(props)
}

// ResolveMarker maps a marker handle to its marker.
func (c *Controller) ResolveMarker(h engine.Handle) *annotation.Marker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg.resolveMarker(h)
}

// SetPickRadius sets the hit test radius in pixels.
func (c *Controller) SetPickRadius(px float64) error {
	if err := c.checkDisposed(); err != nil {
		return err
	}
	c.post(func() { _ = c.native("set_pick_radius", c.eng.SetPickRadius(px)) })
	return nil
}

// PickMarker queues a marker pick at (x, y). A hit is reported to the marker
// click listener, if one is set when the result arrives.
func (c *Controller) PickMarker(x, y float64) error {
	if err := c.checkDisposed(); err != nil {
		return err
	}
	c.post(func() { c.pickMarker(x, y) })
	return nil
}

// PickFeature queues a feature pick at (x, y). A hit is reported to the
// polyline or polygon click listener.
func (c *Controller) PickFeature(x, y float64) error {
	if err := c.checkDisposed(); err != nil {
		return err
	}
	c.post(func() { c.pickFeature(x, y) })
	return nil
}

// HandleTap picks markers, then features; a miss dismisses the info popup
// and reports the tapped position to the map click listener.
func (c *Controller) HandleTap(x, y float64) error {
	if err := c.checkDisposed(); err != nil {
		return err
	}
	c.post(func() {
		if c.pickMarker(x, y) || c.pickFeature(x, y) {
			return
		}

		c.mu.Lock()
		c.info = nil
		listener := c.on.mapClick
		c.mu.Unlock()
		if listener == nil {
			return
		}
		if p, ok := c.eng.ScreenToGeo(x, y); ok {
			c.dispatch(func() { listener(p) })
		}
	})
	return nil
}

// HandleDoubleTap zooms in one level around the current center.
func (c *Controller) HandleDoubleTap(x, y float64) error {
	if err := c.checkDisposed(); err != nil {
		return err
	}
	ease := c.defaultEase()
	c.post(func() {
		z := c.eng.Zoom() + 1
		if z > geo.MaxZoom {
			z = geo.MaxZoom
		}
		_ = c.native("set_zoom_eased", c.eng.SetZoomEased(z, doubleTapZoomDuration, ease))

		c.mu.Lock()
		listener := c.on.doubleClick
		c.mu.Unlock()
		if listener == nil {
			return
		}
		if p, ok := c.eng.ScreenToGeo(x, y); ok {
			c.dispatch(func() { listener(p) })
		}
	})
	return nil
}

// pickMarker runs on the render looper and reports whether a marker was hit.
func (c *Controller) pickMarker(x, y float64) bool {
	h, err := c.eng.PickMarker(x, y)
	if c.native("pick_marker", err) != nil {
		return false
	}

	c.mu.Lock()
	m := c.reg.resolveMarker(h)
	listener := c.on.markerClick
	if m != nil && m.HasInfo() {
		c.info = m
	}
	c.mu.Unlock()

	metrics.ObservePick("marker", m != nil)
	if m == nil {
		return false
	}

	log.Trace().Str("map", c.name).Int64("handle", int64(h)).Str("id", m.ID()).Msg("Marker picked")
	if listener != nil {
		c.dispatch(func() { listener(m) })
	}
	return true
}

// pickFeature runs on the render looper and reports whether a shape was hit.
func (c *Controller) pickFeature(x, y float64) bool {
	props, err := c.eng.PickFeature(x, y)
	if c.native("pick_feature", err) != nil {
		return false
	}

	c.mu.Lock()
	s := c.reg.resolveFeature(props)
	on := c.on
	c.mu.Unlock()

	metrics.ObservePick("feature", s != nil)
	if s == nil {
		return false
	}

	switch v := s.(type) {
	case *annotation.Polyline:
		if on.polylineClick != nil {
			c.dispatch(func() { on.polylineClick(v) })
		}
	case *annotation.Polygon:
		if on.polygonClick != nil {
			c.dispatch(func() { on.polygonClick(v) })
		}
	}
	return true
}

// Pick resolves the annotation under (x, y) synchronously, markers first.
// It returns nil when nothing is hit.
func (c *Controller) Pick(x, y float64) (annotation.Annotation, error) {
	return await(c, func() (annotation.Annotation, error) {
		h, err := c.eng.PickMarker(x, y)
		if c.native("pick_marker", err) != nil {
			return nil, err
		}
		if m := c.ResolveMarker(h); m != nil {
			return m, nil
		}
		props, err := c.eng.PickFeature(x, y)
		if c.native("pick_feature", err) != nil {
			return nil, err
		}
		if s := c.ResolveFeature(props); s != nil {
			return s, nil
		}
		return nil, nil
	})
}

// InfoMarker returns the marker whose info popup is open.
func (c *Controller) InfoMarker() *annotation.Marker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

// ShowInfo opens the info popup of m, closing any other one.
func (c *Controller) ShowInfo(m *annotation.Marker) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(); err != nil {
		return err
	}
	if _, ok := c.reg.markerHandle(c, m); !ok {
		return annotation.ErrNotBound
	}
	c.info = m
	return nil
}

// DismissInfo implements annotation.Map.
func (c *Controller) DismissInfo(a annotation.Annotation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.info != nil && annotation.Annotation(c.info) == a {
		c.info = nil
	}
}

// ClickInfo reports a click on the open info popup to the info click listener.
func (c *Controller) ClickInfo() {
	c.mu.Lock()
	m := c.info
	listener := c.on.infoClick
	c.mu.Unlock()

	if m != nil && listener != nil {
		c.dispatch(func() { listener(m) })
	}
}

// checkDisposed is checkLocked for callers not holding mu.
func (c *Controller) checkDisposed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkLocked()
}
