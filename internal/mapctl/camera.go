package mapctl

import (
	"fmt"
	"time"

	"github.com/woozymasta/mapkit/internal/engine"
	"github.com/woozymasta/mapkit/internal/geo"
)

// recenterDuration is the animation of Recenter.
const recenterDuration = 200 * time.Millisecond

// DefaultBoundsPadding is the padding fraction used by callers that do not care.
const DefaultBoundsPadding = 0.05

// SetCenter moves the camera, animated when d > 0.
func (c *Controller) SetCenter(p geo.GeoPoint, d time.Duration) error {
	if err := geo.Validate(p); err != nil {
		return err
	}
	c.mu.Lock()
	if err := c.checkLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.lastCenter = p
	ease := c.ease
	c.mu.Unlock()

	c.moveTo(p, d, ease)
	return nil
}

// Recenter animates back to the last center set with SetCenter or SetBounds.
func (c *Controller) Recenter() error {
	c.mu.Lock()
	if err := c.checkLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	p, ease := c.lastCenter, c.ease
	c.mu.Unlock()

	c.moveTo(p, recenterDuration, ease)
	return nil
}

func (c *Controller) moveTo(p geo.GeoPoint, d time.Duration, ease engine.EaseType) {
	c.post(func() {
		if d > 0 {
			_ = c.native("set_position_eased", c.eng.SetPositionEased(p, d, ease))
			return
		}
		_ = c.native("set_position", c.eng.SetPosition(p))
	})
}

// Center returns the camera position.
func (c *Controller) Center() geo.GeoPoint { return c.eng.Position() }

// SetZoom changes the zoom level, animated when d > 0.
func (c *Controller) SetZoom(z float64, d time.Duration) error {
	if z < 0 || z > geo.MaxZoom {
		return fmt.Errorf("zoom %.2f out of range [0, %.0f]", z, geo.MaxZoom)
	}
	if err := c.checkDisposed(); err != nil {
		return err
	}
	ease := c.defaultEase()
	c.post(func() {
		if d > 0 {
			_ = c.native("set_zoom_eased", c.eng.SetZoomEased(z, d, ease))
			return
		}
		_ = c.native("set_zoom", c.eng.SetZoom(z))
	})
	return nil
}

// Zoom returns the zoom level.
func (c *Controller) Zoom() float64 { return c.eng.Zoom() }

// SetRotation rotates the camera (radians), animated when d > 0.
func (c *Controller) SetRotation(radians float64, d time.Duration) error {
	if err := c.checkDisposed(); err != nil {
		return err
	}
	ease := c.defaultEase()
	c.post(func() {
		if d > 0 {
			_ = c.native("set_rotation_eased", c.eng.SetRotationEased(radians, d, ease))
			return
		}
		_ = c.native("set_rotation", c.eng.SetRotation(radians))
	})
	return nil
}

// Rotation returns the camera rotation in radians.
func (c *Controller) Rotation() float64 { return c.eng.Rotation() }

// SetTilt tilts the camera (radians), animated when d > 0.
func (c *Controller) SetTilt(radians float64, d time.Duration) error {
	if err := c.checkDisposed(); err != nil {
		return err
	}
	ease := c.defaultEase()
	c.post(func() {
		if d > 0 {
			_ = c.native("set_tilt_eased", c.eng.SetTiltEased(radians, d, ease))
			return
		}
		_ = c.native("set_tilt", c.eng.SetTilt(radians))
	})
	return nil
}

// Tilt returns the camera tilt in radians.
func (c *Controller) Tilt() float64 { return c.eng.Tilt() }

// SetCameraType switches between perspective, isometric and flat.
func (c *Controller) SetCameraType(t engine.CameraType) error {
	if err := c.checkDisposed(); err != nil {
		return err
	}
	c.post(func() { _ = c.native("set_camera_type", c.eng.SetCameraType(t)) })
	return nil
}

// CameraType returns the camera type.
func (c *Controller) CameraType() engine.CameraType { return c.eng.CameraType() }

// SetEase changes the default ease of camera animations.
func (c *Controller) SetEase(e engine.EaseType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ease = e
}

// Resize changes the viewport size in pixels.
func (c *Controller) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid viewport %dx%d", width, height)
	}
	if err := c.checkDisposed(); err != nil {
		return err
	}
	c.post(func() { _ = c.native("resize", c.eng.Resize(width, height)) })
	return nil
}

// SetBounds fits the camera to b. padding is a fraction of the box size;
// offset shifts the resulting center in screen pixels.
func (c *Controller) SetBounds(b geo.Bounds, padding float64, d time.Duration, offset geo.Offset) error {
	if err := c.checkDisposed(); err != nil {
		return err
	}

	center, zoom, err := geo.FitBounds(b.Points(), c.eng.Viewport(), padding, offset, c.eng.Zoom())
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.lastCenter = center
	ease := c.ease
	c.mu.Unlock()

	c.post(func() {
		if d > 0 {
			_ = c.native("set_zoom_eased", c.eng.SetZoomEased(zoom, d, ease))
			_ = c.native("set_position_eased", c.eng.SetPositionEased(center, d, ease))
			return
		}
		_ = c.native("set_zoom", c.eng.SetZoom(zoom))
		_ = c.native("set_position", c.eng.SetPosition(center))
	})
	return nil
}

// ScreenToGeo converts a screen position to a geographic point.
func (c *Controller) ScreenToGeo(x, y float64) (geo.GeoPoint, bool) {
	return c.eng.ScreenToGeo(x, y)
}

// GeoToScreen converts a geographic point to a screen position; ok is false
// when the point is off screen.
func (c *Controller) GeoToScreen(p geo.GeoPoint) (x, y float64, ok bool) {
	return c.eng.GeoToScreen(p)
}
