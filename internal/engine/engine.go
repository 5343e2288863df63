// Package engine defines the handle-based command interface of the native map
// renderer and a headless in-memory implementation of it.
//
// Every scene resource (marker, client data source) is addressed by an integer
// Handle. Handles are plain identifiers: the engine may invalidate them at any
// time (markers are discarded on every scene reload) and callers must treat
// ErrInvalidHandle as a normal outcome.
package engine

import (
	"image"
	"time"

	"github.com/woozymasta/mapkit/internal/geo"

	"github.com/paulmach/orb"
)

// Handle identifies a native scene resource. Values <= 0 are never valid.
type Handle int64

// InvalidHandle is the zero handle.
const InvalidHandle Handle = 0

// Valid reports whether h may reference a live resource.
func (h Handle) Valid() bool {
	return h > 0
}

// SceneUpdate overrides one value of the loaded scene, addressed by a dotted path.
type SceneUpdate struct {
	Path  string `json:"path" yaml:"path"`
	Value string `json:"value" yaml:"value"`
}

// SceneSource selects what to load: a scene file path, or inline YAML
// resolved against ResourceRoot.
type SceneSource struct {
	Path         string
	YAML         string
	ResourceRoot string
}

// SceneReadyFunc receives the completion of a scene load or update. It is
// invoked on the engine's render thread; err is nil on success.
type SceneReadyFunc func(sceneID int, err *SceneError)

// Feature is a geometry pushed into a client data source.
type Feature struct {
	Geometry   orb.Geometry
	Properties map[string]string
}

// MarkerEngine manages point markers.
type MarkerEngine interface {
	AddMarker() (Handle, error)
	RemoveMarker(h Handle) error
	RemoveAllMarkers() error
	SetMarkerStyle(h Handle, style string) error
	SetMarkerPoint(h Handle, p geo.GeoPoint) error
	SetMarkerPointEased(h Handle, p geo.GeoPoint, d time.Duration, ease EaseType) error
	SetMarkerBitmap(h Handle, img *image.RGBA) error
	SetMarkerVisible(h Handle, visible bool) error
	SetMarkerDrawOrder(h Handle, order int) error
}

// SourceEngine manages client data sources ("layers" of features).
type SourceEngine interface {
	AddDataSource(name string, generateCentroid bool) (Handle, error)
	RemoveDataSource(h Handle) error
	ClearDataSource(h Handle) error
	AddFeature(source Handle, f Feature) error
	AddGeoJSON(source Handle, data []byte) error
}

// SceneEngine loads and updates scenes asynchronously.
type SceneEngine interface {
	// LoadScene starts loading src and returns the new scene id.
	LoadScene(src SceneSource, updates []SceneUpdate) (int, error)
	// UpdateScene applies updates to the current scene and returns the new scene id.
	UpdateScene(updates []SceneUpdate) (int, error)
	SetSceneReadyFunc(fn SceneReadyFunc)
}

// CameraEngine controls the view. Eased setters are fire-and-forget: a later
// request supersedes the running interpolation.
type CameraEngine interface {
	SetPosition(p geo.GeoPoint) error
	SetPositionEased(p geo.GeoPoint, d time.Duration, ease EaseType) error
	Position() geo.GeoPoint
	SetZoom(z float64) error
	SetZoomEased(z float64, d time.Duration, ease EaseType) error
	Zoom() float64
	SetRotation(radians float64) error
	SetRotationEased(radians float64, d time.Duration, ease EaseType) error
	Rotation() float64
	SetTilt(radians float64) error
	SetTiltEased(radians float64, d time.Duration, ease EaseType) error
	Tilt() float64
	SetCameraType(t CameraType) error
	CameraType() CameraType
	Resize(width, height int) error
	Viewport() geo.Viewport
	ScreenToGeo(x, y float64) (geo.GeoPoint, bool)
	GeoToScreen(p geo.GeoPoint) (x, y float64, ok bool)
}

// PickEngine answers hit tests at screen coordinates.
type PickEngine interface {
	SetPickRadius(px float64) error
	// PickFeature returns the properties of the feature under (x, y), or an empty map.
	PickFeature(x, y float64) (map[string]string, error)
	// PickMarker returns the marker under (x, y), or InvalidHandle.
	PickMarker(x, y float64) (Handle, error)
}

// Engine is the full native renderer contract used by a map controller.
type Engine interface {
	MarkerEngine
	SourceEngine
	SceneEngine
	CameraEngine
	PickEngine

	// Capture returns the current frame.
	Capture() (*image.RGBA, error)
	// Dispose releases the whole map context; every handle becomes invalid.
	Dispose() error
}
