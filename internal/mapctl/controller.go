// Package mapctl implements the map controller: the binding registry between
// annotations and native handles, the scene lifecycle, pick dispatch and the
// camera, on top of an engine.Engine.
//
// Two goroutines serve each controller. The render looper issues every native
// call except handle allocation, which is synchronous; the UI looper runs
// every listener. Public methods may be called from any goroutine.
package mapctl

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/woozymasta/mapkit/internal/annotation"
	"github.com/woozymasta/mapkit/internal/config"
	"github.com/woozymasta/mapkit/internal/engine"
	"github.com/woozymasta/mapkit/internal/geo"
	"github.com/woozymasta/mapkit/internal/metrics"

	"github.com/rs/zerolog/log"
)

// ErrDisposed is returned by every call made after Dispose.
var ErrDisposed = fmt.Errorf("%w: map controller disposed", engine.ErrInvalidHandle)

// Listener types. All of them run on the UI looper.
type (
	MarkerClickFunc   func(m *annotation.Marker)
	PolylineClickFunc func(p *annotation.Polyline)
	PolygonClickFunc  func(p *annotation.Polygon)
	MapClickFunc      func(p geo.GeoPoint)
	InfoClickFunc     func(m *annotation.Marker)
	SceneReadyFunc    func(sceneID int, err *engine.SceneError)
)

type listeners struct {
	markerClick   MarkerClickFunc
	polylineClick PolylineClickFunc
	polygonClick  PolygonClickFunc
	mapClick      MapClickFunc
	doubleClick   MapClickFunc
	infoClick     InfoClickFunc
	sceneReady    SceneReadyFunc
}

// Stats is a snapshot of the registry.
type Stats struct {
	Markers     int        `json:"markers"`
	Polylines   int        `json:"polylines"`
	Polygons    int        `json:"polygons"`
	DataSources int        `json:"data_sources"`
	Scene       SceneState `json:"scene"`
	SceneID     int        `json:"scene_id"`
	Disposed    bool       `json:"disposed"`
}

// Controller is the façade of one map. It implements annotation.Map.
type Controller struct {
	name   string
	apiKey string
	eng    engine.Engine

	render *looper
	ui     *looper

	geocoder   Geocoder
	directions Router

	mu         sync.Mutex
	reg        *registry
	layers     []*annotation.Layer
	scene      sceneMachine
	on         listeners
	info       *annotation.Marker
	ease       engine.EaseType
	lastCenter geo.GeoPoint
	disposed   bool

	disposeOnce sync.Once
}

// Option configures a Controller.
type Option func(*Controller)

// WithName names the controller in logs.
func WithName(name string) Option {
	return func(c *Controller) { c.name = name }
}

// WithEase sets the default ease type of camera animations.
func WithEase(e engine.EaseType) Option {
	return func(c *Controller) { c.ease = e }
}

// WithGeocoder sets the geocoding collaborator.
func WithGeocoder(g Geocoder) Option {
	return func(c *Controller) { c.geocoder = g }
}

// WithDirections sets the directions collaborator.
func WithDirections(r Router) Option {
	return func(c *Controller) { c.directions = r }
}

// New creates a controller over eng. The API key is required.
func New(apiKey string, eng engine.Engine, opts ...Option) (*Controller, error) {
	if apiKey == "" {
		return nil, config.ErrMissingAPIKey
	}
	if eng == nil {
		return nil, errors.New("nil engine")
	}

	c := &Controller{
		name:   "map",
		apiKey: apiKey,
		eng:    eng,
		reg:    newRegistry(),
		ease:   engine.DefaultEase,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.render = newLooper(c.name + "/render")
	c.ui = newLooper(c.name + "/ui")
	eng.SetSceneReadyFunc(c.onSceneReady)

	log.Debug().Str("map", c.name).Msg("Map controller created")
	return c, nil
}

// Name returns the controller name.
func (c *Controller) Name() string { return c.name }

// APIKey returns the key passed to New.
func (c *Controller) APIKey() string { return c.apiKey }

// Flush waits until every queued native call and every queued listener has run.
func (c *Controller) Flush() {
	c.render.Sync()
	c.ui.Sync()
}

// native records the outcome of a native call and logs failures that
// cannot be returned to a caller.
func (c *Controller) native(op string, err error) error {
	metrics.ObserveEngine(op, err)
	if err != nil {
		log.Warn().Err(err).Str("map", c.name).Str("op", op).Msg("Native call failed")
	}
	return err
}

// post enqueues fn on the render looper unless the controller is disposed.
func (c *Controller) post(fn func()) {
	if !c.render.Post(fn) {
		log.Trace().Str("map", c.name).Msg("Render job dropped after dispose")
	}
}

// await runs fn on the render looper and waits for its result.
func await[T any](c *Controller, fn func() (T, error)) (T, error) {
	var zero T
	if err := c.checkDisposed(); err != nil {
		return zero, err
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	if !c.render.Post(func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("render job panicked: %v", r)}
			}
		}()
		v, err := fn()
		done <- result{v: v, err: err}
	}) {
		return zero, ErrDisposed
	}

	r := <-done
	return r.v, r.err
}

// dispatch runs fn on the UI looper.
func (c *Controller) dispatch(fn func()) {
	c.ui.Post(fn)
}

// checkLocked returns ErrDisposed after disposal. Caller holds mu.
func (c *Controller) checkLocked() error {
	if c.disposed {
		return ErrDisposed
	}
	return nil
}

// Listener setters.

// SetMarkerClickListener sets or clears (nil) the marker pick listener.
func (c *Controller) SetMarkerClickListener(fn MarkerClickFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.on.markerClick = fn
}

// SetPolylineClickListener sets or clears the polyline pick listener.
func (c *Controller) SetPolylineClickListener(fn PolylineClickFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.on.polylineClick = fn
}

// SetPolygonClickListener sets or clears the polygon pick listener.
func (c *Controller) SetPolygonClickListener(fn PolygonClickFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.on.polygonClick = fn
}

// SetMapClickListener receives taps that hit no annotation.
func (c *Controller) SetMapClickListener(fn MapClickFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.on.mapClick = fn
}

// SetMapDoubleClickListener receives double taps.
func (c *Controller) SetMapDoubleClickListener(fn MapClickFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.on.doubleClick = fn
}

// SetInfoClickListener receives clicks on the info popup.
func (c *Controller) SetInfoClickListener(fn InfoClickFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.on.infoClick = fn
}

// SetSceneReadyListener receives scene load and update completions.
func (c *Controller) SetSceneReadyListener(fn SceneReadyFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.on.sceneReady = fn
}

// Stats returns a snapshot of the registry.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Markers:     len(c.reg.markers),
		Polylines:   len(c.reg.polylines),
		Polygons:    len(c.reg.polygons),
		DataSources: len(c.reg.sources),
		Scene:       c.scene.state,
		SceneID:     c.scene.latest,
		Disposed:    c.disposed,
	}
}

// Annotations returns every bound annotation: markers first, then polylines
// and polygons, each ordered by handle.
func (c *Controller) Annotations() []annotation.Annotation {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]annotation.Annotation, 0, c.reg.len())
	for _, h := range sortedKeys(c.reg.markers) {
		out = append(out, c.reg.markers[h])
	}
	for _, table := range []map[engine.Handle]*shapeEntry{c.reg.polylines, c.reg.polygons} {
		for _, h := range sortedKeys(table) {
			out = append(out, table[h].shape)
		}
	}
	return out
}

// Dispose releases every client data source and then the whole native map
// context on the render looper, and stops both loopers. Later calls are no-ops.
// It must not be called from a listener.
func (c *Controller) Dispose() {
	c.disposeOnce.Do(func() {
		c.mu.Lock()
		c.disposed = true
		sources := make([]*sourceEntry, 0, len(c.reg.sources))
		for _, src := range c.reg.sources {
			sources = append(sources, src)
		}
		markers := c.reg.markers
		shapes := make([]*shapeEntry, 0, len(c.reg.polylines)+len(c.reg.polygons))
		for _, e := range c.reg.polylines {
			shapes = append(shapes, e)
		}
		for _, e := range c.reg.polygons {
			shapes = append(shapes, e)
		}
		c.reg = newRegistry()
		c.info = nil
		layers := c.layers
		c.layers = nil

		// the release must stay the last render job: later posts are rejected
		c.render.Post(func() {
			for _, src := range sources {
				_ = c.native("remove_data_source", c.eng.RemoveDataSource(src.handle))
			}
			_ = c.native("dispose", c.eng.Dispose())
		})
		c.render.Shutdown()
		c.mu.Unlock()

		for _, m := range markers {
			m.Forget(c)
			metrics.AnnotationsBound.WithLabelValues(annotation.KindMarker.String()).Dec()
		}
		for _, e := range shapes {
			e.shape.Forget(c)
			metrics.AnnotationsBound.WithLabelValues(e.shape.Kind().String()).Dec()
		}
		for _, l := range layers {
			l.Detach(c)
		}

		c.render.Close()
		c.ui.Close()

		log.Info().Str("map", c.name).Int("data_sources", len(sources)).Msg("Map controller disposed")
	})
}

// Disposed reports whether Dispose was called.
func (c *Controller) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// defaultEase returns the ease type of camera animations.
func (c *Controller) defaultEase() engine.EaseType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ease
}

func sortedKeys[V any](in map[engine.Handle]V) []engine.Handle {
	out := make([]engine.Handle, 0, len(in))
	for h := range in {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// durationOrZero clamps negative durations.
func durationOrZero(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
