package engine

import (
	"fmt"
	"image"
	"maps"
	"sync"
	"time"

	"github.com/woozymasta/mapkit/internal/geo"

	"github.com/rs/zerolog/log"
)

// MarkerState is the engine-side state of a point marker.
type MarkerState struct {
	Point     geo.GeoPoint
	Style     string
	Bitmap    image.Rectangle
	DrawOrder int
	Visible   bool
	Eased     bool
	Ease      EaseType
	Duration  time.Duration
}

// SourceState is the engine-side state of a client data source.
type SourceState struct {
	Name             string
	GenerateCentroid bool
	Features         []Feature
	GeoJSON          [][]byte
}

// Memory is a headless Engine. It keeps every resource in memory, performs
// picks against an R-tree and loads scenes asynchronously on its own
// goroutine, discarding all markers on every successful load like the native
// renderer does. It counts calls per operation for inspection.
type Memory struct {
	mu sync.Mutex

	nextHandle Handle
	handleCap  int
	markers    map[Handle]*MarkerState
	sources    map[Handle]*SourceState

	scenes     map[string]string
	scene      map[string]any
	sceneSeq   int
	sceneReady SceneReadyFunc
	loadDelay  time.Duration
	pending    sync.WaitGroup

	camera     cameraState
	viewport   geo.Viewport
	pickRadius float64

	calls     map[string]int
	lateCalls int
	disposed  bool
}

// MemoryOption configures a Memory engine.
type MemoryOption func(*Memory)

// WithScene registers scene YAML under path so LoadScene can find it.
func WithScene(path, yaml string) MemoryOption {
	return func(m *Memory) {
		m.scenes[path] = yaml
	}
}

// WithLoadDelay delays every scene-ready callback.
func WithLoadDelay(d time.Duration) MemoryOption {
	return func(m *Memory) {
		m.loadDelay = d
	}
}

// WithHandleLimit caps the number of live handles; allocations beyond it fail
// with ErrResourceExhausted.
func WithHandleLimit(n int) MemoryOption {
	return func(m *Memory) {
		m.handleCap = n
	}
}

// WithViewport sets the initial viewport size.
func WithViewport(width, height int) MemoryOption {
	return func(m *Memory) {
		m.viewport = geo.Viewport{Width: float64(width), Height: float64(height)}
	}
}

// NewMemory creates a headless engine.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		markers:    make(map[Handle]*MarkerState),
		sources:    make(map[Handle]*SourceState),
		scenes:     make(map[string]string),
		calls:      make(map[string]int),
		viewport:   geo.Viewport{Width: 1024, Height: 768},
		pickRadius: 8,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Calls returns how many times op was invoked (e.g. "add_marker").
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// LateCalls returns how many calls arrived after Dispose.
func (m *Memory) LateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lateCalls
}

// Marker returns a copy of the marker state.
func (m *Memory) Marker(h Handle) (MarkerState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.markers[h]
	if !ok {
		return MarkerState{}, false
	}
	return *s, true
}

// MarkerHandles returns the live marker handles.
func (m *Memory) MarkerHandles() []Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return handleKeys(m.markers)
}

// Source returns a copy of the data source state.
func (m *Memory) Source(h Handle) (SourceState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[h]
	if !ok {
		return SourceState{}, false
	}
	cp := *s
	cp.Features = append([]Feature(nil), s.Features...)
	cp.GeoJSON = append([][]byte(nil), s.GeoJSON...)
	return cp, true
}

// SourceHandles returns the live data source handles.
func (m *Memory) SourceHandles() []Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return handleKeys(m.sources)
}

// Disposed reports whether Dispose was called.
func (m *Memory) Disposed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposed
}

// Wait blocks until every in-flight scene load has delivered its callback.
func (m *Memory) Wait() {
	m.pending.Wait()
}

// call records op and fails once the engine is disposed. Caller holds mu.
func (m *Memory) call(op string) error {
	m.calls[op]++
	if m.disposed {
		m.lateCalls++
		return fmt.Errorf("%w: map disposed", ErrInvalidHandle)
	}
	return nil
}

// allocate returns a fresh handle. Caller holds mu.
func (m *Memory) allocate() (Handle, error) {
	if m.handleCap > 0 && len(m.markers)+len(m.sources) >= m.handleCap {
		return InvalidHandle, ErrResourceExhausted
	}
	m.nextHandle++
	return m.nextHandle, nil
}

// AddMarker implements MarkerEngine.
func (m *Memory) AddMarker() (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("add_marker"); err != nil {
		return InvalidHandle, err
	}

	h, err := m.allocate()
	if err != nil {
		return InvalidHandle, err
	}
	m.markers[h] = &MarkerState{Visible: true}

	log.Trace().Int64("handle", int64(h)).Msg("Engine marker allocated")
	return h, nil
}

// RemoveMarker implements MarkerEngine.
func (m *Memory) RemoveMarker(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("remove_marker"); err != nil {
		return err
	}
	if _, ok := m.markers[h]; !ok {
		return fmt.Errorf("%w: marker %d", ErrInvalidHandle, h)
	}
	delete(m.markers, h)
	return nil
}

// RemoveAllMarkers implements MarkerEngine.
func (m *Memory) RemoveAllMarkers() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("remove_all_markers"); err != nil {
		return err
	}
	m.markers = make(map[Handle]*MarkerState)
	return nil
}

// marker looks up a live marker. Caller holds mu.
func (m *Memory) marker(op string, h Handle) (*MarkerState, error) {
	if err := m.call(op); err != nil {
		return nil, err
	}
	s, ok := m.markers[h]
	if !ok {
		return nil, fmt.Errorf("%w: marker %d", ErrInvalidHandle, h)
	}
	return s, nil
}

// SetMarkerStyle implements MarkerEngine.
func (m *Memory) SetMarkerStyle(h Handle, style string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.marker("set_marker_style", h)
	if err != nil {
		return err
	}
	s.Style = style
	return nil
}

// SetMarkerPoint implements MarkerEngine.
func (m *Memory) SetMarkerPoint(h Handle, p geo.GeoPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.marker("set_marker_point", h)
	if err != nil {
		return err
	}
	s.Point, s.Eased, s.Duration = p, false, 0
	return nil
}

// SetMarkerPointEased implements MarkerEngine. The headless engine jumps to
// the target immediately and records the requested easing.
func (m *Memory) SetMarkerPointEased(h Handle, p geo.GeoPoint, d time.Duration, ease EaseType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.marker("set_marker_point_eased", h)
	if err != nil {
		return err
	}
	s.Point, s.Eased, s.Ease, s.Duration = p, true, ease, d
	return nil
}

// SetMarkerBitmap implements MarkerEngine.
func (m *Memory) SetMarkerBitmap(h Handle, img *image.RGBA) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.marker("set_marker_bitmap", h)
	if err != nil {
		return err
	}
	if img == nil {
		s.Bitmap = image.Rectangle{}
		return nil
	}
	s.Bitmap = img.Bounds()
	return nil
}

// SetMarkerVisible implements MarkerEngine.
func (m *Memory) SetMarkerVisible(h Handle, visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.marker("set_marker_visible", h)
	if err != nil {
		return err
	}
	s.Visible = visible
	return nil
}

// SetMarkerDrawOrder implements MarkerEngine.
func (m *Memory) SetMarkerDrawOrder(h Handle, order int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.marker("set_marker_draw_order", h)
	if err != nil {
		return err
	}
	s.DrawOrder = order
	return nil
}

// AddDataSource implements SourceEngine. Names are not deduplicated here.
func (m *Memory) AddDataSource(name string, generateCentroid bool) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("add_data_source"); err != nil {
		return InvalidHandle, err
	}

	h, err := m.allocate()
	if err != nil {
		return InvalidHandle, err
	}
	m.sources[h] = &SourceState{Name: name, GenerateCentroid: generateCentroid}

	log.Trace().Int64("handle", int64(h)).Str("name", name).Msg("Engine data source allocated")
	return h, nil
}

// source looks up a live data source. Caller holds mu.
func (m *Memory) source(op string, h Handle) (*SourceState, error) {
	if err := m.call(op); err != nil {
		return nil, err
	}
	s, ok := m.sources[h]
	if !ok {
		return nil, fmt.Errorf("%w: data source %d", ErrInvalidHandle, h)
	}
	return s, nil
}

// RemoveDataSource implements SourceEngine.
func (m *Memory) RemoveDataSource(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.source("remove_data_source", h); err != nil {
		return err
	}
	delete(m.sources, h)
	return nil
}

// ClearDataSource implements SourceEngine.
func (m *Memory) ClearDataSource(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.source("clear_data_source", h)
	if err != nil {
		return err
	}
	s.Features = nil
	s.GeoJSON = nil
	return nil
}

// AddFeature implements SourceEngine.
func (m *Memory) AddFeature(source Handle, f Feature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.source("add_feature", source)
	if err != nil {
		return err
	}
	if f.Geometry == nil {
		return fmt.Errorf("add feature: nil geometry")
	}
	f.Properties = maps.Clone(f.Properties)
	s.Features = append(s.Features, f)
	return nil
}

// AddGeoJSON implements SourceEngine. The payload is stored as-is and its
// features are indexed for picking.
func (m *Memory) AddGeoJSON(source Handle, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.source("add_geojson", source)
	if err != nil {
		return err
	}

	features, err := parseGeoJSONFeatures(data)
	if err != nil {
		return fmt.Errorf("add geojson: %w", err)
	}
	s.GeoJSON = append(s.GeoJSON, append([]byte(nil), data...))
	s.Features = append(s.Features, features...)
	return nil
}

// Dispose implements Engine.
func (m *Memory) Dispose() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["dispose"]++
	if m.disposed {
		return fmt.Errorf("%w: map already disposed", ErrInvalidHandle)
	}
	m.disposed = true
	m.markers = make(map[Handle]*MarkerState)
	m.sources = make(map[Handle]*SourceState)
	return nil
}

func handleKeys[V any](in map[Handle]V) []Handle {
	out := make([]Handle, 0, len(in))
	for h := range in {
		out = append(out, h)
	}
	return out
}
