package mapctl

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/woozymasta/mapkit/internal/annotation"
	"github.com/woozymasta/mapkit/internal/config"
	"github.com/woozymasta/mapkit/internal/directions"
	"github.com/woozymasta/mapkit/internal/engine"
	"github.com/woozymasta/mapkit/internal/geo"
	"github.com/woozymasta/mapkit/internal/geocoder"
)

const testScene = `
global:
  show_3d_buildings: false
  transit_layer: false
`

var chelsea = geo.GeoPoint{Lat: 40.744, Lon: -73.993}

func newTestController(t *testing.T, engOpts ...engine.MemoryOption) (*Controller, *engine.Memory) {
	t.Helper()
	engOpts = append([]engine.MemoryOption{engine.WithScene("scene.yaml", testScene)}, engOpts...)
	eng := engine.NewMemory(engOpts...)
	c, err := New("test-key", eng, WithName("test"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Dispose)
	return c, eng
}

func addTestMarker(t *testing.T, c *Controller, p geo.GeoPoint) *annotation.Marker {
	t.Helper()
	m, err := c.AddMarker(annotation.MarkerOptions{Position: p})
	if err != nil {
		t.Fatalf("AddMarker: %v", err)
	}
	return m
}

func handleOf(t *testing.T, c *Controller, a annotation.Annotation) engine.Handle {
	t.Helper()
	b, ok := a.Binding(c)
	if !ok {
		t.Fatalf("%s %s not bound", a.Kind(), a.ID())
	}
	return b.Handle
}

func square(center geo.GeoPoint, d float64) [][]geo.GeoPoint {
	return [][]geo.GeoPoint{{
		{Lat: center.Lat - d, Lon: center.Lon - d},
		{Lat: center.Lat - d, Lon: center.Lon + d},
		{Lat: center.Lat + d, Lon: center.Lon + d},
		{Lat: center.Lat + d, Lon: center.Lon - d},
	}}
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New("", engine.NewMemory())
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestMarkerEndToEnd(t *testing.T) {
	c, eng := newTestController(t)

	m := addTestMarker(t, c, chelsea)
	h := handleOf(t, c, m)
	if !h.Valid() {
		t.Fatalf("handle = %d", h)
	}
	c.Flush()

	before := eng.Calls("set_marker_style")
	m.SetColor("blue")
	c.Flush()

	if got := eng.Calls("set_marker_style") - before; got != 1 {
		t.Fatalf("set_marker_style calls = %d, want 1", got)
	}
	st, ok := eng.Marker(h)
	if !ok || !strings.Contains(st.Style, "blue") {
		t.Fatalf("engine style = %q", st.Style)
	}
	if st.Point != chelsea {
		t.Fatalf("engine point = %v", st.Point)
	}

	if err := m.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	c.Flush()
	if got := eng.Calls("remove_marker"); got != 1 {
		t.Fatalf("remove_marker calls = %d, want 1", got)
	}

	nh, err := m.BindTo(c)
	if err != nil {
		t.Fatalf("BindTo after remove: %v", err)
	}
	if nh.Handle == h {
		t.Fatalf("handle %d reused", h)
	}
}

func TestBindIsIdempotent(t *testing.T) {
	c, eng := newTestController(t)
	m := addTestMarker(t, c, chelsea)

	first := handleOf(t, c, m)
	again, err := m.BindTo(c)
	if err != nil {
		t.Fatal(err)
	}
	direct, err := c.Bind(m)
	if err != nil {
		t.Fatal(err)
	}
	if again.Handle != first || direct.Handle != first {
		t.Fatalf("handles %d %d %d", first, again.Handle, direct.Handle)
	}
	if got := eng.Calls("add_marker"); got != 1 {
		t.Fatalf("add_marker calls = %d, want 1", got)
	}
}

func TestLayerRoundTrip(t *testing.T) {
	c, _ := newTestController(t)

	m, _ := annotation.NewMarker(annotation.MarkerOptions{Position: chelsea})
	line, _ := annotation.NewPolyline(annotation.PolylineOptions{Points: []geo.GeoPoint{chelsea, {Lat: 40.75, Lon: -73.98}}})
	poly, _ := annotation.NewPolygon(annotation.PolygonOptions{Rings: square(chelsea, 0.001)})
	layer := annotation.NewLayer("sights", m, line, poly)

	if err := c.AddLayer(layer); err != nil {
		t.Fatalf("AddLayer: %v", err)
	}
	if s := c.Stats(); s.Markers != 1 || s.Polylines != 1 || s.Polygons != 1 || s.DataSources != 2 {
		t.Fatalf("stats after add = %+v", s)
	}

	if err := c.RemoveLayer(layer); err != nil {
		t.Fatalf("RemoveLayer: %v", err)
	}
	c.Flush()

	if s := c.Stats(); s.Markers+s.Polylines+s.Polygons+s.DataSources != 0 {
		t.Fatalf("stats after remove = %+v", s)
	}
	if len(c.Annotations()) != 0 {
		t.Fatal("annotations left in registry")
	}
	if layer.Len() != 3 {
		t.Fatalf("layer membership changed: %d", layer.Len())
	}
}

func TestDataSourceDedupe(t *testing.T) {
	c, eng := newTestController(t)

	opts := annotation.PolylineOptions{LayerName: "routes"}
	opts.Points = []geo.GeoPoint{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}
	a, err := c.AddPolyline(opts)
	if err != nil {
		t.Fatal(err)
	}
	opts.Points = []geo.GeoPoint{{Lat: 3, Lon: 3}, {Lat: 4, Lon: 4}}
	b, err := c.AddPolyline(opts)
	if err != nil {
		t.Fatal(err)
	}
	c.Flush()

	if got := eng.Calls("add_data_source"); got != 1 {
		t.Fatalf("add_data_source calls = %d, want 1", got)
	}
	if names := c.DataSources(); !slices.Equal(names, []string{"routes"}) {
		t.Fatalf("sources = %v", names)
	}

	ba, _ := a.Binding(c)
	bb, _ := b.Binding(c)
	if ba.Source != bb.Source || ba.Handle == bb.Handle {
		t.Fatalf("bindings %+v %+v", ba, bb)
	}
	src, _ := eng.Source(ba.Source)
	if len(src.Features) != 2 {
		t.Fatalf("features = %d, want 2", len(src.Features))
	}

	if err := a.Remove(); err != nil {
		t.Fatal(err)
	}
	c.Flush()
	src, ok := eng.Source(ba.Source)
	if !ok || len(src.Features) != 1 {
		t.Fatalf("after first remove: ok=%v features=%d", ok, len(src.Features))
	}

	if err := b.Remove(); err != nil {
		t.Fatal(err)
	}
	c.Flush()
	if _, ok := eng.Source(ba.Source); ok {
		t.Fatal("data source not released with its last member")
	}
	if len(c.DataSources()) != 0 {
		t.Fatalf("registry sources = %v", c.DataSources())
	}
}

func TestShapeRestyleResubmits(t *testing.T) {
	c, eng := newTestController(t)
	poly, err := c.AddPolygon(annotation.PolygonOptions{Rings: square(chelsea, 0.01)})
	if err != nil {
		t.Fatal(err)
	}
	c.Flush()
	b, _ := poly.Binding(c)

	poly.SetFillColor("#00ff00")
	poly.SetFillColor("#0000ff")
	c.Flush()

	src, _ := eng.Source(b.Source)
	if len(src.Features) != 1 {
		t.Fatalf("features = %d, want 1 after restyle", len(src.Features))
	}
	if got := src.Features[0].Properties["fill_color"]; got != "#0000ff" {
		t.Fatalf("fill_color = %q", got)
	}

	poly.SetVisible(false)
	c.Flush()
	src, _ = eng.Source(b.Source)
	if len(src.Features) != 0 {
		t.Fatalf("hidden polygon still submitted")
	}
}

func TestSceneReloadRemapsMarkers(t *testing.T) {
	c, eng := newTestController(t)

	markers := []*annotation.Marker{
		addTestMarker(t, c, chelsea),
		addTestMarker(t, c, geo.GeoPoint{Lat: 40.75, Lon: -73.98}),
		addTestMarker(t, c, geo.GeoPoint{Lat: 40.76, Lon: -73.97}),
	}
	markers[1].SetColor("blue")
	c.Flush()

	old := make(map[engine.Handle]bool)
	for _, m := range markers {
		old[handleOf(t, c, m)] = true
	}

	var (
		mu    sync.Mutex
		ready []int
	)
	c.SetSceneReadyListener(func(id int, err *engine.SceneError) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			t.Errorf("scene error: %v", err)
		}
		// the registry must already be remapped
		for _, m := range markers {
			if b, _ := m.Binding(c); old[b.Handle] {
				t.Errorf("listener saw stale handle %d", b.Handle)
			}
		}
		ready = append(ready, id)
	})

	allocs := eng.Calls("add_marker")
	id, err := c.LoadScene("scene.yaml")
	if err != nil {
		t.Fatal(err)
	}
	eng.Wait()
	c.Flush()

	if got := eng.Calls("add_marker") - allocs; got != 3 {
		t.Fatalf("allocations = %d, want 3", got)
	}
	if !slices.Equal(ready, []int{id}) {
		t.Fatalf("ready = %v, want [%d]", ready, id)
	}
	for _, m := range markers {
		h := handleOf(t, c, m)
		if old[h] {
			t.Fatalf("handle %d survived remap", h)
		}
		st, ok := eng.Marker(h)
		if !ok {
			t.Fatalf("engine lost marker %d", h)
		}
		if st.Point != m.Position() || st.Style != m.Style() {
			t.Fatalf("engine state %+v does not match marker", st)
		}
	}
	if state, latest := c.SceneState(); state != SceneReady || latest != id {
		t.Fatalf("scene = %v/%d", state, latest)
	}
}

func TestSupersededSceneCallbackSuppressed(t *testing.T) {
	c, eng := newTestController(t)

	var (
		mu  sync.Mutex
		ids []int
	)
	c.SetSceneReadyListener(func(id int, _ *engine.SceneError) {
		mu.Lock()
		defer mu.Unlock()
		ids = append(ids, id)
	})

	if _, err := c.LoadScene("scene.yaml"); err != nil {
		t.Fatal(err)
	}
	second, err := c.LoadSceneYAML(testScene, "")
	if err != nil {
		t.Fatal(err)
	}
	eng.Wait()
	c.Flush()

	if !slices.Equal(ids, []int{second}) {
		t.Fatalf("callbacks = %v, want only [%d]", ids, second)
	}
}

func TestSceneErrorSkipsRemap(t *testing.T) {
	c, eng := newTestController(t)
	m := addTestMarker(t, c, chelsea)
	h := handleOf(t, c, m)

	var got *engine.SceneError
	c.SetSceneReadyListener(func(_ int, err *engine.SceneError) { got = err })

	allocs := eng.Calls("add_marker")
	if _, err := c.LoadScene("missing.yaml"); err != nil {
		t.Fatal(err)
	}
	eng.Wait()
	c.Flush()

	if got == nil || got.Kind != engine.SceneNoValidScene {
		t.Fatalf("scene error = %v", got)
	}
	if eng.Calls("add_marker") != allocs || handleOf(t, c, m) != h {
		t.Fatal("markers remapped after failed load")
	}
	if state, _ := c.SceneState(); state != SceneNone {
		t.Fatalf("state = %v, want none", state)
	}
}

func TestSupersededLoadStillRemapsMarkers(t *testing.T) {
	c, eng := newTestController(t, engine.WithLoadDelay(50*time.Millisecond))
	m := addTestMarker(t, c, chelsea)
	m.SetColor("blue")
	c.Flush()
	old := handleOf(t, c, m)

	var (
		mu   sync.Mutex
		ids  []int
		errs []*engine.SceneError
	)
	c.SetSceneReadyListener(func(id int, err *engine.SceneError) {
		mu.Lock()
		defer mu.Unlock()
		ids = append(ids, id)
		errs = append(errs, err)
	})

	if _, err := c.LoadScene("scene.yaml"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	second, err := c.LoadScene("missing.yaml")
	if err != nil {
		t.Fatal(err)
	}
	eng.Wait()
	c.Flush()

	// the first load committed and dropped every marker even though a newer
	// request superseded it
	h := handleOf(t, c, m)
	if h == old {
		t.Fatalf("marker kept handle %d across a committed scene", h)
	}
	st, ok := eng.Marker(h)
	if !ok {
		t.Fatalf("registry handle %d is not live in the engine (engine markers %v)", h, eng.MarkerHandles())
	}
	if st.Style != m.Style() || st.Point != m.Position() {
		t.Fatalf("engine state %+v does not match marker", st)
	}

	if !slices.Equal(ids, []int{second}) {
		t.Fatalf("callbacks = %v, want only [%d]", ids, second)
	}
	if errs[0] == nil {
		t.Fatal("failed load reported no error")
	}
	if state, latest := c.SceneState(); state != SceneReady || latest != second {
		t.Fatalf("scene = %v/%d, want ready/%d", state, latest, second)
	}
}

func TestUpdateScene(t *testing.T) {
	c, eng := newTestController(t)
	if _, err := c.UpdateScene(); !errors.Is(err, ErrNoSceneUpdates) {
		t.Fatalf("err = %v", err)
	}

	if _, err := c.LoadScene("scene.yaml"); err != nil {
		t.Fatal(err)
	}
	eng.Wait()
	if _, err := c.Enable3DBuildings(true); err != nil {
		t.Fatal(err)
	}
	eng.Wait()
	c.Flush()

	if v, _ := eng.SceneValue("global.show_3d_buildings"); v != true {
		t.Fatalf("show_3d_buildings = %v", v)
	}
}

func TestResolveFeaturePrefersPolylines(t *testing.T) {
	c, _ := newTestController(t)
	line, _ := annotation.NewPolyline(annotation.PolylineOptions{Points: []geo.GeoPoint{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}}})
	poly, _ := annotation.NewPolygon(annotation.PolygonOptions{Rings: square(chelsea, 0.01)})

	c.mu.Lock()
	c.reg.polylines[42] = &shapeEntry{shape: line}
	c.reg.polygons[42] = &shapeEntry{shape: poly}
	c.reg.polygons[43] = &shapeEntry{shape: poly}
	c.mu.Unlock()

	if got := c.ResolveFeature(map[string]string{"id": "42"}); got != line {
		t.Fatalf("resolved %v, want the polyline", got)
	}
	if got := c.ResolveFeature(map[string]string{"id": "43"}); got != poly {
		t.Fatalf("resolved %v, want the polygon", got)
	}
	for _, props := range []map[string]string{{}, {"id": "abc"}, {"id": "0"}, {"id": "99"}} {
		if got := c.ResolveFeature(props); got != nil {
			t.Fatalf("props %v resolved to %v", props, got)
		}
	}
}

func TestResolveMarker(t *testing.T) {
	c, _ := newTestController(t)
	m := addTestMarker(t, c, chelsea)
	if got := c.ResolveMarker(handleOf(t, c, m)); got != m {
		t.Fatalf("resolved %v", got)
	}
	if got := c.ResolveMarker(9999); got != nil {
		t.Fatalf("resolved unknown handle to %v", got)
	}
}

func centerOn(t *testing.T, c *Controller, p geo.GeoPoint) (float64, float64) {
	t.Helper()
	if err := c.SetCenter(p, 0); err != nil {
		t.Fatal(err)
	}
	if err := c.SetZoom(15, 0); err != nil {
		t.Fatal(err)
	}
	c.Flush()
	x, y, ok := c.GeoToScreen(p)
	if !ok {
		t.Fatalf("%v off screen", p)
	}
	return x, y
}

func TestTapDispatchesMarkerClick(t *testing.T) {
	c, _ := newTestController(t)
	m := addTestMarker(t, c, chelsea)
	x, y := centerOn(t, c, chelsea)

	// no listener: nothing buffered
	if err := c.HandleTap(x, y); err != nil {
		t.Fatal(err)
	}
	c.Flush()

	got := make(chan *annotation.Marker, 4)
	c.SetMarkerClickListener(func(m *annotation.Marker) { got <- m })
	if err := c.HandleTap(x, y); err != nil {
		t.Fatal(err)
	}
	c.Flush()

	if len(got) != 1 {
		t.Fatalf("listener calls = %d, want 1", len(got))
	}
	if picked := <-got; picked != m {
		t.Fatalf("picked %v", picked)
	}
}

func TestTapDispatchesPolygonClick(t *testing.T) {
	c, _ := newTestController(t)
	poly, err := c.AddPolygon(annotation.PolygonOptions{Rings: square(chelsea, 0.002)})
	if err != nil {
		t.Fatal(err)
	}
	x, y := centerOn(t, c, chelsea)

	got := make(chan *annotation.Polygon, 1)
	c.SetPolygonClickListener(func(p *annotation.Polygon) { got <- p })
	c.SetPolylineClickListener(func(p *annotation.Polyline) { t.Errorf("polyline listener fired for %v", p) })
	if err := c.HandleTap(x, y); err != nil {
		t.Fatal(err)
	}
	c.Flush()

	select {
	case p := <-got:
		if p != poly {
			t.Fatalf("picked %v", p)
		}
	default:
		t.Fatal("polygon listener not called")
	}

	a, err := c.Pick(x, y)
	if err != nil || a != annotation.Annotation(poly) {
		t.Fatalf("Pick = %v, %v", a, err)
	}
}

func TestTapMissReportsMapClick(t *testing.T) {
	c, _ := newTestController(t)
	x, y := centerOn(t, c, chelsea)

	got := make(chan geo.GeoPoint, 1)
	c.SetMapClickListener(func(p geo.GeoPoint) { got <- p })
	if err := c.HandleTap(x, y); err != nil {
		t.Fatal(err)
	}
	c.Flush()

	select {
	case p := <-got:
		if d := p.Lat - chelsea.Lat; d > 1e-6 || d < -1e-6 {
			t.Fatalf("clicked %v, want %v", p, chelsea)
		}
	default:
		t.Fatal("map click listener not called")
	}
}

func TestInfoPopup(t *testing.T) {
	c, _ := newTestController(t)
	m, _ := annotation.NewMarker(annotation.MarkerOptions{Position: chelsea, Title: "Office"})
	layer := annotation.NewLayer("pins", m)
	if err := c.AddLayer(layer); err != nil {
		t.Fatal(err)
	}
	x, y := centerOn(t, c, chelsea)

	clicked := make(chan *annotation.Marker, 1)
	c.SetInfoClickListener(func(m *annotation.Marker) { clicked <- m })

	if err := c.HandleTap(x, y); err != nil {
		t.Fatal(err)
	}
	c.Flush()
	if c.InfoMarker() != m {
		t.Fatal("info popup not shown")
	}

	c.ClickInfo()
	c.Flush()
	if len(clicked) != 1 {
		t.Fatal("info click not dispatched")
	}

	if err := c.RemoveLayer(layer); err != nil {
		t.Fatal(err)
	}
	if c.InfoMarker() != nil {
		t.Fatal("info popup survived layer removal")
	}
}

func TestResourceExhausted(t *testing.T) {
	c, _ := newTestController(t, engine.WithHandleLimit(1))
	addTestMarker(t, c, chelsea)

	_, err := c.AddMarker(annotation.MarkerOptions{Position: chelsea})
	if !errors.Is(err, engine.ErrResourceExhausted) {
		t.Fatalf("err = %v, want ErrResourceExhausted", err)
	}
	if s := c.Stats(); s.Markers != 1 {
		t.Fatalf("markers = %d", s.Markers)
	}
}

func TestInvalidGeometryRejected(t *testing.T) {
	c, eng := newTestController(t)
	_, err := c.AddMarker(annotation.MarkerOptions{Position: geo.GeoPoint{Lat: 91, Lon: 0}})
	if !errors.Is(err, geo.ErrInvalidGeometry) {
		t.Fatalf("err = %v", err)
	}
	if eng.Calls("add_marker") != 0 {
		t.Fatal("invalid marker reached the engine")
	}
}

func TestDisposeTwice(t *testing.T) {
	c, eng := newTestController(t)
	if _, err := c.AddPolyline(annotation.PolylineOptions{Points: []geo.GeoPoint{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}}}); err != nil {
		t.Fatal(err)
	}
	if err := c.AddGeoJSON("overlay", []byte(`{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}}`)); err != nil {
		t.Fatal(err)
	}
	m := addTestMarker(t, c, chelsea)

	c.Dispose()
	c.Dispose()

	if got := eng.Calls("dispose"); got != 1 {
		t.Fatalf("dispose calls = %d, want 1", got)
	}
	if got := eng.Calls("remove_data_source"); got != 2 {
		t.Fatalf("remove_data_source calls = %d, want 2", got)
	}
	if _, ok := m.Binding(c); ok {
		t.Fatal("binding survived dispose")
	}

	_, err := c.AddMarker(annotation.MarkerOptions{Position: chelsea})
	if !errors.Is(err, ErrDisposed) || !errors.Is(err, engine.ErrInvalidHandle) {
		t.Fatalf("err = %v, want ErrDisposed", err)
	}
	if err := c.HandleTap(1, 1); !errors.Is(err, ErrDisposed) {
		t.Fatalf("HandleTap err = %v", err)
	}
	if !c.Stats().Disposed {
		t.Fatal("Stats().Disposed = false")
	}
}

func TestDisposeIsLastNativeCall(t *testing.T) {
	for range 50 {
		c, eng := newTestController(t)
		addTestMarker(t, c, chelsea)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if err := c.SetZoom(12, 0); err != nil {
					return
				}
				if err := c.HandleTap(10, 10); err != nil {
					return
				}
			}
		}()

		c.Dispose()
		<-done

		if got := eng.LateCalls(); got != 0 {
			t.Fatalf("%d native calls ran after dispose", got)
		}
	}
}

func TestDisposeDetachesLayers(t *testing.T) {
	c, _ := newTestController(t)
	m, _ := annotation.NewMarker(annotation.MarkerOptions{Position: chelsea})
	layer := annotation.NewLayer("sights", m)
	if err := c.AddLayer(layer); err != nil {
		t.Fatal(err)
	}

	c.Dispose()

	if layer.IsOn(c) {
		t.Fatal("layer still on disposed map")
	}
	if maps := layer.Maps(); len(maps) != 0 {
		t.Fatalf("layer maps = %v", maps)
	}
	if len(c.Layers()) != 0 {
		t.Fatal("disposed map still lists layers")
	}
	if layer.Len() != 1 {
		t.Fatalf("layer membership changed: %d", layer.Len())
	}
}

func TestSetZoomRejectsOutOfRange(t *testing.T) {
	c, eng := newTestController(t)

	err := c.SetZoom(geo.MaxZoom+1, 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if msg := err.Error(); strings.Contains(msg, "%!") || !strings.Contains(msg, "22]") {
		t.Fatalf("message = %q", msg)
	}
	c.Flush()
	if eng.Calls("set_zoom") != 0 {
		t.Fatal("out of range zoom reached the engine")
	}
}

func TestSetBounds(t *testing.T) {
	c, eng := newTestController(t)
	b, _ := geo.NewBounds(geo.GeoPoint{Lat: 40.70, Lon: -74.02}, geo.GeoPoint{Lat: 40.80, Lon: -73.93})

	if err := c.SetBounds(b, 0.1, 0, geo.Offset{}); err != nil {
		t.Fatal(err)
	}
	c.Flush()

	if z := eng.Zoom(); z <= 0 || z > geo.MaxZoom {
		t.Fatalf("zoom = %f", z)
	}
	for _, p := range b.Points() {
		if _, _, ok := eng.GeoToScreen(p); !ok {
			t.Fatalf("%v not visible after SetBounds", p)
		}
	}
}

func TestCaptureWebP(t *testing.T) {
	c, _ := newTestController(t, engine.WithViewport(64, 64))
	addTestMarker(t, c, chelsea)

	var buf bytes.Buffer
	if err := c.CaptureWebP(&buf, 0); err != nil {
		t.Fatalf("CaptureWebP: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("RIFF")) {
		t.Fatalf("not a webp: % x", buf.Bytes()[:min(8, buf.Len())])
	}
}

type fakeGeocoder struct {
	results []geocoder.Address
	err     error
}

func (f *fakeGeocoder) Geocode(context.Context, string, bool) ([]geocoder.Address, error) {
	return f.results, f.err
}

type fakeRouter struct {
	route *directions.Route
	err   error
}

func (f *fakeRouter) Route(context.Context, directions.Request) (*directions.Route, error) {
	return f.route, f.err
}

func TestAddMarkerWithAddress(t *testing.T) {
	eng := engine.NewMemory()
	g := &fakeGeocoder{results: []geocoder.Address{{
		StreetAddress: "119 W 24th St",
		Location:      chelsea,
		Building:      square(chelsea, 0.0005),
	}}}
	c, err := New("key", eng, WithGeocoder(g))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Dispose()

	m, building, err := c.AddMarkerWithAddress(context.Background(), "119 W 24th St", true, annotation.MarkerOptions{})
	if err != nil {
		t.Fatalf("AddMarkerWithAddress: %v", err)
	}
	if m.Position() != chelsea || m.Address() != "119 W 24th St" {
		t.Fatalf("marker at %v address %q", m.Position(), m.Address())
	}
	if building == nil {
		t.Fatal("building polygon not added")
	}

	g.results = []geocoder.Address{{}}
	if _, _, err := c.AddMarkerWithAddress(context.Background(), "x", false, annotation.MarkerOptions{}); !errors.Is(err, geocoder.ErrNoResult) {
		t.Fatalf("err = %v, want ErrNoResult", err)
	}
}

func TestRequestRouteAndAddRoute(t *testing.T) {
	eng := engine.NewMemory()
	route := &directions.Route{Legs: []directions.Leg{
		{Points: []geo.GeoPoint{chelsea, {Lat: 40.75, Lon: -73.99}}},
		{Points: []geo.GeoPoint{{Lat: 40.75, Lon: -73.99}, {Lat: 40.76, Lon: -73.98}}},
	}}
	c, err := New("key", eng, WithDirections(&fakeRouter{route: route}))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Dispose()

	got := make(chan *directions.Route, 1)
	err = c.RequestRoute(context.Background(), directions.Request{OriginAddress: "A", DestinationAddress: "B"}, func(r *directions.Route, err error) {
		if err != nil {
			t.Errorf("route err: %v", err)
		}
		got <- r
	})
	if err != nil {
		t.Fatal(err)
	}
	r := <-got

	lines, err := c.AddRoute(r, annotation.PolylineOptions{LayerName: "route"}, true)
	if err != nil {
		t.Fatalf("AddRoute: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d", len(lines))
	}
	if s := c.Stats(); s.Polylines != 2 || s.DataSources != 1 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestServicesNotConfigured(t *testing.T) {
	c, _ := newTestController(t)
	if _, _, err := c.AddMarkerWithAddress(context.Background(), "x", false, annotation.MarkerOptions{}); !errors.Is(err, ErrNoService) {
		t.Fatalf("err = %v", err)
	}
	if err := c.RequestRoute(context.Background(), directions.Request{}, nil); !errors.Is(err, ErrNoService) {
		t.Fatalf("err = %v", err)
	}
}
