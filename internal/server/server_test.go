package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/woozymasta/mapkit/internal/annotation"
	"github.com/woozymasta/mapkit/internal/engine"
	"github.com/woozymasta/mapkit/internal/geo"
	"github.com/woozymasta/mapkit/internal/mapctl"

	"github.com/paulmach/orb/geojson"
)

var chelsea = geo.GeoPoint{Lat: 40.744, Lon: -73.993}

func newTestServer(t *testing.T) (*httptest.Server, *mapctl.Controller, *annotation.Marker) {
	t.Helper()

	c, err := mapctl.New("key", engine.NewMemory(engine.WithViewport(128, 96)), mapctl.WithName("nyc"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Dispose)

	m, err := c.AddMarker(annotation.MarkerOptions{Position: chelsea, Title: "Office", Color: "blue"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddPolyline(annotation.PolylineOptions{
		Points:    []geo.GeoPoint{{Lat: 40.70, Lon: -74.0}, {Lat: 40.71, Lon: -74.01}},
		LayerName: "routes",
	}); err != nil {
		t.Fatal(err)
	}
	if err := c.SetCenter(chelsea, 0); err != nil {
		t.Fatal(err)
	}
	if err := c.SetZoom(15, 0); err != nil {
		t.Fatal(err)
	}
	c.Flush()

	s, err := NewServerContext("", c)
	if err != nil {
		t.Fatalf("NewServerContext: %v", err)
	}
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return srv, c, m
}

func get(t *testing.T, url string, header ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestMapsList(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := get(t, srv.URL+"/api/maps")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var maps []MapInfo
	if err := json.NewDecoder(resp.Body).Decode(&maps); err != nil {
		t.Fatal(err)
	}
	if len(maps) != 1 || maps[0].Name != "nyc" {
		t.Fatalf("maps = %+v", maps)
	}
	if maps[0].Markers != 1 || maps[0].Polylines != 1 || len(maps[0].DataSources) != 1 {
		t.Fatalf("stats = %+v", maps[0])
	}
}

func TestAnnotationsGeoJSON(t *testing.T) {
	srv, _, m := newTestServer(t)

	resp := get(t, srv.URL+"/api/maps/nyc/annotations")
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Fatalf("content type = %q", ct)
	}
	data, _ := io.ReadAll(resp.Body)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("features = %d", len(fc.Features))
	}

	marker := fc.Features[0]
	if marker.ID != m.ID() || marker.Properties.MustString("kind") != "marker" {
		t.Fatalf("first feature = %v %v", marker.ID, marker.Properties)
	}
	if marker.Properties.MustString("color") != "blue" {
		t.Fatalf("marker props = %v", marker.Properties)
	}
	if line := fc.Features[1]; line.Properties.MustString("layer") != "routes" || line.Geometry.GeoJSONType() != "LineString" {
		t.Fatalf("second feature = %v", line.Properties)
	}
}

func TestUnknownMap(t *testing.T) {
	srv, _, _ := newTestServer(t)
	for _, path := range []string{"/api/maps/nope/annotations", "/api/maps/nope/snapshot.webp", "/api/maps/nope/pick?x=1&y=1"} {
		if resp := get(t, srv.URL+path); resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: status = %d", path, resp.StatusCode)
		}
	}
}

func TestSnapshot(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := get(t, srv.URL+"/api/maps/nyc/snapshot.webp")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(data), "RIFF") {
		t.Fatal("body is not webp")
	}

	if resp := get(t, srv.URL+"/api/maps/nyc/snapshot.webp?quality=500"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad quality status = %d", resp.StatusCode)
	}
}

func TestPick(t *testing.T) {
	srv, c, m := newTestServer(t)
	x, y, ok := c.GeoToScreen(chelsea)
	if !ok {
		t.Fatal("marker off screen")
	}

	resp := get(t, srv.URL+"/api/maps/nyc/pick?x="+ftoa(x)+"&y="+ftoa(y))
	var res PickResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if !res.Hit || res.ID != m.ID() || res.Kind != "marker" {
		t.Fatalf("pick = %+v", res)
	}

	resp = get(t, srv.URL+"/api/maps/nyc/pick?x=1&y=1")
	res = PickResult{}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Hit {
		t.Fatalf("corner pick hit %+v", res)
	}

	if resp := get(t, srv.URL+"/api/maps/nyc/pick?x=a"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestPickAfterDispose(t *testing.T) {
	srv, c, _ := newTestServer(t)
	c.Dispose()
	if resp := get(t, srv.URL+"/api/maps/nyc/pick?x=1&y=1"); resp.StatusCode != http.StatusGone {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestIndexETag(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := get(t, srv.URL+"/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), DefaultTitle) {
		t.Fatal("index does not carry the title")
	}

	etag := resp.Header.Get("ETag")
	if resp := get(t, srv.URL+"/", "If-None-Match", etag); resp.StatusCode != http.StatusNotModified {
		t.Fatalf("conditional status = %d", resp.StatusCode)
	}
	if resp := get(t, srv.URL+"/style.css"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("asset path status = %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	_ = get(t, srv.URL+"/api/maps/nyc/pick?x=1&y=1")

	resp := get(t, srv.URL+"/metrics")
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "mapkit_engine_calls_total") {
		t.Fatal("engine call counter not exported")
	}
}

func TestDuplicateMapNames(t *testing.T) {
	a, _ := mapctl.New("key", engine.NewMemory(), mapctl.WithName("x"))
	b, _ := mapctl.New("key", engine.NewMemory(), mapctl.WithName("x"))
	defer a.Dispose()
	defer b.Dispose()
	if _, err := NewServerContext("", a, b); err == nil {
		t.Fatal("duplicate names accepted")
	}
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
