package mapctl

import (
	"slices"
	"strconv"

	"github.com/woozymasta/mapkit/internal/annotation"
	"github.com/woozymasta/mapkit/internal/engine"
)

// featureIDKey is the feature property carrying the registry id of a shape.
const featureIDKey = "id"

// shapeEntry binds a polyline or polygon to a feature id inside a data source.
type shapeEntry struct {
	shape  annotation.Shape
	source *sourceEntry
}

// sourceEntry is a client data source created for one layer name.
type sourceEntry struct {
	name     string
	handle   engine.Handle
	centroid bool
	members  []engine.Handle // feature ids, insertion order
	geojson  [][]byte
}

// registry is the map-binding table of one controller. It is the only
// authority on which native handles are live; guarded by Controller.mu.
type registry struct {
	markers   map[engine.Handle]*annotation.Marker
	polylines map[engine.Handle]*shapeEntry
	polygons  map[engine.Handle]*shapeEntry
	sources   map[string]*sourceEntry

	lastFeature engine.Handle
}

func newRegistry() *registry {
	return &registry{
		markers:   make(map[engine.Handle]*annotation.Marker),
		polylines: make(map[engine.Handle]*shapeEntry),
		polygons:  make(map[engine.Handle]*shapeEntry),
		sources:   make(map[string]*sourceEntry),
	}
}

// nextFeatureID allocates an arena id. Ids are never reused.
func (r *registry) nextFeatureID() engine.Handle {
	r.lastFeature++
	return r.lastFeature
}

// shapes returns the table for the shape kind.
func (r *registry) shapes(kind annotation.Kind) map[engine.Handle]*shapeEntry {
	if kind == annotation.KindPolygon {
		return r.polygons
	}
	return r.polylines
}

// resolveFeature maps pick properties to a shape. Polylines are checked
// before polygons.
func (r *registry) resolveFeature(props map[string]string) annotation.Shape {
	raw, ok := props[featureIDKey]
	if !ok {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || !engine.Handle(id).Valid() {
		return nil
	}

	if e, ok := r.polylines[engine.Handle(id)]; ok {
		return e.shape
	}
	if e, ok := r.polygons[engine.Handle(id)]; ok {
		return e.shape
	}
	return nil
}

// resolveMarker is a direct lookup.
func (r *registry) resolveMarker(h engine.Handle) *annotation.Marker {
	return r.markers[h]
}

// markerHandle returns the live handle of m, verified against the table.
func (r *registry) markerHandle(c annotation.Map, m *annotation.Marker) (engine.Handle, bool) {
	b, ok := m.Binding(c)
	if !ok || r.markers[b.Handle] != m {
		return engine.InvalidHandle, false
	}
	return b.Handle, true
}

// shapeEntryOf returns the entry of s, verified against the table.
func (r *registry) shapeEntryOf(c annotation.Map, s annotation.Shape) (*shapeEntry, bool) {
	b, ok := s.Binding(c)
	if !ok {
		return nil, false
	}
	e, ok := r.shapes(s.Kind())[b.Handle]
	if !ok || e.shape != s {
		return nil, false
	}
	return e, true
}

// dropMember removes a feature id from its source. It reports whether the
// source has nothing left to render and was removed from the table.
func (r *registry) dropMember(src *sourceEntry, id engine.Handle) bool {
	if i := slices.Index(src.members, id); i >= 0 {
		src.members = slices.Delete(src.members, i, i+1)
	}
	if len(src.members) > 0 || len(src.geojson) > 0 {
		return false
	}
	if r.sources[src.name] == src {
		delete(r.sources, src.name)
	}
	return true
}

// len reports the number of bound annotations.
func (r *registry) len() int {
	return len(r.markers) + len(r.polylines) + len(r.polygons)
}
