package mapctl

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/woozymasta/mapkit/internal/annotation"
	"github.com/woozymasta/mapkit/internal/engine"
	"github.com/woozymasta/mapkit/internal/metrics"

	"github.com/rs/zerolog/log"
)

// AddMarker creates a marker and binds it to this map.
func (c *Controller) AddMarker(opts annotation.MarkerOptions) (*annotation.Marker, error) {
	m, err := annotation.NewMarker(opts)
	if err != nil {
		return nil, err
	}
	if _, err := m.BindTo(c); err != nil {
		return nil, err
	}
	return m, nil
}

// AddPolyline creates a polyline and binds it to this map.
func (c *Controller) AddPolyline(opts annotation.PolylineOptions) (*annotation.Polyline, error) {
	p, err := annotation.NewPolyline(opts)
	if err != nil {
		return nil, err
	}
	if _, err := p.BindTo(c); err != nil {
		return nil, err
	}
	return p, nil
}

// AddPolygon creates a polygon and binds it to this map.
func (c *Controller) AddPolygon(opts annotation.PolygonOptions) (*annotation.Polygon, error) {
	p, err := annotation.NewPolygon(opts)
	if err != nil {
		return nil, err
	}
	if _, err := p.BindTo(c); err != nil {
		return nil, err
	}
	return p, nil
}

// AddLayer binds every member of l to this map.
func (c *Controller) AddLayer(l *annotation.Layer) error {
	if err := l.AddTo(c); err != nil {
		return err
	}
	c.mu.Lock()
	if !slices.Contains(c.layers, l) {
		c.layers = append(c.layers, l)
	}
	c.mu.Unlock()

	log.Debug().Str("map", c.name).Str("layer", l.Name()).Int("annotations", l.Len()).Msg("Layer added")
	return nil
}

// RemoveLayer unbinds every member of l from this map.
func (c *Controller) RemoveLayer(l *annotation.Layer) error {
	c.mu.Lock()
	if i := slices.Index(c.layers, l); i >= 0 {
		c.layers = slices.Delete(c.layers, i, i+1)
	}
	c.mu.Unlock()

	return l.RemoveFrom(c)
}

// Layers returns the layers added to this map.
func (c *Controller) Layers() []*annotation.Layer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.layers)
}

// Bind implements annotation.Map. Handle allocation is synchronous; the
// initial geometry and style push is queued.
func (c *Controller) Bind(a annotation.Annotation) (annotation.Binding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(); err != nil {
		return annotation.Binding{}, err
	}

	var (
		b   annotation.Binding
		err error
	)
	switch v := a.(type) {
	case *annotation.Marker:
		if h, ok := c.reg.markerHandle(c, v); ok {
			return annotation.Binding{Handle: h}, nil
		}
		b, err = c.bindMarkerLocked(v)
	case annotation.Shape:
		if _, ok := c.reg.shapeEntryOf(c, v); ok {
			bound, _ := v.Binding(c)
			return bound, nil
		}
		b, err = c.bindShapeLocked(v)
	default:
		return annotation.Binding{}, fmt.Errorf("unsupported annotation kind %s", a.Kind())
	}
	if err != nil {
		return annotation.Binding{}, err
	}

	a.Rebind(c, b)
	metrics.AnnotationsBound.WithLabelValues(a.Kind().String()).Inc()
	log.Trace().
		Str("map", c.name).
		Str("kind", a.Kind().String()).
		Str("id", a.ID()).
		Int64("handle", int64(b.Handle)).
		Int64("source", int64(b.Source)).
		Msg("Annotation bound")
	return b, nil
}

func (c *Controller) bindMarkerLocked(m *annotation.Marker) (annotation.Binding, error) {
	h, err := c.allocMarkerLocked()
	if err != nil {
		return annotation.Binding{}, err
	}
	c.reg.markers[h] = m
	c.post(func() { c.pushMarker(m, allMarkerFields...) })
	return annotation.Binding{Handle: h}, nil
}

// allocMarkerLocked asks the engine for a marker handle. Caller holds mu.
func (c *Controller) allocMarkerLocked() (engine.Handle, error) {
	h, err := c.eng.AddMarker()
	if c.native("add_marker", err) != nil {
		return engine.InvalidHandle, fmt.Errorf("add marker: %w", err)
	}
	if !h.Valid() {
		return engine.InvalidHandle, fmt.Errorf("add marker: %w", engine.ErrResourceExhausted)
	}
	return h, nil
}

func (c *Controller) bindShapeLocked(s annotation.Shape) (annotation.Binding, error) {
	src, err := c.dataSourceLocked(s.LayerName(), s.GenerateCentroid())
	if err != nil {
		return annotation.Binding{}, err
	}

	id := c.reg.nextFeatureID()
	c.reg.shapes(s.Kind())[id] = &shapeEntry{shape: s, source: src}
	src.members = append(src.members, id)

	c.post(func() { c.refreshSource(src) })
	return annotation.Binding{Handle: id, Source: src.handle}, nil
}

// dataSourceLocked returns the client data source for name, creating it on
// first use. Caller holds mu.
func (c *Controller) dataSourceLocked(name string, centroid bool) (*sourceEntry, error) {
	if src, ok := c.reg.sources[name]; ok {
		return src, nil
	}

	h, err := c.eng.AddDataSource(name, centroid)
	if c.native("add_data_source", err) != nil {
		return nil, fmt.Errorf("add data source %q: %w", name, err)
	}
	if !h.Valid() {
		return nil, fmt.Errorf("add data source %q: %w", name, engine.ErrResourceExhausted)
	}

	src := &sourceEntry{name: name, handle: h, centroid: centroid}
	c.reg.sources[name] = src
	log.Debug().Str("map", c.name).Str("source", name).Int64("handle", int64(h)).Msg("Data source created")
	return src, nil
}

// Unbind implements annotation.Map. The registry entry goes first; the
// native release is queued.
func (c *Controller) Unbind(a annotation.Annotation) error {
	c.mu.Lock()
	if err := c.checkLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.info == a {
		c.info = nil
	}

	switch v := a.(type) {
	case *annotation.Marker:
		h, ok := c.reg.markerHandle(c, v)
		if !ok {
			c.mu.Unlock()
			return annotation.ErrNotBound
		}
		delete(c.reg.markers, h)
		c.post(func() { _ = c.native("remove_marker", c.eng.RemoveMarker(h)) })
	case annotation.Shape:
		e, ok := c.reg.shapeEntryOf(c, v)
		if !ok {
			c.mu.Unlock()
			return annotation.ErrNotBound
		}
		b, _ := v.Binding(c)
		delete(c.reg.shapes(v.Kind()), b.Handle)
		src := e.source
		if c.reg.dropMember(src, b.Handle) {
			c.post(func() { _ = c.native("remove_data_source", c.eng.RemoveDataSource(src.handle)) })
		} else {
			c.post(func() { c.refreshSource(src) })
		}
	default:
		c.mu.Unlock()
		return fmt.Errorf("unsupported annotation kind %s", a.Kind())
	}
	c.mu.Unlock()

	a.Forget(c)
	metrics.AnnotationsBound.WithLabelValues(a.Kind().String()).Dec()
	log.Trace().Str("map", c.name).Str("kind", a.Kind().String()).Str("id", a.ID()).Msg("Annotation unbound")
	return nil
}

// RemoveAnnotation unbinds a from this map only.
func (c *Controller) RemoveAnnotation(a annotation.Annotation) error {
	return a.UnbindFrom(c)
}

// Update implements annotation.Map.
func (c *Controller) Update(a annotation.Annotation, ch annotation.Change) {
	switch v := a.(type) {
	case *annotation.Marker:
		c.post(func() { c.pushMarkerChange(v, ch) })
	case annotation.Shape:
		c.mu.Lock()
		e, ok := c.reg.shapeEntryOf(c, v)
		c.mu.Unlock()
		if ok {
			src := e.source
			c.post(func() { c.refreshSource(src) })
		}
	}
}

var allMarkerFields = []annotation.Field{
	annotation.FieldIcon,
	annotation.FieldStyle,
	annotation.FieldPosition,
	annotation.FieldDrawOrder,
	annotation.FieldVisibility,
}

// pushMarkerChange applies one change. Runs on the render looper.
func (c *Controller) pushMarkerChange(m *annotation.Marker, ch annotation.Change) {
	c.mu.Lock()
	h, ok := c.reg.markerHandle(c, m)
	c.mu.Unlock()
	if !ok {
		return
	}

	st := m.State()
	switch ch.Field {
	case annotation.FieldPosition:
		if ch.Ease != nil {
			_ = c.native("set_marker_point_eased", c.eng.SetMarkerPointEased(h, st.Position, durationOrZero(ch.Ease.Duration), ch.Ease.Type))
			return
		}
		_ = c.native("set_marker_point", c.eng.SetMarkerPoint(h, st.Position))
	case annotation.FieldDrawOrder:
		c.applyMarker(h, st, annotation.FieldDrawOrder, annotation.FieldStyle)
	case annotation.FieldIcon:
		c.applyMarker(h, st, annotation.FieldIcon, annotation.FieldStyle)
	default:
		c.applyMarker(h, st, ch.Field)
	}
}

// pushMarker pushes the current state of m. Runs on the render looper.
func (c *Controller) pushMarker(m *annotation.Marker, fields ...annotation.Field) {
	c.mu.Lock()
	h, ok := c.reg.markerHandle(c, m)
	c.mu.Unlock()
	if !ok {
		return
	}
	c.applyMarker(h, m.State(), fields...)
}

// applyMarker issues the native calls for fields. Runs on the render looper,
// or under mu during remapping.
func (c *Controller) applyMarker(h engine.Handle, st annotation.MarkerState, fields ...annotation.Field) {
	for _, f := range fields {
		switch f {
		case annotation.FieldIcon:
			if st.Icon.IsCustom() {
				_ = c.native("set_marker_bitmap", c.eng.SetMarkerBitmap(h, st.Icon.Bitmap(st.Width, st.Height)))
			}
		case annotation.FieldStyle:
			_ = c.native("set_marker_style", c.eng.SetMarkerStyle(h, st.Style))
		case annotation.FieldPosition:
			_ = c.native("set_marker_point", c.eng.SetMarkerPoint(h, st.Position))
		case annotation.FieldDrawOrder:
			_ = c.native("set_marker_draw_order", c.eng.SetMarkerDrawOrder(h, st.DrawOrder))
		case annotation.FieldVisibility:
			_ = c.native("set_marker_visible", c.eng.SetMarkerVisible(h, st.Visible))
		}
	}
}

// refreshSource clears src and resubmits its GeoJSON payloads and every
// visible member. Runs on the render looper.
func (c *Controller) refreshSource(src *sourceEntry) {
	c.mu.Lock()
	if c.reg.sources[src.name] != src {
		c.mu.Unlock()
		return
	}
	payloads := slices.Clone(src.geojson)
	features := make([]engine.Feature, 0, len(src.members))
	for _, id := range src.members {
		e, ok := c.reg.polylines[id]
		if !ok {
			e, ok = c.reg.polygons[id]
		}
		if !ok || !e.shape.Visible() {
			continue
		}
		props := maps.Clone(e.shape.Properties())
		props[featureIDKey] = strconv.FormatInt(int64(id), 10)
		features = append(features, engine.Feature{Geometry: e.shape.Geometry(), Properties: props})
	}
	c.mu.Unlock()

	if c.native("clear_data_source", c.eng.ClearDataSource(src.handle)) != nil {
		return
	}
	for _, data := range payloads {
		_ = c.native("add_geojson", c.eng.AddGeoJSON(src.handle, data))
	}
	for _, f := range features {
		_ = c.native("add_feature", c.eng.AddFeature(src.handle, f))
	}
}

// AddGeoJSON pushes a raw GeoJSON payload into the client data source named
// layerName, creating it on first use. The payload survives refreshes.
func (c *Controller) AddGeoJSON(layerName string, data []byte) error {
	c.mu.Lock()
	if err := c.checkLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	src, err := c.dataSourceLocked(layerName, false)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	src.geojson = append(src.geojson, slices.Clone(data))
	c.mu.Unlock()

	c.post(func() { c.refreshSource(src) })
	return nil
}

// RemoveDataSource drops a client data source and every shape rendered into it.
func (c *Controller) RemoveDataSource(layerName string) error {
	c.mu.Lock()
	if err := c.checkLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	src, ok := c.reg.sources[layerName]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("data source %q: %w", layerName, engine.ErrInvalidHandle)
	}
	var shapes []annotation.Shape
	for _, id := range src.members {
		if e, ok := c.reg.polylines[id]; ok {
			shapes = append(shapes, e.shape)
		} else if e, ok := c.reg.polygons[id]; ok {
			shapes = append(shapes, e.shape)
		}
	}
	c.mu.Unlock()

	for _, s := range shapes {
		_ = s.UnbindFrom(c)
	}

	c.mu.Lock()
	// GeoJSON-only sources, or ones whose members were unbound concurrently
	if c.reg.sources[layerName] == src {
		delete(c.reg.sources, layerName)
		c.post(func() { _ = c.native("remove_data_source", c.eng.RemoveDataSource(src.handle)) })
	}
	c.mu.Unlock()
	return nil
}

// DataSources returns the names of the client data sources.
func (c *Controller) DataSources() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.reg.sources))
	for name := range c.reg.sources {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
