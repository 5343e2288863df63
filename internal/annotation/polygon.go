package annotation

import (
	"github.com/woozymasta/mapkit/internal/geo"

	"github.com/paulmach/orb"
)

// DefaultFillColor is the polygon fill when none is set.
const DefaultFillColor = "#802b80f6"

// PolygonOptions configures a new Polygon. The first ring is the outer
// boundary, the rest are holes.
type PolygonOptions struct {
	Rings        [][]geo.GeoPoint
	LayerName    string
	FillColor    string
	StrokeColor  string
	StrokeWidth  int
	OutlineColor string
	OutlineWidth int
	DrawOrder    int
	Hidden       bool
}

// Polygon is an area annotation. Its geometry is immutable.
type Polygon struct {
	base
	stroke

	rings [][]geo.GeoPoint
	fill  string
}

// NewPolygon validates opts and returns an unbound polygon.
func NewPolygon(opts PolygonOptions) (*Polygon, error) {
	if err := geo.ValidateRings(opts.Rings); err != nil {
		return nil, err
	}

	rings := make([][]geo.GeoPoint, len(opts.Rings))
	for i, r := range opts.Rings {
		rings[i] = append([]geo.GeoPoint(nil), r...)
	}

	p := &Polygon{
		stroke: newStroke(opts.LayerName, DefaultPolygonLayer, opts.StrokeColor, opts.StrokeWidth,
			opts.OutlineColor, opts.OutlineWidth, opts.DrawOrder, opts.Hidden),
		rings: rings,
		fill:  opts.FillColor,
	}
	if p.fill == "" {
		p.fill = DefaultFillColor
	}
	p.init(p, KindPolygon)
	return p, nil
}

// Rings returns a copy of the boundary rings.
func (p *Polygon) Rings() [][]geo.GeoPoint {
	out := make([][]geo.GeoPoint, len(p.rings))
	for i, r := range p.rings {
		out[i] = append([]geo.GeoPoint(nil), r...)
	}
	return out
}

// LayerName implements Shape.
func (p *Polygon) LayerName() string { return p.layerName }

// GenerateCentroid implements Shape.
func (p *Polygon) GenerateCentroid() bool { return true }

// Geometry implements Shape.
func (p *Polygon) Geometry() orb.Geometry { return geo.Polygon(p.rings) }

// Properties implements Shape.
func (p *Polygon) Properties() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	props := map[string]string{
		"type":       "polygon",
		"fill_color": p.fill,
	}
	p.stroke.properties(props)
	return props
}

// Visible implements Shape.
func (p *Polygon) Visible() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.visible
}

// SetVisible shows or hides the polygon on every bound map.
func (p *Polygon) SetVisible(v bool) {
	p.mu.Lock()
	p.visible = v
	p.mu.Unlock()
	p.notify(Change{Field: FieldVisibility})
}

// FillColor returns the fill color.
func (p *Polygon) FillColor() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fill
}

// SetFillColor changes the fill color.
func (p *Polygon) SetFillColor(color string) {
	p.mu.Lock()
	p.fill = color
	p.mu.Unlock()
	p.notify(Change{Field: FieldStyle})
}

// StrokeColor returns the boundary color.
func (p *Polygon) StrokeColor() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.color
}

// SetStrokeColor changes the boundary color.
func (p *Polygon) SetStrokeColor(color string) {
	p.mu.Lock()
	p.color = color
	p.mu.Unlock()
	p.notify(Change{Field: FieldStyle})
}

// SetStrokeWidth changes the boundary width in pixels.
func (p *Polygon) SetStrokeWidth(w int) {
	p.mu.Lock()
	p.width = w
	p.mu.Unlock()
	p.notify(Change{Field: FieldStyle})
}

// SetOutline changes the outline color and width.
func (p *Polygon) SetOutline(color string, width int) {
	p.mu.Lock()
	p.outlineColor = color
	p.outlineWidth = width
	p.mu.Unlock()
	p.notify(Change{Field: FieldStyle})
}

// DrawOrder returns the draw order.
func (p *Polygon) DrawOrder() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.drawOrder
}

// SetDrawOrder changes the draw order.
func (p *Polygon) SetDrawOrder(order int) {
	p.mu.Lock()
	p.drawOrder = order
	p.mu.Unlock()
	p.notify(Change{Field: FieldDrawOrder})
}
