package annotation

import (
	"github.com/woozymasta/mapkit/internal/geo"

	"github.com/paulmach/orb"
)

// Line cap and join types.
const (
	CapButt   = "butt"
	CapRound  = "round"
	CapSquare = "square"

	JoinMiter = "miter"
	JoinRound = "round"
	JoinBevel = "bevel"
)

// PolylineOptions configures a new Polyline.
type PolylineOptions struct {
	Points       []geo.GeoPoint
	LayerName    string
	StrokeColor  string
	StrokeWidth  int
	OutlineColor string
	OutlineWidth int
	Cap          string
	Join         string
	DrawOrder    int
	Hidden       bool
}

// Polyline is a path annotation. Its geometry is immutable.
type Polyline struct {
	base
	stroke

	points []geo.GeoPoint
	cap    string
	join   string
}

// NewPolyline validates opts and returns an unbound polyline.
func NewPolyline(opts PolylineOptions) (*Polyline, error) {
	if err := geo.ValidatePath(opts.Points, 2); err != nil {
		return nil, err
	}

	p := &Polyline{
		stroke: newStroke(opts.LayerName, DefaultPolylineLayer, opts.StrokeColor, opts.StrokeWidth,
			opts.OutlineColor, opts.OutlineWidth, opts.DrawOrder, opts.Hidden),
		points: append([]geo.GeoPoint(nil), opts.Points...),
		cap:    opts.Cap,
		join:   opts.Join,
	}
	if p.cap == "" {
		p.cap = CapRound
	}
	if p.join == "" {
		p.join = JoinRound
	}
	p.init(p, KindPolyline)
	return p, nil
}

// Points returns a copy of the path.
func (p *Polyline) Points() []geo.GeoPoint {
	return append([]geo.GeoPoint(nil), p.points...)
}

// LayerName implements Shape.
func (p *Polyline) LayerName() string { return p.layerName }

// GenerateCentroid implements Shape.
func (p *Polyline) GenerateCentroid() bool { return false }

// Geometry implements Shape.
func (p *Polyline) Geometry() orb.Geometry { return geo.LineString(p.points) }

// Properties implements Shape.
func (p *Polyline) Properties() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	props := map[string]string{
		"type": "line",
		"cap":  p.cap,
		"join": p.join,
	}
	p.stroke.properties(props)
	return props
}

// Visible implements Shape.
func (p *Polyline) Visible() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.visible
}

// SetVisible shows or hides the polyline on every bound map.
func (p *Polyline) SetVisible(v bool) {
	p.mu.Lock()
	p.visible = v
	p.mu.Unlock()
	p.notify(Change{Field: FieldVisibility})
}

// StrokeColor returns the line color.
func (p *Polyline) StrokeColor() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.color
}

// SetStrokeColor changes the line color.
func (p *Polyline) SetStrokeColor(color string) {
	p.mu.Lock()
	p.color = color
	p.mu.Unlock()
	p.notify(Change{Field: FieldStyle})
}

// StrokeWidth returns the line width in pixels.
func (p *Polyline) StrokeWidth() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.width
}

// SetStrokeWidth changes the line width in pixels.
func (p *Polyline) SetStrokeWidth(w int) {
	p.mu.Lock()
	p.width = w
	p.mu.Unlock()
	p.notify(Change{Field: FieldStyle})
}

// SetOutline changes the outline color and width.
func (p *Polyline) SetOutline(color string, width int) {
	p.mu.Lock()
	p.outlineColor = color
	p.outlineWidth = width
	p.mu.Unlock()
	p.notify(Change{Field: FieldStyle})
}

// SetLineStyle changes the cap and join types.
func (p *Polyline) SetLineStyle(capType, joinType string) {
	p.mu.Lock()
	p.cap = capType
	p.join = joinType
	p.mu.Unlock()
	p.notify(Change{Field: FieldStyle})
}

// DrawOrder returns the draw order.
func (p *Polyline) DrawOrder() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.drawOrder
}

// SetDrawOrder changes the draw order.
func (p *Polyline) SetDrawOrder(order int) {
	p.mu.Lock()
	p.drawOrder = order
	p.mu.Unlock()
	p.notify(Change{Field: FieldDrawOrder})
}
