package annotation

import (
	"strconv"

	"github.com/paulmach/orb"
)

// Default data source names for shapes without an explicit layer name.
const (
	DefaultPolylineLayer = "mz_default_line"
	DefaultPolygonLayer  = "mz_default_polygon"
)

// Defaults shared by polylines and polygons.
const (
	DefaultStrokeColor = "#2b80f6"
	DefaultStrokeWidth = 4
	DefaultShapeOrder  = 500
)

// Shape is a polyline or polygon, rendered as a feature in a client data source.
type Shape interface {
	Annotation

	// LayerName is the client data source the shape is rendered into.
	LayerName() string
	// GenerateCentroid asks the engine for a label point.
	GenerateCentroid() bool
	// Geometry returns the immutable geometry.
	Geometry() orb.Geometry
	// Properties returns the styling feature properties.
	Properties() map[string]string
	// Visible reports whether the feature should be submitted.
	Visible() bool
}

// stroke holds attributes common to both shape kinds. Guarded by base.mu.
type stroke struct {
	layerName    string
	color        string
	width        int
	outlineColor string
	outlineWidth int
	drawOrder    int
	visible      bool
}

func newStroke(layer, defLayer, color string, width int, outlineColor string, outlineWidth, order int, hidden bool) stroke {
	s := stroke{
		layerName:    layer,
		color:        color,
		width:        width,
		outlineColor: outlineColor,
		outlineWidth: outlineWidth,
		drawOrder:    order,
		visible:      !hidden,
	}
	if s.layerName == "" {
		s.layerName = defLayer
	}
	if s.color == "" {
		s.color = DefaultStrokeColor
	}
	if s.width <= 0 {
		s.width = DefaultStrokeWidth
	}
	if s.drawOrder == 0 {
		s.drawOrder = DefaultShapeOrder
	}
	return s
}

func (s *stroke) properties(props map[string]string) {
	props["stroke_color"] = s.color
	props["stroke_width"] = px(s.width)
	props["order"] = strconv.Itoa(s.drawOrder)
	if s.outlineColor != "" {
		props["outline_color"] = s.outlineColor
	}
	if s.outlineWidth > 0 {
		props["outline_width"] = px(s.outlineWidth)
	}
}
