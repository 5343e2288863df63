package annotation

import (
	"time"

	"github.com/woozymasta/mapkit/internal/engine"
	"github.com/woozymasta/mapkit/internal/geo"
)

// DefaultMarkerOrder is the draw order of markers that do not set one.
const DefaultMarkerOrder = 2000

// MarkerOptions configures a new Marker.
type MarkerOptions struct {
	Position  geo.GeoPoint
	Icon      Icon
	Width     int
	Height    int
	DrawOrder int
	Color     string
	Hidden    bool

	Title    string
	SubTitle string
	Address  string
}

// MarkerState is a consistent snapshot of a marker.
type MarkerState struct {
	Position  geo.GeoPoint
	Icon      Icon
	Width     int
	Height    int
	DrawOrder int
	Color     string
	Visible   bool
	Style     string

	Title    string
	SubTitle string
	Address  string
}

// Marker is a point annotation with an icon.
type Marker struct {
	base

	position  geo.GeoPoint
	icon      Icon
	width     int
	height    int
	drawOrder int
	color     string
	visible   bool

	title    string
	subTitle string
	address  string
}

// NewMarker validates opts and returns an unbound marker.
func NewMarker(opts MarkerOptions) (*Marker, error) {
	if err := geo.Validate(opts.Position); err != nil {
		return nil, err
	}

	m := &Marker{
		position:  opts.Position,
		icon:      opts.Icon,
		drawOrder: opts.DrawOrder,
		color:     opts.Color,
		visible:   !opts.Hidden,
		title:     opts.Title,
		subTitle:  opts.SubTitle,
		address:   opts.Address,
	}
	m.init(m, KindMarker)

	m.width, m.height = opts.Icon.Size()
	if !opts.Icon.IsDefault() {
		if opts.Width > 0 {
			m.width = opts.Width
		}
		if opts.Height > 0 {
			m.height = opts.Height
		}
	}
	if m.drawOrder == 0 {
		m.drawOrder = DefaultMarkerOrder
	}

	return m, nil
}

// State returns a snapshot including the rendered style.
func (m *Marker) State() MarkerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MarkerState{
		Position:  m.position,
		Icon:      m.icon,
		Width:     m.width,
		Height:    m.height,
		DrawOrder: m.drawOrder,
		Color:     m.color,
		Visible:   m.visible,
		Style:     m.styleLocked(),
		Title:     m.title,
		SubTitle:  m.subTitle,
		Address:   m.address,
	}
}

// Style returns the Tangram style string of the marker.
func (m *Marker) Style() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.styleLocked()
}

func (m *Marker) styleLocked() string {
	entries := []styleEntry{
		{"style", "points"},
	}
	if !m.icon.IsCustom() {
		entries = append(entries, styleEntry{"sprite", m.icon.Sprite()})
	}
	if m.color != "" {
		entries = append(entries, styleEntry{"color", m.color})
	}
	entries = append(entries,
		styleEntry{"size", []string{px(m.width), px(m.height)}},
		styleEntry{"order", m.drawOrder},
		styleEntry{"collide", false},
		styleEntry{"interactive", true},
		styleEntry{"anchor", "top"},
	)
	return renderStyle(entries...)
}

// Position returns the current position.
func (m *Marker) Position() geo.GeoPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.position
}

// SetPosition moves the marker on every bound map.
func (m *Marker) SetPosition(p geo.GeoPoint) error {
	return m.setPosition(p, nil)
}

// SetPositionEased moves the marker with an engine-side animation.
func (m *Marker) SetPositionEased(p geo.GeoPoint, d time.Duration, ease engine.EaseType) error {
	return m.setPosition(p, &Easing{Duration: d, Type: ease})
}

func (m *Marker) setPosition(p geo.GeoPoint, ease *Easing) error {
	if err := geo.Validate(p); err != nil {
		return err
	}
	m.mu.Lock()
	m.position = p
	m.mu.Unlock()

	m.notify(Change{Field: FieldPosition, Ease: ease})
	return nil
}

// Icon returns the current icon.
func (m *Marker) Icon() Icon {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.icon
}

// SetIcon replaces the icon. The size resets to the icon's natural size.
func (m *Marker) SetIcon(icon Icon) {
	m.mu.Lock()
	m.icon = icon
	m.width, m.height = icon.Size()
	m.mu.Unlock()

	m.notify(Change{Field: FieldIcon})
}

// Size returns the icon size in pixels.
func (m *Marker) Size() (int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.width, m.height
}

// SetSize resizes a sprite or custom icon. The default icon is fixed.
func (m *Marker) SetSize(w, h int) error {
	m.mu.Lock()
	if m.icon.IsDefault() {
		m.mu.Unlock()
		return ErrFixedIconSize
	}
	if w > 0 {
		m.width = w
	}
	if h > 0 {
		m.height = h
	}
	custom := m.icon.IsCustom()
	m.mu.Unlock()

	if custom {
		m.notify(Change{Field: FieldIcon})
	}
	m.notify(Change{Field: FieldStyle})
	return nil
}

// DrawOrder returns the draw order.
func (m *Marker) DrawOrder() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drawOrder
}

// SetDrawOrder changes the draw order on every bound map.
func (m *Marker) SetDrawOrder(order int) {
	m.mu.Lock()
	m.drawOrder = order
	m.mu.Unlock()

	m.notify(Change{Field: FieldDrawOrder})
}

// Color returns the tint color.
func (m *Marker) Color() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.color
}

// SetColor tints the marker and re-pushes its style.
func (m *Marker) SetColor(color string) {
	m.mu.Lock()
	m.color = color
	m.mu.Unlock()

	m.notify(Change{Field: FieldStyle})
}

// Visible reports whether the marker is shown.
func (m *Marker) Visible() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.visible
}

// SetVisible shows or hides the marker on every bound map.
func (m *Marker) SetVisible(v bool) {
	m.mu.Lock()
	m.visible = v
	m.mu.Unlock()

	m.notify(Change{Field: FieldVisibility})
}

// Title returns the info title.
func (m *Marker) Title() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.title
}

// SetTitle sets the info title.
func (m *Marker) SetTitle(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.title = s
}

// SubTitle returns the info subtitle.
func (m *Marker) SubTitle() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.subTitle
}

// SetSubTitle sets the info subtitle.
func (m *Marker) SetSubTitle(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subTitle = s
}

// Address returns the street address the marker was created from, if any.
func (m *Marker) Address() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.address
}

// SetAddress sets the street address.
func (m *Marker) SetAddress(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.address = s
}

// HasInfo reports whether the marker has anything to show in a popup.
func (m *Marker) HasInfo() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.title != "" || m.subTitle != "" || m.address != ""
}
