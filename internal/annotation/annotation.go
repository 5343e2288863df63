// Package annotation implements logical map objects (markers, polylines,
// polygons) and layers, independent of any map or native handle.
//
// An annotation may be bound to any number of maps at once. The binding table
// kept here is a cache: the map side registry remains the only authority on
// whether a native handle is still valid.
package annotation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/woozymasta/mapkit/internal/engine"

	"github.com/google/uuid"
)

var (
	// ErrNotBound is returned when unbinding from a map the annotation is not on.
	ErrNotBound = errors.New("annotation not bound to map")

	// ErrFixedIconSize is returned when resizing a marker that uses the default icon.
	ErrFixedIconSize = errors.New("default marker icon has a fixed size")
)

// Kind tags the annotation variant.
type Kind int

// Annotation kinds.
const (
	KindMarker Kind = iota + 1
	KindPolyline
	KindPolygon
)

func (k Kind) String() string {
	switch k {
	case KindMarker:
		return "marker"
	case KindPolyline:
		return "polyline"
	case KindPolygon:
		return "polygon"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Binding is the native representation of an annotation on one map.
// For markers Handle is the marker handle; for shapes Handle is the feature id
// inside the Source data source.
type Binding struct {
	Handle engine.Handle
	Source engine.Handle
}

// Field names the attribute group that changed.
type Field int

// Changed fields.
const (
	FieldStyle Field = iota + 1
	FieldPosition
	FieldVisibility
	FieldDrawOrder
	FieldIcon
)

// Easing is a client-requested, engine-performed interpolation.
type Easing struct {
	Duration time.Duration
	Type     engine.EaseType
}

// Change describes one mutation to push to a map.
type Change struct {
	Field Field
	Ease  *Easing
}

// Map is the map side of annotation bindings.
type Map interface {
	// Bind allocates native resources for a and pushes its geometry and style.
	// Implementations record the binding with a.Rebind.
	Bind(a Annotation) (Binding, error)
	// Unbind releases the native resources of a on this map and calls a.Forget.
	Unbind(a Annotation) error
	// Update pushes a mutation of a to the native engine.
	Update(a Annotation, c Change)
	// DismissInfo closes an info popup attached to a, if any.
	DismissInfo(a Annotation)
}

// Annotation is a Marker, Polyline or Polygon.
type Annotation interface {
	ID() string
	Kind() Kind

	// Binding returns the binding on m.
	Binding(m Map) (Binding, bool)
	// Maps returns every map the annotation is bound to.
	Maps() []Map
	// BindTo binds the annotation to m; repeated calls return the same binding.
	BindTo(m Map) (Binding, error)
	// UnbindFrom releases the annotation on m only.
	UnbindFrom(m Map) error
	// Remove unbinds from every map and leaves every layer.
	Remove() error
	// Layers returns the layers referencing the annotation.
	Layers() []*Layer

	// Rebind records b as the binding on m. Called by maps.
	Rebind(m Map, b Binding)
	// Forget drops the binding on m. Called by maps.
	Forget(m Map)

	core() *base
}

// base carries identity, bindings and layer back references.
type base struct {
	self Annotation
	id   string
	kind Kind

	// bindMu serializes bind/unbind against the maps; mu guards fields and is
	// never held while calling into a Map.
	bindMu   sync.Mutex
	mu       sync.RWMutex
	bindings map[Map]Binding
	layers   []*Layer
}

func (b *base) init(self Annotation, kind Kind) {
	b.self = self
	b.id = uuid.NewString()
	b.kind = kind
	b.bindings = make(map[Map]Binding)
}

func (b *base) core() *base { return b }

// ID returns the process-unique logical id.
func (b *base) ID() string { return b.id }

// Kind returns the variant tag.
func (b *base) Kind() Kind { return b.kind }

// Binding implements Annotation.
func (b *base) Binding(m Map) (Binding, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bind, ok := b.bindings[m]
	return bind, ok
}

// Maps implements Annotation.
func (b *base) Maps() []Map {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Map, 0, len(b.bindings))
	for m := range b.bindings {
		out = append(out, m)
	}
	return out
}

// Rebind implements Annotation.
func (b *base) Rebind(m Map, bind Binding) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bindings[m] = bind
}

// Forget implements Annotation.
func (b *base) Forget(m Map) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.bindings, m)
}

// BindTo implements Annotation.
func (b *base) BindTo(m Map) (Binding, error) {
	b.bindMu.Lock()
	defer b.bindMu.Unlock()

	if bind, ok := b.Binding(m); ok {
		return bind, nil
	}

	bind, err := m.Bind(b.self)
	if err != nil {
		return Binding{}, fmt.Errorf("bind %s %s: %w", b.kind, b.id, err)
	}
	b.Rebind(m, bind)
	return bind, nil
}

// UnbindFrom implements Annotation.
func (b *base) UnbindFrom(m Map) error {
	b.bindMu.Lock()
	defer b.bindMu.Unlock()

	if _, ok := b.Binding(m); !ok {
		return ErrNotBound
	}
	err := m.Unbind(b.self)
	b.Forget(m)
	if err != nil {
		return fmt.Errorf("unbind %s %s: %w", b.kind, b.id, err)
	}
	return nil
}

// Remove implements Annotation. Removing twice is a no-op.
func (b *base) Remove() error {
	var errs []error
	for _, m := range b.Maps() {
		if err := b.UnbindFrom(m); err != nil && !errors.Is(err, ErrNotBound) {
			errs = append(errs, err)
		}
	}

	for _, l := range b.Layers() {
		l.drop(b.self)
		b.leaveLayer(l)
	}

	return errors.Join(errs...)
}

// Layers implements Annotation.
func (b *base) Layers() []*Layer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*Layer(nil), b.layers...)
}

func (b *base) joinLayer(l *Layer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.layers {
		if existing == l {
			return
		}
	}
	b.layers = append(b.layers, l)
}

func (b *base) leaveLayer(l *Layer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.layers {
		if existing == l {
			b.layers = append(b.layers[:i], b.layers[i+1:]...)
			return
		}
	}
}

// notify pushes c to every bound map.
func (b *base) notify(c Change) {
	for _, m := range b.Maps() {
		m.Update(b.self, c)
	}
}
