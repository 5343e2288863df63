package annotation

import (
	"errors"
	"slices"
	"sync"
)

// Layer groups annotations so they can be shown on or hidden from maps
// together. Membership changes never bind or unbind on their own.
type Layer struct {
	mu    sync.RWMutex
	name  string
	items []Annotation
	maps  []Map
}

// NewLayer returns a layer holding items.
func NewLayer(name string, items ...Annotation) *Layer {
	l := &Layer{name: name}
	for _, a := range items {
		l.Add(a)
	}
	return l
}

// Name returns the layer name.
func (l *Layer) Name() string { return l.name }

// Add appends a to the layer. Adding a member twice is a no-op.
func (l *Layer) Add(a Annotation) {
	l.mu.Lock()
	if slices.Contains(l.items, a) {
		l.mu.Unlock()
		return
	}
	l.items = append(l.items, a)
	l.mu.Unlock()

	a.core().joinLayer(l)
}

// Remove drops a from the layer without touching its bindings.
func (l *Layer) Remove(a Annotation) bool {
	if !l.drop(a) {
		return false
	}
	a.core().leaveLayer(l)
	return true
}

func (l *Layer) drop(a Annotation) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := slices.Index(l.items, a)
	if i < 0 {
		return false
	}
	l.items = slices.Delete(l.items, i, i+1)
	return true
}

// Contains reports membership.
func (l *Layer) Contains(a Annotation) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Contains(l.items, a)
}

// Annotations returns the members in insertion order.
func (l *Layer) Annotations() []Annotation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.items)
}

// Len returns the member count.
func (l *Layer) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Maps returns the maps the layer was added to.
func (l *Layer) Maps() []Map {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.maps)
}

// IsOn reports whether the layer was added to m.
func (l *Layer) IsOn(m Map) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Contains(l.maps, m)
}

// AddTo binds every member not yet bound to m. Members already bound keep
// their binding. Errors from individual members are joined; the rest are
// still bound.
func (l *Layer) AddTo(m Map) error {
	l.mu.Lock()
	if !slices.Contains(l.maps, m) {
		l.maps = append(l.maps, m)
	}
	items := slices.Clone(l.items)
	l.mu.Unlock()

	var errs []error
	for _, a := range items {
		if _, err := a.BindTo(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Detach forgets m without touching member bindings. A map calls it when it
// goes away and has already released its handles.
func (l *Layer) Detach(m Map) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := slices.Index(l.maps, m); i >= 0 {
		l.maps = slices.Delete(l.maps, i, i+1)
	}
}

// RemoveFrom unbinds every member from m. Info popups are dismissed first.
func (l *Layer) RemoveFrom(m Map) error {
	l.mu.Lock()
	if i := slices.Index(l.maps, m); i >= 0 {
		l.maps = slices.Delete(l.maps, i, i+1)
	}
	items := slices.Clone(l.items)
	l.mu.Unlock()

	var errs []error
	for _, a := range items {
		m.DismissInfo(a)
		if err := a.UnbindFrom(m); err != nil && !errors.Is(err, ErrNotBound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
