package geo

import (
	"errors"
	"math"
	"testing"
)

func TestValidate(t *testing.T) {
	valid := []GeoPoint{
		{Lat: 0, Lon: 0},
		{Lat: 90, Lon: -180},
		{Lat: -90, Lon: 179.9999},
		{Lat: 40.744, Lon: -73.993},
	}
	for _, p := range valid {
		if err := Validate(p); err != nil {
			t.Errorf("Validate(%v) = %v, want nil", p, err)
		}
	}

	invalid := []GeoPoint{
		{Lat: 90.0001, Lon: 0},
		{Lat: -91, Lon: 0},
		{Lat: 0, Lon: 180},
		{Lat: 0, Lon: -180.5},
		{Lat: math.NaN(), Lon: 0},
	}
	for _, p := range invalid {
		err := Validate(p)
		if err == nil {
			t.Errorf("Validate(%v) = nil, want error", p)
			continue
		}
		if !errors.Is(err, ErrInvalidGeometry) {
			t.Errorf("Validate(%v) error %v is not ErrInvalidGeometry", p, err)
		}
		var coordErr *InvalidCoordinateError
		if !errors.As(err, &coordErr) {
			t.Errorf("Validate(%v) error %T is not *InvalidCoordinateError", p, err)
		}
	}
}

func TestIsEmpty(t *testing.T) {
	if !(GeoPoint{}).IsEmpty() {
		t.Error("Expected (0,0) to be empty")
	}
	if (GeoPoint{Lat: 0, Lon: 0.0001}).IsEmpty() {
		t.Error("Expected (0, 0.0001) not to be empty")
	}
	if (GeoPoint{Lat: -0.0001, Lon: 0}).IsEmpty() {
		t.Error("Expected (-0.0001, 0) not to be empty")
	}
}

func TestValidateRings(t *testing.T) {
	if err := ValidateRings(nil); !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("Expected ErrInvalidGeometry for no rings, got %v", err)
	}

	short := [][]GeoPoint{{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}}
	if err := ValidateRings(short); !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("Expected ErrInvalidGeometry for short ring, got %v", err)
	}

	ok := [][]GeoPoint{{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}, {Lat: 1, Lon: 2}}}
	if err := ValidateRings(ok); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestProjectRoundTrip(t *testing.T) {
	points := []GeoPoint{
		{Lat: 40.744, Lon: -73.993},
		{Lat: -33.86, Lon: 151.2},
		{Lat: 0, Lon: 0},
	}
	for _, p := range points {
		x, y := Project(p)
		got := Unproject(x, y)
		if math.Abs(got.Lat-p.Lat) > 1e-9 || math.Abs(got.Lon-p.Lon) > 1e-9 {
			t.Errorf("Round trip %v -> %v", p, got)
		}
	}
}

func TestFitBoundsEmptyAndSingle(t *testing.T) {
	vp := Viewport{Width: 1080, Height: 1920}

	center, zoom, err := FitBounds(nil, vp, 0.1, Offset{}, 14)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !center.IsEmpty() || zoom != 14 {
		t.Errorf("Expected empty center and default zoom, got %v %f", center, zoom)
	}

	p := GeoPoint{Lat: 40.744, Lon: -73.993}
	center, zoom, err = FitBounds([]GeoPoint{p, p}, vp, 0.1, Offset{}, 16)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if zoom != 16 {
		t.Errorf("Expected default zoom 16, got %f", zoom)
	}
	if math.Abs(center.Lat-p.Lat) > 1e-9 || math.Abs(center.Lon-p.Lon) > 1e-9 {
		t.Errorf("Expected center %v, got %v", p, center)
	}
}

func TestFitBoundsFitsViewport(t *testing.T) {
	points := []GeoPoint{
		{Lat: 40.70, Lon: -74.02},
		{Lat: 40.80, Lon: -73.93},
	}
	vp := Viewport{Width: 800, Height: 600}

	center, zoom, err := FitBounds(points, vp, 0.2, Offset{}, 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	scale := WorldScale(zoom)
	x1, y1 := Project(points[0])
	x2, y2 := Project(points[1])
	w := math.Abs(x2-x1) * 1.2 * scale
	h := math.Abs(y2-y1) * 1.2 * scale
	if w > vp.Width+1e-6 || h > vp.Height+1e-6 {
		t.Errorf("Padded box %fx%f does not fit viewport at zoom %f", w, h, zoom)
	}
	if math.Abs(w-vp.Width) > 1e-6 && math.Abs(h-vp.Height) > 1e-6 {
		t.Errorf("Expected one axis to be tight, got %fx%f", w, h)
	}

	b, _ := NewBounds(points...)
	if !b.Contains(center) {
		t.Errorf("Center %v outside bounds %v", center, b)
	}
}

func TestFitBoundsOffset(t *testing.T) {
	points := []GeoPoint{
		{Lat: 10, Lon: 10},
		{Lat: 20, Lon: 20},
	}
	vp := Viewport{Width: 500, Height: 500}

	plain, zoom, err := FitBounds(points, vp, 0, Offset{}, 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	shifted, zoom2, err := FitBounds(points, vp, 0, Offset{X: 100, Y: 0}, 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if zoom != zoom2 {
		t.Errorf("Offset must not change zoom: %f vs %f", zoom, zoom2)
	}

	px, _ := Project(plain)
	sx, _ := Project(shifted)
	dxPixels := (px - sx) * WorldScale(zoom)
	if math.Abs(dxPixels-100) > 1e-6 {
		t.Errorf("Expected 100px shift, got %f", dxPixels)
	}
}

func TestFitBoundsRejectsInvalid(t *testing.T) {
	_, _, err := FitBounds([]GeoPoint{{Lat: 100, Lon: 0}}, Viewport{Width: 1, Height: 1}, 0, Offset{}, 1)
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("Expected ErrInvalidGeometry, got %v", err)
	}

	_, _, err = FitBounds(nil, Viewport{}, 0, Offset{}, 1)
	if err == nil {
		t.Error("Expected viewport error")
	}
}
