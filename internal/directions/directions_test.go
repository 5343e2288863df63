package directions

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/woozymasta/mapkit/internal/geo"
)

func TestShapeRoundTrip(t *testing.T) {
	in := []geo.GeoPoint{{Lat: 40.744, Lon: -73.993}, {Lat: 40.7485, Lon: -73.9857}}
	out, err := DecodeShape(EncodeShape(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("points = %v", out)
	}
	for i := range in {
		if math.Abs(out[i].Lat-in[i].Lat) > 1e-6 || math.Abs(out[i].Lon-in[i].Lon) > 1e-6 {
			t.Fatalf("point %d = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestRoute(t *testing.T) {
	shape := EncodeShape([]geo.GeoPoint{{Lat: 40.744, Lon: -73.993}, {Lat: 40.75, Lon: -73.99}})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/directions" || r.URL.Query().Get("api_key") != "key" {
			t.Errorf("request = %s %s", r.Method, r.URL)
		}
		var body requestJSON
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.SourceAddress != "A" || len(body.DestinationLoc) != 2 || body.Type != Walking {
			t.Errorf("body = %+v", body)
		}

		resp := map[string]any{
			"trip": map[string]any{
				"units":   "miles",
				"summary": map[string]any{"length": 1.5, "time": 90},
				"legs": []any{map[string]any{
					"shape":   shape,
					"summary": map[string]any{"length": 1.5, "time": 90},
					"maneuvers": []any{
						map[string]any{"type": 1, "instruction": "Head north", "length": 1.5, "time": 90, "begin_shape_index": 0, "end_shape_index": 1},
					},
				}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(srv.URL, "key", time.Second)
	route, err := c.Route(context.Background(), Request{
		OriginAddress: "A",
		Destination:   geo.GeoPoint{Lat: 40.75, Lon: -73.99},
		Mode:          Walking,
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}

	if route.Units != "miles" || route.Summary.Time != 90*time.Second {
		t.Fatalf("route = %+v", route)
	}
	if len(route.Legs) != 1 || len(route.Legs[0].Points) != 2 {
		t.Fatalf("legs = %+v", route.Legs)
	}
	if m := route.Legs[0].Maneuvers; len(m) != 1 || m[0].Instruction != "Head north" {
		t.Fatalf("maneuvers = %+v", m)
	}
	if len(route.Points()) != 2 {
		t.Fatalf("points = %v", route.Points())
	}
}

func TestRouteNoLegs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"trip":{"legs":[]}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "key", time.Second).Route(context.Background(), Request{OriginAddress: "A", DestinationAddress: "B"})
	if !errors.Is(err, ErrNoRoute) {
		t.Fatalf("err = %v, want ErrNoRoute", err)
	}
}

func TestRouteValidation(t *testing.T) {
	c := New("http://127.0.0.1:0", "key", time.Second)
	if _, err := c.Route(context.Background(), Request{DestinationAddress: "B"}); err == nil {
		t.Fatal("expected missing origin error")
	}
	_, err := c.Route(context.Background(), Request{OriginAddress: "A", Destination: geo.GeoPoint{Lat: 95, Lon: 1}})
	if !errors.Is(err, geo.ErrInvalidGeometry) {
		t.Fatalf("err = %v", err)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != Driving {
		t.Fatalf("empty = %q, %v", m, err)
	}
	if m, err := ParseMode("Walking"); err != nil || m != Walking {
		t.Fatalf("walking = %q, %v", m, err)
	}
	if _, err := ParseMode("teleport"); err == nil {
		t.Fatal("expected error")
	}
}
