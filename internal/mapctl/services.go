package mapctl

import (
	"context"
	"errors"
	"fmt"

	"github.com/woozymasta/mapkit/internal/annotation"
	"github.com/woozymasta/mapkit/internal/directions"
	"github.com/woozymasta/mapkit/internal/geo"
	"github.com/woozymasta/mapkit/internal/geocoder"

	"github.com/rs/zerolog/log"
)

// ErrNoService is returned when a geocoder or directions client is not configured.
var ErrNoService = errors.New("service not configured")

// Geocoder resolves street addresses.
type Geocoder interface {
	Geocode(ctx context.Context, address string, withBuilding bool) ([]geocoder.Address, error)
}

// Router computes routes.
type Router interface {
	Route(ctx context.Context, req directions.Request) (*directions.Route, error)
}

// RouteFunc receives a route result on the UI looper.
type RouteFunc func(route *directions.Route, err error)

// AddMarkerWithAddress geocodes address and adds a marker at its entrance.
// With withBuilding set, the building footprint is added as a polygon too;
// the polygon is nil when the service returns no footprint.
func (c *Controller) AddMarkerWithAddress(ctx context.Context, address string, withBuilding bool, opts annotation.MarkerOptions) (*annotation.Marker, *annotation.Polygon, error) {
	if c.geocoder == nil {
		return nil, nil, fmt.Errorf("geocoder: %w", ErrNoService)
	}
	if err := c.checkDisposed(); err != nil {
		return nil, nil, err
	}

	results, err := c.geocoder.Geocode(ctx, address, withBuilding)
	if err != nil {
		return nil, nil, err
	}
	if len(results) == 0 {
		return nil, nil, fmt.Errorf("%q: %w", address, geocoder.ErrNoResult)
	}
	first := results[0]
	p := first.Point()
	if p.IsEmpty() {
		return nil, nil, fmt.Errorf("%q: %w", address, geocoder.ErrNoResult)
	}

	opts.Position = p
	if opts.Address == "" {
		opts.Address = first.StreetAddress
	}
	m, err := c.AddMarker(opts)
	if err != nil {
		return nil, nil, err
	}

	var building *annotation.Polygon
	if withBuilding && len(first.Building) > 0 {
		building, err = c.AddPolygon(annotation.PolygonOptions{Rings: first.Building})
		if err != nil {
			log.Warn().Err(err).Str("map", c.name).Str("address", address).Msg("Building polygon rejected")
		}
	}

	log.Debug().Str("map", c.name).Str("address", address).Stringer("point", p).Msg("Marker added from address")
	return m, building, nil
}

// RequestRoute computes a route in the background and reports it to fn on
// the UI looper.
func (c *Controller) RequestRoute(ctx context.Context, req directions.Request, fn RouteFunc) error {
	if c.directions == nil {
		return fmt.Errorf("directions: %w", ErrNoService)
	}
	if err := c.checkDisposed(); err != nil {
		return err
	}

	go func() {
		route, err := c.directions.Route(ctx, req)
		if err != nil {
			log.Warn().Err(err).Str("map", c.name).Msg("Route request failed")
		}
		if fn != nil {
			c.dispatch(func() { fn(route, err) })
		}
	}()
	return nil
}

// AddRoute draws one polyline per leg of route and fits the camera to it
// when fit is set.
func (c *Controller) AddRoute(route *directions.Route, opts annotation.PolylineOptions, fit bool) ([]*annotation.Polyline, error) {
	if route == nil || len(route.Legs) == 0 {
		return nil, directions.ErrNoRoute
	}

	lines := make([]*annotation.Polyline, 0, len(route.Legs))
	for i, leg := range route.Legs {
		legOpts := opts
		legOpts.Points = leg.Points
		line, err := c.AddPolyline(legOpts)
		if err != nil {
			for _, l := range lines {
				_ = l.UnbindFrom(c)
			}
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}
		lines = append(lines, line)
	}

	if fit {
		if b, ok := geo.NewBounds(route.Points()...); ok {
			if err := c.SetBounds(b, DefaultBoundsPadding, 0, geo.Offset{}); err != nil {
				log.Warn().Err(err).Str("map", c.name).Msg("Failed to fit route bounds")
			}
		}
	}
	return lines, nil
}
