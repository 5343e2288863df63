// Package directions is an HTTP client for turn-by-turn routes.
package directions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/woozymasta/mapkit/internal/geo"

	"github.com/rs/zerolog/log"
	"github.com/twpayne/go-polyline"
)

// DefaultURL is the public directions endpoint.
const DefaultURL = "https://api.mapfit.com/v2"

// ErrNoRoute is returned when the service finds no route.
var ErrNoRoute = errors.New("directions: no route")

// shapeCodec decodes leg shapes, encoded with six digits of precision.
var shapeCodec = polyline.Codec{Dim: 2, Scale: 1e6}

// Mode is the means of travel.
type Mode string

// Travel modes.
const (
	Driving Mode = "driving"
	Walking Mode = "walking"
	Cycling Mode = "cycling"
)

// ParseMode parses a travel mode; empty selects Driving.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return Driving, nil
	case Driving, Walking, Cycling:
		return m, nil
	default:
		return "", fmt.Errorf("unknown travel mode %q", s)
	}
}

// Request selects origin and destination by address or by point.
type Request struct {
	OriginAddress      string
	Origin             geo.GeoPoint
	DestinationAddress string
	Destination        geo.GeoPoint
	Mode               Mode
}

func (r Request) validate() error {
	if r.OriginAddress == "" && r.Origin.IsEmpty() {
		return errors.New("directions: origin is required")
	}
	if r.DestinationAddress == "" && r.Destination.IsEmpty() {
		return errors.New("directions: destination is required")
	}
	for _, p := range []geo.GeoPoint{r.Origin, r.Destination} {
		if !p.IsEmpty() {
			if err := geo.Validate(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// Summary is the length (in Units) and duration of a route or leg.
type Summary struct {
	Length float64       `json:"length" yaml:"length"`
	Time   time.Duration `json:"time" yaml:"time"`
}

// Maneuver is one instruction of a leg.
type Maneuver struct {
	Type        int           `json:"type" yaml:"type"`
	Instruction string        `json:"instruction" yaml:"instruction"`
	Length      float64       `json:"length" yaml:"length"`
	Time        time.Duration `json:"time" yaml:"time"`
	BeginShape  int           `json:"begin_shape_index" yaml:"begin_shape_index"`
	EndShape    int           `json:"end_shape_index" yaml:"end_shape_index"`
}

// Leg is the part of a route between two stops.
type Leg struct {
	Points    []geo.GeoPoint `json:"points" yaml:"points"`
	Summary   Summary        `json:"summary" yaml:"summary"`
	Maneuvers []Maneuver     `json:"maneuvers" yaml:"maneuvers"`
}

// Route is a decoded trip.
type Route struct {
	Legs    []Leg   `json:"legs" yaml:"legs"`
	Summary Summary `json:"summary" yaml:"summary"`
	Units   string  `json:"units" yaml:"units"`
}

// Points returns every leg shape concatenated.
func (r *Route) Points() []geo.GeoPoint {
	var out []geo.GeoPoint
	for _, l := range r.Legs {
		out = append(out, l.Points...)
	}
	return out
}

// wire format of the service
type requestJSON struct {
	SourceAddress      string    `json:"source-address,omitempty"`
	SourceLocation     []float64 `json:"source-location,omitempty"`
	DestinationAddress string    `json:"destination-address,omitempty"`
	DestinationLoc     []float64 `json:"destination-location,omitempty"`
	Type               Mode      `json:"type"`
}

type responseJSON struct {
	Trip struct {
		Status  int         `json:"status"`
		Units   string      `json:"units"`
		Summary summaryJSON `json:"summary"`
		Legs    []struct {
			Shape     string      `json:"shape"`
			Summary   summaryJSON `json:"summary"`
			Maneuvers []struct {
				Type        int     `json:"type"`
				Instruction string  `json:"instruction"`
				Length      float64 `json:"length"`
				Time        float64 `json:"time"`
				BeginShape  int     `json:"begin_shape_index"`
				EndShape    int     `json:"end_shape_index"`
			} `json:"maneuvers"`
		} `json:"legs"`
	} `json:"trip"`
}

type summaryJSON struct {
	Length float64 `json:"length"`
	Time   float64 `json:"time"`
}

func (s summaryJSON) summary() Summary {
	return Summary{Length: s.Length, Time: seconds(s.Time)}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func location(p geo.GeoPoint) []float64 {
	if p.IsEmpty() {
		return nil
	}
	return []float64{p.Lat, p.Lon}
}

// Client talks to the directions service.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New returns a client. An empty baseURL selects DefaultURL.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Route requests directions for req.
func (c *Client) Route(ctx context.Context, req Request) (*Route, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.Mode == "" {
		req.Mode = Driving
	}

	body, err := json.Marshal(requestJSON{
		SourceAddress:      req.OriginAddress,
		SourceLocation:     location(req.Origin),
		DestinationAddress: req.DestinationAddress,
		DestinationLoc:     location(req.Destination),
		Type:               req.Mode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal directions request: %w", err)
	}

	u := c.baseURL + "/directions?api_key=" + c.apiKey
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create directions request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("directions request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("directions returned status %d: %s", resp.StatusCode, msg)
	}

	var raw responseJSON
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode directions response: %w", err)
	}

	route, err := decodeRoute(&raw)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("mode", string(req.Mode)).
		Int("legs", len(route.Legs)).
		Float64("length", route.Summary.Length).
		Dur("duration", time.Since(start)).
		Msg("Directions response")
	return route, nil
}

func decodeRoute(raw *responseJSON) (*Route, error) {
	if len(raw.Trip.Legs) == 0 {
		return nil, ErrNoRoute
	}

	route := &Route{
		Summary: raw.Trip.Summary.summary(),
		Units:   raw.Trip.Units,
	}
	for i, l := range raw.Trip.Legs {
		points, err := DecodeShape(l.Shape)
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}
		leg := Leg{Points: points, Summary: l.Summary.summary()}
		for _, m := range l.Maneuvers {
			leg.Maneuvers = append(leg.Maneuvers, Maneuver{
				Type:        m.Type,
				Instruction: m.Instruction,
				Length:      m.Length,
				Time:        seconds(m.Time),
				BeginShape:  m.BeginShape,
				EndShape:    m.EndShape,
			})
		}
		route.Legs = append(route.Legs, leg)
	}
	return route, nil
}

// DecodeShape decodes an encoded polyline with six digits of precision.
func DecodeShape(shape string) ([]geo.GeoPoint, error) {
	coords, _, err := shapeCodec.DecodeCoords([]byte(shape))
	if err != nil {
		return nil, fmt.Errorf("decode shape: %w", err)
	}
	points := make([]geo.GeoPoint, 0, len(coords))
	for _, c := range coords {
		points = append(points, geo.GeoPoint{Lat: c[0], Lon: c[1]})
	}
	return points, nil
}

// EncodeShape is the inverse of DecodeShape.
func EncodeShape(points []geo.GeoPoint) string {
	coords := make([][]float64, 0, len(points))
	for _, p := range points {
		coords = append(coords, []float64{p.Lat, p.Lon})
	}
	return string(shapeCodec.EncodeCoords(nil, coords))
}
