// Package geocoder is an HTTP client for forward and reverse geocoding.
package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/woozymasta/mapkit/internal/geo"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

// DefaultURL is the public geocoding endpoint.
const DefaultURL = "https://api.mapfit.com/v2"

var (
	// ErrNoResult is returned when the service finds nothing.
	ErrNoResult = errors.New("geocoder: no result")

	// ErrEmptyAddress is returned for a blank query.
	ErrEmptyAddress = errors.New("geocoder: empty address")
)

// Entrance is a building entrance.
type Entrance struct {
	Point geo.GeoPoint `json:"point" yaml:"point"`
	Type  string       `json:"type" yaml:"type"`
}

// Address is one geocoding result.
type Address struct {
	StreetAddress string           `json:"street_address" yaml:"street_address"`
	Locality      string           `json:"locality,omitempty" yaml:"locality,omitempty"`
	Neighborhood  string           `json:"neighborhood,omitempty" yaml:"neighborhood,omitempty"`
	AdminArea     string           `json:"admin_area,omitempty" yaml:"admin_area,omitempty"`
	PostalCode    string           `json:"postal_code,omitempty" yaml:"postal_code,omitempty"`
	Country       string           `json:"country,omitempty" yaml:"country,omitempty"`
	Location      geo.GeoPoint     `json:"location" yaml:"location"`
	Entrances     []Entrance       `json:"entrances,omitempty" yaml:"entrances,omitempty"`
	Building      [][]geo.GeoPoint `json:"building,omitempty" yaml:"building,omitempty"`
	ResponseType  int              `json:"response_type" yaml:"response_type"`
}

// Point returns the first entrance, falling back to the address location.
// The empty point means the result carries no position.
func (a Address) Point() geo.GeoPoint {
	for _, e := range a.Entrances {
		if !e.Point.IsEmpty() {
			return e.Point
		}
	}
	return a.Location
}

// wire format of the service
type addressJSON struct {
	StreetAddress string            `json:"street_address"`
	Locality      string            `json:"locality"`
	Neighborhood  string            `json:"neighborhood"`
	AdminArea     string            `json:"admin_1"`
	PostalCode    string            `json:"postal_code"`
	Country       string            `json:"country"`
	Lat           float64           `json:"lat"`
	Lon           float64           `json:"lon"`
	ResponseType  int               `json:"response_type"`
	Entrances     []entranceJSON    `json:"entrances"`
	Building      *geojson.Geometry `json:"building"`
}

type entranceJSON struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Type string  `json:"entrance_type"`
}

func (a addressJSON) address() Address {
	out := Address{
		StreetAddress: a.StreetAddress,
		Locality:      a.Locality,
		Neighborhood:  a.Neighborhood,
		AdminArea:     a.AdminArea,
		PostalCode:    a.PostalCode,
		Country:       a.Country,
		Location:      geo.GeoPoint{Lat: a.Lat, Lon: a.Lon},
		ResponseType:  a.ResponseType,
	}
	for _, e := range a.Entrances {
		out.Entrances = append(out.Entrances, Entrance{Point: geo.GeoPoint{Lat: e.Lat, Lon: e.Lon}, Type: e.Type})
	}
	if a.Building != nil {
		switch g := a.Building.Geometry().(type) {
		case orb.Polygon:
			out.Building = geo.RingsFromOrb(g)
		case orb.MultiPolygon:
			if len(g) > 0 {
				out.Building = geo.RingsFromOrb(g[0])
			}
		}
	}
	return out
}

// Client talks to the geocoding service.
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

// Geocode resolves a street address. withBuilding asks for the building footprint.
func (c *Client) Geocode(ctx context.Context, address string, withBuilding bool) ([]Address, error) {
	if address == "" {
		return nil, ErrEmptyAddress
	}
	q := url.Values{}
	q.Set("street_address", address)
	q.Set("building", strconv.FormatBool(withBuilding))
	return c.get(ctx, "/geocode", q)
}

// ReverseGeocode resolves the address nearest to p.
func (c *Client) ReverseGeocode(ctx context.Context, p geo.GeoPoint, withBuilding bool) ([]Address, error) {
	if err := geo.Validate(p); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(p.Lon, 'f', -1, 64))
	q.Set("building", strconv.FormatBool(withBuilding))
	return c.get(ctx, "/reverse-geocode", q)
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]Address, error) {
	q.Set("api_key", c.apiKey)
	u := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocoder request: %w", err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoder request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("geocoder returned status %d: %s", resp.StatusCode, body)
	}

	var raw []addressJSON
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode geocoder response: %w", err)
	}

	log.Debug().
		Str("path", path).
		Int("results", len(raw)).
		Dur("duration", time.Since(start)).
		Msg("Geocoder response")

	if len(raw) == 0 {
		return nil, ErrNoResult
	}
	out := make([]Address, 0, len(raw))
	for _, a := range raw {
		out = append(out, a.address())
	}
	return out, nil
}
