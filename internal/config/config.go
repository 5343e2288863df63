// Package config handles configuration loading and shared data structures.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/woozymasta/mapkit/internal/engine"
	"github.com/woozymasta/mapkit/internal/geo"

	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("api key is not set")

// Defaults applied by Validate.
const (
	DefaultZoom       = 14
	DefaultPickRadius = 8
	DefaultTimeout    = 10 * time.Second
	DefaultSceneURL   = "https://cdn.mapfit.com/v3-0/themes/mapfit-day.yaml"
)

// Config represents the root configuration file structure.
type Config struct {
	APIKey      string  `yaml:"api_key" json:"-"`
	Attribution string  `yaml:"attribution,omitempty" json:"attribution,omitempty"`
	Geocoder    Service `yaml:"geocoder,omitempty" json:"-"`
	Directions  Service `yaml:"directions,omitempty" json:"-"`
	Maps        []Map   `yaml:"maps" json:"maps"`
}

// Service is an HTTP collaborator endpoint.
type Service struct {
	URL     string        `yaml:"url,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Map represents a single map controller configuration.
type Map struct {
	Name         string               `yaml:"name" json:"name"`
	Scene        string               `yaml:"scene,omitempty" json:"scene,omitempty"`
	SceneYAML    string               `yaml:"scene_yaml,omitempty" json:"-"`
	SceneUpdates []engine.SceneUpdate `yaml:"scene_updates,omitempty" json:"-"`
	Center       geo.GeoPoint         `yaml:"center,omitempty" json:"center"`
	Zoom         float64              `yaml:"zoom,omitempty" json:"zoom"`
	PickRadius   float64              `yaml:"pick_radius,omitempty" json:"-"`
	Ease         string               `yaml:"ease,omitempty" json:"-"`
	Viewport     Viewport             `yaml:"viewport,omitempty" json:"viewport"`
	Layers       []Layer              `yaml:"layers,omitempty" json:"layers,omitempty"`
}

// Viewport is the initial surface size in pixels.
type Viewport struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Layer describes annotations imported at start.
type Layer struct {
	// defining GeoJSON directly in config.yaml
	GeoJSON map[string]any `yaml:"geojson,omitempty" json:"-"`
	Points  []Point        `yaml:"points,omitempty" json:"-"`

	Name        string `yaml:"name" json:"name"`
	URL         string `yaml:"url,omitempty" json:"-"`
	File        string `yaml:"file,omitempty" json:"-"`
	Color       string `yaml:"color,omitempty" json:"color,omitempty"`
	StrokeColor string `yaml:"stroke_color,omitempty" json:"-"`
	FillColor   string `yaml:"fill_color,omitempty" json:"-"`
	StrokeWidth int    `yaml:"stroke_width,omitempty" json:"-"`
	Hidden      bool   `yaml:"hidden,omitempty" json:"hidden,omitempty"`
}

// Point is a named location in a point list.
type Point struct {
	Name string  `yaml:"name" json:"name"`
	Type string  `yaml:"type,omitempty" json:"type,omitempty"`
	Lat  float64 `yaml:"lat" json:"lat"`
	Lon  float64 `yaml:"lng" json:"lng"`
}

// Load reads and parses the YAML configuration file from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate applies defaults and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.APIKey == "" {
		errs = append(errs, ErrMissingAPIKey)
	}
	if c.Geocoder.Timeout <= 0 {
		c.Geocoder.Timeout = DefaultTimeout
	}
	if c.Directions.Timeout <= 0 {
		c.Directions.Timeout = DefaultTimeout
	}

	seen := make(map[string]bool, len(c.Maps))
	for i := range c.Maps {
		m := &c.Maps[i]
		if m.Name == "" {
			errs = append(errs, fmt.Errorf("maps[%d]: name is required", i))
		} else if seen[m.Name] {
			errs = append(errs, fmt.Errorf("maps[%d]: duplicate name %q", i, m.Name))
		}
		seen[m.Name] = true

		if err := m.validate(); err != nil {
			errs = append(errs, fmt.Errorf("map %q: %w", m.Name, err))
		}
	}

	return errors.Join(errs...)
}

func (m *Map) validate() error {
	var errs []error

	if m.Scene == "" && m.SceneYAML == "" {
		m.Scene = DefaultSceneURL
	}
	if m.Zoom <= 0 {
		m.Zoom = DefaultZoom
	}
	if m.Zoom > geo.MaxZoom {
		errs = append(errs, fmt.Errorf("zoom %.1f exceeds %.0f", m.Zoom, geo.MaxZoom))
	}
	if m.PickRadius <= 0 {
		m.PickRadius = DefaultPickRadius
	}
	if !m.Center.IsEmpty() {
		if err := geo.Validate(m.Center); err != nil {
			errs = append(errs, fmt.Errorf("center: %w", err))
		}
	}
	if _, err := engine.ParseEaseType(m.Ease); err != nil {
		errs = append(errs, err)
	}
	if m.Viewport.Width < 0 || m.Viewport.Height < 0 {
		errs = append(errs, fmt.Errorf("viewport %dx%d is negative", m.Viewport.Width, m.Viewport.Height))
	}

	for i, l := range m.Layers {
		sources := 0
		for _, set := range []bool{l.GeoJSON != nil, len(l.Points) > 0, l.URL != "", l.File != ""} {
			if set {
				sources++
			}
		}
		if l.Name == "" {
			errs = append(errs, fmt.Errorf("layers[%d]: name is required", i))
		}
		if sources != 1 {
			errs = append(errs, fmt.Errorf("layer %q: exactly one of geojson, points, url or file is required", l.Name))
		}
	}

	return errors.Join(errs...)
}

// Map returns the map configuration by name.
func (c *Config) Map(name string) (*Map, bool) {
	for i := range c.Maps {
		if c.Maps[i].Name == name {
			return &c.Maps[i], true
		}
	}
	return nil, false
}
