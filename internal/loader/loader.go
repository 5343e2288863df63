// Package loader builds annotation layers from configured GeoJSON sources.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/woozymasta/mapkit/internal/annotation"
	"github.com/woozymasta/mapkit/internal/config"
	"github.com/woozymasta/mapkit/internal/geo"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

const (
	// maxBody caps remote GeoJSON downloads.
	maxBody = 32 << 20

	// DefaultConcurrency bounds parallel layer loads in LoadAll.
	DefaultConcurrency = 4
)

// ErrNoSource is returned for a layer without geojson, points, url or file.
var ErrNoSource = errors.New("layer has no source")

// Loader fetches and converts layer sources.
type Loader struct {
	client  *http.Client
	baseDir string
}

// New creates a Loader. Relative file paths resolve against baseDir.
func New(client *http.Client, baseDir string) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{client: client, baseDir: baseDir}
}

// Layer loads the source of cfg and converts every feature to an annotation.
// Features that fail validation are skipped with a warning.
func (l *Loader) Layer(ctx context.Context, cfg config.Layer) (*annotation.Layer, error) {
	fc, err := l.Fetch(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", cfg.Name, err)
	}

	layer := annotation.NewLayer(cfg.Name)
	skipped := 0
	for i, f := range fc.Features {
		items, err := Annotations(f, styleOf(cfg))
		if err != nil {
			skipped++
			log.Warn().Err(err).Str("layer", cfg.Name).Int("feature", i).Msg("Feature skipped")
			continue
		}
		for _, a := range items {
			layer.Add(a)
		}
	}

	log.Info().
		Str("layer", cfg.Name).
		Int("features", len(fc.Features)).
		Int("annotations", layer.Len()).
		Int("skipped", skipped).
		Msg("Layer loaded")
	return layer, nil
}

// Result is the outcome of loading one configured layer.
type Result struct {
	Config config.Layer
	Layer  *annotation.Layer
	Err    error
}

// LoadAll loads layers with at most concurrency loads in flight. Results
// keep the input order.
func (l *Loader) LoadAll(ctx context.Context, layers []config.Layer, concurrency int) []Result {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]Result, len(layers))
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i, lc := range layers {
		wg.Add(1)
		sem <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			layer, err := l.Layer(ctx, lc)
			results[i] = Result{Config: lc, Layer: layer, Err: err}
		}()
	}

	wg.Wait()
	return results
}

// Fetch returns the raw feature collection of cfg.
func (l *Loader) Fetch(ctx context.Context, cfg config.Layer) (*geojson.FeatureCollection, error) {
	switch {
	case cfg.GeoJSON != nil:
		log.Debug().Str("layer", cfg.Name).Msg("Using inline GeoJSON from config")
		data, err := json.Marshal(cfg.GeoJSON)
		if err != nil {
			return nil, err
		}
		return Parse(data)

	case len(cfg.Points) > 0:
		return pointsCollection(cfg.Points), nil

	case cfg.File != "":
		path := cfg.File
		if !filepath.IsAbs(path) && l.baseDir != "" {
			path = filepath.Join(l.baseDir, path)
		}
		log.Debug().Str("layer", cfg.Name).Str("path", path).Msg("Reading GeoJSON file")
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return Parse(data)

	case cfg.URL != "":
		log.Debug().Str("layer", cfg.Name).Str("source", cfg.URL).Msg("Downloading GeoJSON")
		return l.download(ctx, cfg.URL)
	}

	return nil, ErrNoSource
}

func (l *Loader) download(ctx context.Context, url string) (*geojson.FeatureCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a FeatureCollection, a single Feature or a bare geometry.
func Parse(data []byte) (*geojson.FeatureCollection, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}

	switch head.Type {
	case "FeatureCollection":
		return geojson.UnmarshalFeatureCollection(data)
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		fc := geojson.NewFeatureCollection()
		fc.Append(f)
		return fc, nil
	case "":
		return nil, errors.New("parse geojson: missing type")
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, err
		}
		fc := geojson.NewFeatureCollection()
		fc.Append(geojson.NewFeature(g.Geometry()))
		return fc, nil
	}
}

func pointsCollection(points []config.Point) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		f := geojson.NewFeature(orb.Point{p.Lon, p.Lat})
		f.Properties["name"] = p.Name
		if p.Type != "" {
			f.Properties["type"] = strings.ToLower(p.Type)
		}
		fc.Append(f)
	}
	return fc
}

// Style is the layer-wide appearance applied to converted features.
// Per-feature "color", "stroke_color", "fill_color" and "stroke_width"
// properties take precedence.
type Style struct {
	LayerName   string
	Color       string
	StrokeColor string
	FillColor   string
	StrokeWidth int
	Hidden      bool
}

func styleOf(cfg config.Layer) Style {
	return Style{
		LayerName:   cfg.Name,
		Color:       cfg.Color,
		StrokeColor: cfg.StrokeColor,
		FillColor:   cfg.FillColor,
		StrokeWidth: cfg.StrokeWidth,
		Hidden:      cfg.Hidden,
	}
}

// Annotations converts one feature. Multi-geometries and collections expand
// to one annotation per part.
func Annotations(f *geojson.Feature, st Style) ([]annotation.Annotation, error) {
	if f == nil || f.Geometry == nil {
		return nil, errors.New("feature has no geometry")
	}
	st = featureStyle(f.Properties, st)
	return convert(f.Geometry, f.Properties, st)
}

func convert(g orb.Geometry, props geojson.Properties, st Style) ([]annotation.Annotation, error) {
	var out []annotation.Annotation

	switch v := g.(type) {
	case orb.Point:
		m, err := annotation.NewMarker(annotation.MarkerOptions{
			Position: geo.FromOrb(v),
			Color:    st.Color,
			Hidden:   st.Hidden,
			Title:    props.MustString("name", props.MustString("title", "")),
			SubTitle: props.MustString("type", props.MustString("description", "")),
			Address:  props.MustString("address", ""),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, m)

	case orb.LineString:
		line, err := annotation.NewPolyline(annotation.PolylineOptions{
			Points:      geo.PathFromOrb(v),
			LayerName:   st.LayerName,
			StrokeColor: st.StrokeColor,
			StrokeWidth: st.StrokeWidth,
			Hidden:      st.Hidden,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, line)

	case orb.Polygon:
		poly, err := annotation.NewPolygon(annotation.PolygonOptions{
			Rings:       geo.RingsFromOrb(v),
			LayerName:   st.LayerName,
			FillColor:   st.FillColor,
			StrokeColor: st.StrokeColor,
			StrokeWidth: st.StrokeWidth,
			Hidden:      st.Hidden,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, poly)

	case orb.MultiPoint:
		for _, p := range v {
			out = appendConverted(out, p, props, st)
		}
	case orb.MultiLineString:
		for _, ls := range v {
			out = appendConverted(out, ls, props, st)
		}
	case orb.MultiPolygon:
		for _, p := range v {
			out = appendConverted(out, p, props, st)
		}
	case orb.Collection:
		for _, part := range v {
			out = appendConverted(out, part, props, st)
		}

	default:
		return nil, fmt.Errorf("unsupported geometry %s", g.GeoJSONType())
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s: no valid parts", g.GeoJSONType())
	}
	return out, nil
}

// appendConverted adds the parts of a multi-geometry that convert cleanly.
func appendConverted(out []annotation.Annotation, g orb.Geometry, props geojson.Properties, st Style) []annotation.Annotation {
	items, err := convert(g, props, st)
	if err != nil {
		log.Debug().Err(err).Str("layer", st.LayerName).Msg("Geometry part skipped")
		return out
	}
	return append(out, items...)
}

func featureStyle(props geojson.Properties, st Style) Style {
	if v := props.MustString("color", ""); v != "" {
		st.Color = v
	}
	if v := props.MustString("stroke_color", ""); v != "" {
		st.StrokeColor = v
	}
	if v := props.MustString("fill_color", ""); v != "" {
		st.FillColor = v
	}
	if v := props.MustInt("stroke_width", 0); v > 0 {
		st.StrokeWidth = v
	}
	return st
}
