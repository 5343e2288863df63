// Package server exposes map controllers over HTTP for inspection.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/woozymasta/mapkit/internal/annotation"
	"github.com/woozymasta/mapkit/internal/geo"
	"github.com/woozymasta/mapkit/internal/mapctl"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

// MapInfo is one entry of the maps list.
type MapInfo struct {
	Name        string       `json:"name"`
	Center      geo.GeoPoint `json:"center"`
	Zoom        float64      `json:"zoom"`
	DataSources []string     `json:"data_sources"`
	Layers      []string     `json:"layers"`
	mapctl.Stats
}

// PickResult is the body of the pick endpoint.
type PickResult struct {
	Hit  bool   `json:"hit"`
	ID   string `json:"id,omitempty"`
	Kind string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(v)
}

// HandleMapsList serves the state of every registered map.
func (s *ServerContext) HandleMapsList(w http.ResponseWriter, r *http.Request) {
	out := make([]MapInfo, 0, len(s.Names))
	for _, name := range s.Names {
		c := s.Maps[name]
		info := MapInfo{
			Name:        name,
			Center:      c.Center(),
			Zoom:        c.Zoom(),
			DataSources: c.DataSources(),
			Stats:       c.Stats(),
		}
		for _, l := range c.Layers() {
			info.Layers = append(info.Layers, l.Name())
		}
		out = append(out, info)
	}
	writeJSON(w, "application/json", out)
}

// HandleAnnotations serves every bound annotation of a map as GeoJSON.
func (s *ServerContext) HandleAnnotations(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, "application/geo+json", FeatureCollection(c.Annotations()))
}

// FeatureCollection exports annotations as GeoJSON features. Every feature
// carries the annotation id and kind.
func FeatureCollection(items []annotation.Annotation) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, a := range items {
		var f *geojson.Feature
		switch v := a.(type) {
		case *annotation.Marker:
			st := v.State()
			f = geojson.NewFeature(geo.ToOrb(st.Position))
			f.Properties["visible"] = st.Visible
			f.Properties["draw_order"] = st.DrawOrder
			f.Properties["style"] = st.Style
			for key, val := range map[string]string{
				"color":    st.Color,
				"title":    st.Title,
				"subtitle": st.SubTitle,
				"address":  st.Address,
			} {
				if val != "" {
					f.Properties[key] = val
				}
			}
		case annotation.Shape:
			f = geojson.NewFeature(v.Geometry())
			for key, val := range v.Properties() {
				f.Properties[key] = val
			}
			f.Properties["layer"] = v.LayerName()
			f.Properties["visible"] = v.Visible()
		default:
			continue
		}
		f.ID = a.ID()
		f.Properties["kind"] = a.Kind().String()
		fc.Append(f)
	}
	return fc
}

// HandleSnapshot serves the current frame of a map as WebP.
func (s *ServerContext) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}

	quality := float32(mapctl.DefaultCaptureQuality)
	if q := r.URL.Query().Get("quality"); q != "" {
		v, err := strconv.ParseFloat(q, 32)
		if err != nil || v <= 0 || v > 100 {
			http.Error(w, "quality must be in (0, 100]", http.StatusBadRequest)
			return
		}
		quality = float32(v)
	}

	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", "no-store")
	if err := c.CaptureWebP(w, quality); err != nil {
		log.Error().Err(err).Str("map", c.Name()).Msg("Snapshot failed")
		w.Header().Del("Content-Type")
		http.Error(w, err.Error(), statusOf(err))
	}
}

// HandlePick resolves the annotation under the x/y screen position.
func (s *ServerContext) HandlePick(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}

	x, errX := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
	y, errY := strconv.ParseFloat(r.URL.Query().Get("y"), 64)
	if errX != nil || errY != nil {
		http.Error(w, "x and y are required numbers", http.StatusBadRequest)
		return
	}

	a, err := c.Pick(x, y)
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}

	var res PickResult
	if a != nil {
		res = PickResult{Hit: true, ID: a.ID(), Kind: a.Kind().String()}
	}
	writeJSON(w, "application/json", res)
}

// HandleIndex serves the inspection page.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && strings.Contains(r.URL.Path, ".") {
		http.NotFound(w, r)
		return
	}

	if match := r.Header.Get("If-None-Match"); match == s.indexETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", s.indexETag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}

func statusOf(err error) int {
	if errors.Is(err, mapctl.ErrDisposed) {
		return http.StatusGone
	}
	return http.StatusInternalServerError
}
