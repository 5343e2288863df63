package server

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"slices"

	"github.com/woozymasta/mapkit/internal/mapctl"
	"github.com/woozymasta/mapkit/internal/metrics"

	"github.com/rs/zerolog/log"
)

// DefaultTitle is the inspection page title.
const DefaultTitle = "mapkit inspector"

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Maps      map[string]*mapctl.Controller
	Names     []string
	IndexHTML []byte
	indexETag string
}

// NewServerContext registers controllers by name and renders the index page.
func NewServerContext(title string, maps ...*mapctl.Controller) (*ServerContext, error) {
	if title == "" {
		title = DefaultTitle
	}

	s := &ServerContext{Maps: make(map[string]*mapctl.Controller, len(maps))}
	for _, c := range maps {
		if _, dup := s.Maps[c.Name()]; dup {
			return nil, fmt.Errorf("duplicate map name %q", c.Name())
		}
		s.Maps[c.Name()] = c
		s.Names = append(s.Names, c.Name())

		log.Debug().Str("map", c.Name()).Msg("Map added to server context")
	}
	slices.Sort(s.Names)

	index, err := renderIndex(title)
	if err != nil {
		return nil, err
	}
	s.IndexHTML = index

	h := fnv.New64a()
	_, _ = h.Write(index)
	s.indexETag = fmt.Sprintf(`"%x"`, h.Sum64())

	log.Info().
		Int("maps_count", len(s.Names)).
		Int("index_bytes", len(index)).
		Msg("Server context initialized successfully")
	return s, nil
}

// Routes returns the request logging handler with every endpoint mounted.
func (s *ServerContext) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/maps", s.HandleMapsList)
	mux.HandleFunc("GET /api/maps/{name}/annotations", s.HandleAnnotations)
	mux.HandleFunc("GET /api/maps/{name}/snapshot.webp", s.HandleSnapshot)
	mux.HandleFunc("GET /api/maps/{name}/pick", s.HandlePick)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /", s.HandleIndex)
	return RequestLogger(mux)
}

// controller resolves the {name} path value or writes 404.
func (s *ServerContext) controller(w http.ResponseWriter, r *http.Request) (*mapctl.Controller, bool) {
	c, ok := s.Maps[r.PathValue("name")]
	if !ok {
		http.NotFound(w, r)
		return nil, false
	}
	return c, true
}
