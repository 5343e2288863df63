package mapctl

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/woozymasta/mapkit/internal/annotation"
	"github.com/woozymasta/mapkit/internal/engine"
	"github.com/woozymasta/mapkit/internal/metrics"

	"github.com/rs/zerolog/log"
)

// ErrNoSceneUpdates is returned by UpdateScene without updates.
var ErrNoSceneUpdates = errors.New("scene updates can not be empty")

// SceneState is the scene lifecycle state of a controller.
type SceneState int

// Scene states.
const (
	SceneNone SceneState = iota
	SceneLoading
	SceneReady
)

func (s SceneState) String() string {
	switch s {
	case SceneNone:
		return "none"
	case SceneLoading:
		return "loading"
	case SceneReady:
		return "ready"
	default:
		return "scene_state(" + strconv.Itoa(int(s)) + ")"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s SceneState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// sceneMachine tracks NoScene -> Loading -> Ready. Only the latest request
// id is authoritative. Guarded by Controller.mu.
type sceneMachine struct {
	state     SceneState
	settled   SceneState // state to fall back to when a load fails
	latest    int
	requested time.Time
}

func (s *sceneMachine) begin(id int) {
	if s.state != SceneLoading {
		s.settled = s.state
	}
	s.state = SceneLoading
	s.latest = id
	s.requested = time.Now()
}

// SceneState returns the current lifecycle state and the latest scene id.
func (c *Controller) SceneState() (SceneState, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scene.state, c.scene.latest
}

// LoadScene starts loading the scene file at path and returns its id.
func (c *Controller) LoadScene(path string, updates ...engine.SceneUpdate) (int, error) {
	return c.loadScene(engine.SceneSource{Path: path}, updates)
}

// LoadSceneYAML starts loading an inline scene; relative URLs resolve against resourceRoot.
func (c *Controller) LoadSceneYAML(yaml, resourceRoot string, updates ...engine.SceneUpdate) (int, error) {
	return c.loadScene(engine.SceneSource{YAML: yaml, ResourceRoot: resourceRoot}, updates)
}

func (c *Controller) loadScene(src engine.SceneSource, updates []engine.SceneUpdate) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(); err != nil {
		return 0, err
	}

	id, err := c.eng.LoadScene(src, updates)
	if c.native("load_scene", err) != nil {
		return 0, fmt.Errorf("load scene: %w", err)
	}
	c.scene.begin(id)

	log.Debug().
		Str("map", c.name).
		Int("scene_id", id).
		Str("path", src.Path).
		Int("updates", len(updates)).
		Msg("Scene load requested")
	return id, nil
}

// UpdateScene applies updates to the current scene and returns the new scene id.
func (c *Controller) UpdateScene(updates ...engine.SceneUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, ErrNoSceneUpdates
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(); err != nil {
		return 0, err
	}

	id, err := c.eng.UpdateScene(updates)
	if c.native("update_scene", err) != nil {
		return 0, fmt.Errorf("update scene: %w", err)
	}
	c.scene.begin(id)

	log.Debug().Str("map", c.name).Int("scene_id", id).Int("updates", len(updates)).Msg("Scene update requested")
	return id, nil
}

// Enable3DBuildings toggles extruded buildings in the current scene.
func (c *Controller) Enable3DBuildings(enable bool) (int, error) {
	return c.UpdateScene(engine.SceneUpdate{Path: "global.show_3d_buildings", Value: strconv.FormatBool(enable)})
}

// EnableTransitLayer toggles the transit overlay in the current scene.
func (c *Controller) EnableTransitLayer(enable bool) (int, error) {
	return c.UpdateScene(engine.SceneUpdate{Path: "global.transit_layer", Value: strconv.FormatBool(enable)})
}

// onSceneReady is the engine callback; it hops onto the render looper.
func (c *Controller) onSceneReady(id int, sErr *engine.SceneError) {
	c.post(func() { c.handleSceneReady(id, sErr) })
}

// handleSceneReady settles the state machine, remaps markers on success and
// then reports to the listener on the UI looper. Runs on the render looper.
func (c *Controller) handleSceneReady(id int, sErr *engine.SceneError) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}

	// the engine committed this scene and dropped every marker handle,
	// superseded or not
	remapped := 0
	if sErr == nil {
		c.scene.settled = SceneReady
		remapped = c.remapMarkersLocked()
	}

	if id != c.scene.latest {
		latest := c.scene.latest
		if sErr == nil && c.scene.state != SceneLoading {
			c.scene.state = SceneReady
		}
		c.mu.Unlock()

		metrics.SceneCallbacksSuppressed.Inc()
		log.Debug().
			Str("map", c.name).
			Int("scene_id", id).
			Int("latest", latest).
			Int("markers_remapped", remapped).
			Msg("Superseded scene callback suppressed")
		return
	}

	requested := c.scene.requested
	c.scene.state = c.scene.settled
	listener := c.on.sceneReady
	c.mu.Unlock()

	metrics.ObserveScene(sErr == nil, requested)
	if sErr != nil {
		log.Warn().Err(sErr).Str("map", c.name).Int("scene_id", id).Msg("Scene load failed")
	} else {
		log.Info().Str("map", c.name).Int("scene_id", id).Int("markers_remapped", remapped).Msg("Scene ready")
	}

	if listener != nil {
		c.dispatch(func() { listener(id, sErr) })
	}
}

// remapMarkersLocked re-adds every registered marker: the engine drops all
// marker handles on scene load. Caller holds mu, on the render looper.
func (c *Controller) remapMarkersLocked() int {
	old := c.reg.markers
	c.reg.markers = make(map[engine.Handle]*annotation.Marker, len(old))

	remapped := 0
	for _, h := range sortedKeys(old) {
		m := old[h]

		// the handle is normally gone already
		_ = c.eng.RemoveMarker(h)

		nh, err := c.allocMarkerLocked()
		if err != nil {
			log.Error().Err(err).Str("map", c.name).Str("id", m.ID()).Msg("Marker lost during scene remap")
			m.Forget(c)
			metrics.AnnotationsBound.WithLabelValues(annotation.KindMarker.String()).Dec()
			continue
		}

		c.reg.markers[nh] = m
		m.Rebind(c, annotation.Binding{Handle: nh})
		c.applyMarker(nh, m.State(), allMarkerFields...)
		remapped++

		log.Trace().Str("map", c.name).Int64("old", int64(h)).Int64("new", int64(nh)).Msg("Marker remapped")
	}

	metrics.MarkersRemapped.Add(float64(remapped))
	return remapped
}
