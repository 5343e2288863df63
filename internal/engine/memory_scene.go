package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// SetSceneReadyFunc implements SceneEngine.
func (m *Memory) SetSceneReadyFunc(fn SceneReadyFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sceneReady = fn
}

// LoadScene implements SceneEngine.
func (m *Memory) LoadScene(src SceneSource, updates []SceneUpdate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("load_scene"); err != nil {
		return 0, err
	}

	m.sceneSeq++
	id := m.sceneSeq
	updates = append([]SceneUpdate(nil), updates...)

	m.dispatchScene(id, func() (map[string]any, *SceneError) {
		return m.resolveScene(src, updates)
	})
	return id, nil
}

// UpdateScene implements SceneEngine.
func (m *Memory) UpdateScene(updates []SceneUpdate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("update_scene"); err != nil {
		return 0, err
	}

	m.sceneSeq++
	id := m.sceneSeq
	updates = append([]SceneUpdate(nil), updates...)

	m.dispatchScene(id, func() (map[string]any, *SceneError) {
		m.mu.Lock()
		current := m.scene
		m.mu.Unlock()
		if current == nil {
			return nil, &SceneError{Kind: SceneNoValidScene, Msg: "no scene loaded"}
		}
		scene, err := cloneScene(current)
		if err != nil {
			return nil, &SceneError{Kind: SceneNoValidScene, Msg: err.Error()}
		}
		if sErr := applyUpdates(scene, updates); sErr != nil {
			return nil, sErr
		}
		return scene, nil
	})
	return id, nil
}

// dispatchScene runs build on the engine goroutine, commits the scene on
// success and reports to the ready func. Caller holds mu.
func (m *Memory) dispatchScene(id int, build func() (map[string]any, *SceneError)) {
	delay := m.loadDelay
	m.pending.Add(1)

	go func() {
		defer m.pending.Done()
		if delay > 0 {
			time.Sleep(delay)
		}

		scene, sErr := build()

		m.mu.Lock()
		if m.disposed {
			m.mu.Unlock()
			return
		}
		if sErr == nil {
			m.scene = scene
			// a new scene discards every point marker
			m.markers = make(map[Handle]*MarkerState)
		}
		fn := m.sceneReady
		m.mu.Unlock()

		log.Debug().Int("scene_id", id).Bool("ok", sErr == nil).Msg("Engine scene ready")

		if fn != nil {
			fn(id, sErr)
		}
	}()
}

// resolveScene parses the scene source and applies updates.
func (m *Memory) resolveScene(src SceneSource, updates []SceneUpdate) (map[string]any, *SceneError) {
	text := src.YAML
	if text == "" {
		m.mu.Lock()
		content, ok := m.scenes[src.Path]
		m.mu.Unlock()
		if !ok {
			return nil, &SceneError{Kind: SceneNoValidScene, Msg: fmt.Sprintf("scene %q not found", src.Path)}
		}
		text = content
	}

	scene := make(map[string]any)
	if err := yaml.Unmarshal([]byte(text), &scene); err != nil {
		return nil, &SceneError{Kind: SceneNoValidScene, Msg: err.Error()}
	}
	if sErr := applyUpdates(scene, updates); sErr != nil {
		return nil, sErr
	}
	return scene, nil
}

// applyUpdates sets each dotted path. Every parent must exist; the leaf may be new.
func applyUpdates(scene map[string]any, updates []SceneUpdate) *SceneError {
	for _, u := range updates {
		keys := strings.Split(u.Path, ".")
		for _, k := range keys {
			if strings.TrimSpace(k) == "" {
				return &SceneError{Kind: SceneUpdatePathYAMLSyntax, Update: u, Msg: "empty path component"}
			}
		}

		var value any
		if err := yaml.Unmarshal([]byte(u.Value), &value); err != nil {
			return &SceneError{Kind: SceneUpdateValueYAMLSyntax, Update: u, Msg: err.Error()}
		}

		node := scene
		for _, k := range keys[:len(keys)-1] {
			next, ok := node[k].(map[string]any)
			if !ok {
				return &SceneError{Kind: SceneUpdatePathNotFound, Update: u, Msg: fmt.Sprintf("key %q not found", k)}
			}
			node = next
		}
		node[keys[len(keys)-1]] = value
	}
	return nil
}

func cloneScene(scene map[string]any) (map[string]any, error) {
	data, err := yaml.Marshal(scene)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SceneValue returns the value at a dotted path of the current scene.
func (m *Memory) SceneValue(path string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var node any = m.scene
	for _, k := range strings.Split(path, ".") {
		mm, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = mm[k]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

// parseGeoJSONFeatures accepts a FeatureCollection or a single Feature.
func parseGeoJSONFeatures(data []byte) ([]Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil || fc.Type != "FeatureCollection" {
		f, fErr := geojson.UnmarshalFeature(data)
		if fErr != nil {
			if err != nil {
				return nil, err
			}
			return nil, fErr
		}
		fc = geojson.NewFeatureCollection().Append(f)
	}

	out := make([]Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		props := make(map[string]string, len(f.Properties))
		for k, v := range f.Properties {
			props[k] = fmt.Sprint(v)
		}
		out = append(out, Feature{Geometry: f.Geometry, Properties: props})
	}
	return out, nil
}
