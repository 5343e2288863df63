package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHandle indicates an operation on a disposed or never-created resource.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrResourceExhausted indicates the engine could not allocate a new handle.
	ErrResourceExhausted = errors.New("native resource exhausted")
)

// SceneErrorKind classifies scene load failures.
type SceneErrorKind int

// Scene error kinds reported by the engine.
const (
	SceneUpdatePathNotFound SceneErrorKind = iota + 1
	SceneUpdatePathYAMLSyntax
	SceneUpdateValueYAMLSyntax
	SceneNoValidScene
)

func (k SceneErrorKind) String() string {
	switch k {
	case SceneUpdatePathNotFound:
		return "scene_update_path_not_found"
	case SceneUpdatePathYAMLSyntax:
		return "scene_update_path_yaml_syntax_error"
	case SceneUpdateValueYAMLSyntax:
		return "scene_update_value_yaml_syntax_error"
	case SceneNoValidScene:
		return "no_valid_scene"
	default:
		return fmt.Sprintf("scene_error(%d)", int(k))
	}
}

// SceneError is delivered with a failed scene-ready callback.
type SceneError struct {
	Kind   SceneErrorKind
	Update SceneUpdate // offending update, if any
	Msg    string
}

func (e *SceneError) Error() string {
	if e.Update.Path != "" {
		return fmt.Sprintf("%s: %s (path %q, value %q)", e.Kind, e.Msg, e.Update.Path, e.Update.Value)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// CheckHandle returns ErrInvalidHandle for h <= 0.
func CheckHandle(h Handle) error {
	if !h.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	return nil
}
