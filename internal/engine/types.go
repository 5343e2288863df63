package engine

import (
	"fmt"
	"strings"
)

// EaseType selects the interpolation curve of eased changes.
type EaseType int

// Ease types, in native engine order.
const (
	EaseLinear EaseType = iota
	EaseCubicIn
	EaseCubicOut
	EaseCubicInOut
	EaseQuartIn
	EaseQuartOut
	EaseQuartInOut
	EaseQuintIn
	EaseQuintOut
	EaseQuintInOut
	EaseSineIn
	EaseSineOut
	EaseSineInOut
	EaseExpIn
	EaseExpOut
	EaseExpInOut
)

// DefaultEase is used when callers do not pick a curve.
const DefaultEase = EaseQuartInOut

var easeNames = [...]string{
	"linear",
	"cubic_in", "cubic_out", "cubic_in_out",
	"quart_in", "quart_out", "quart_in_out",
	"quint_in", "quint_out", "quint_in_out",
	"sine_in", "sine_out", "sine_in_out",
	"exp_in", "exp_out", "exp_in_out",
}

func (e EaseType) String() string {
	if e < 0 || int(e) >= len(easeNames) {
		return fmt.Sprintf("ease(%d)", int(e))
	}
	return easeNames[e]
}

// ParseEaseType parses names such as "quart_in_out". Empty yields DefaultEase.
func ParseEaseType(s string) (EaseType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultEase, nil
	}
	for i, name := range easeNames {
		if name == s {
			return EaseType(i), nil
		}
	}
	return DefaultEase, fmt.Errorf("unknown ease type %q", s)
}

// CameraType changes the appearance of 3D geometry.
type CameraType int

// Camera types.
const (
	CameraPerspective CameraType = iota
	CameraIsometric
	CameraFlat
)

func (c CameraType) String() string {
	switch c {
	case CameraPerspective:
		return "perspective"
	case CameraIsometric:
		return "isometric"
	case CameraFlat:
		return "flat"
	default:
		return fmt.Sprintf("camera(%d)", int(c))
	}
}
