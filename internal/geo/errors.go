package geo

import (
	"errors"
	"fmt"
)

// ErrInvalidGeometry is the root of every geometry validation failure.
var ErrInvalidGeometry = errors.New("invalid geometry")

// InvalidCoordinateError indicates a coordinate out of valid bounds.
type InvalidCoordinateError struct {
	Lat, Lon float64
}

func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("invalid coordinate: lat=%f lon=%f (lat must be within ±90, lon within [-180, 180))",
		e.Lat, e.Lon)
}

// Is makes errors.Is(err, ErrInvalidGeometry) hold.
func (e *InvalidCoordinateError) Is(target error) bool {
	return target == ErrInvalidGeometry
}
