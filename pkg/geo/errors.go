package geo

import (
	"errors"
	"fmt"
)

var (
	// ErrUngeocodable is returned when all three passes fail to assign a point.
	ErrUngeocodable = errors.New("ungeocodable point")
	// ErrInvalidGeometry marks geometry that fails the validity predicate.
	ErrInvalidGeometry = errors.New("invalid geometry")
)

// UngeocodableError carries the point that could not be assigned.
type UngeocodableError struct {
	Lat, Lon float64
	Reason   string
}

func (e *UngeocodableError) Error() string {
	return fmt.Sprintf("ungeocodable point (%.5f, %.5f): %s", e.Lat, e.Lon, e.Reason)
}

func (e *UngeocodableError) Unwrap() error { return ErrUngeocodable }
