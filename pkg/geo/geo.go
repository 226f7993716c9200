// Package geo assigns loc_ids to raw coordinates and provides the planar
// geometry helpers shared by aggregation and simplification.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// Orb returns the point in orb's [lon, lat] order.
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Valid reports whether the coordinate is finite and in range.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}
