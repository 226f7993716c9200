package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// containsPoint checks if a geometry contains a point.
// Points on a ring boundary count as contained.
func containsPoint(geom orb.Geometry, point orb.Point) bool {
	switch g := geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, point)
	case orb.MultiPolygon:
		for _, poly := range g {
			if planar.PolygonContains(poly, point) {
				return true
			}
		}
	}
	return false
}

// distanceToGeometry calculates the minimum distance in degrees from a point
// to any boundary of a geometry.
func distanceToGeometry(point orb.Point, geom orb.Geometry) float64 {
	switch g := geom.(type) {
	case orb.Polygon:
		return distanceToPolygon(point, g)
	case orb.MultiPolygon:
		minDist := math.MaxFloat64
		for _, poly := range g {
			d := distanceToPolygon(point, poly)
			if d < minDist {
				minDist = d
			}
		}
		return minDist
	case orb.Point:
		return planar.Distance(point, g)
	}
	return math.MaxFloat64
}

// distanceToPolygon calculates minimum distance from point to polygon boundary.
func distanceToPolygon(point orb.Point, poly orb.Polygon) float64 {
	minDist := math.MaxFloat64

	for _, ring := range poly {
		for i := 0; i < len(ring)-1; i++ {
			d := distanceToSegment(point, ring[i], ring[i+1])
			if d < minDist {
				minDist = d
			}
		}
	}

	return minDist
}

// distanceToSegment calculates the minimum distance from a point to a line segment.
func distanceToSegment(p, a, b orb.Point) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]

	if dx == 0 && dy == 0 {
		// Segment is a point
		return planar.Distance(p, a)
	}

	// Parameter t for the projection of p onto the line
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / (dx*dx + dy*dy)

	if t < 0 {
		return planar.Distance(p, a)
	} else if t > 1 {
		return planar.Distance(p, b)
	}

	closest := orb.Point{a[0] + t*dx, a[1] + t*dy}
	return planar.Distance(p, closest)
}

// DegreesToMeters converts a distance in degrees to approximate meters at a given latitude.
func DegreesToMeters(degrees, lat float64) float64 {
	// At the equator, 1 degree ≈ 111,320 meters
	latRad := lat * math.Pi / 180
	metersPerDegree := 111320 * math.Cos(latRad)
	return degrees * metersPerDegree
}

// Area returns the unsigned planar area of a polygonal geometry in square degrees.
func Area(g orb.Geometry) float64 {
	if g == nil {
		return 0
	}
	return math.Abs(planar.Area(g))
}

// RingCount counts all rings (exteriors and holes) of a polygonal geometry.
func RingCount(g orb.Geometry) int {
	switch t := g.(type) {
	case orb.Polygon:
		return len(t)
	case orb.MultiPolygon:
		n := 0
		for _, p := range t {
			n += len(p)
		}
		return n
	}
	return 0
}

// VertexCount counts the vertices of a polygonal geometry.
func VertexCount(g orb.Geometry) int {
	n := 0
	switch t := g.(type) {
	case orb.Polygon:
		for _, r := range t {
			n += len(r)
		}
	case orb.MultiPolygon:
		for _, p := range t {
			for _, r := range p {
				n += len(r)
			}
		}
	}
	return n
}
