package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/rtree"
)

// Validate checks that g is a valid polygonal geometry: closed rings of at
// least four points, finite coordinates, no self-intersections within a
// ring, no crossings between rings of one polygon, holes inside their
// exterior, and multipolygon parts that at most touch. Failures wrap
// ErrInvalidGeometry.
func Validate(g orb.Geometry) error {
	switch t := g.(type) {
	case orb.Polygon:
		return validatePolygon(t)
	case orb.MultiPolygon:
		if len(t) == 0 {
			return fmt.Errorf("%w: empty multipolygon", ErrInvalidGeometry)
		}
		for i, p := range t {
			if err := validatePolygon(p); err != nil {
				return fmt.Errorf("part %d: %w", i, err)
			}
		}
		if i, j, ok := overlappingParts(t); ok {
			return fmt.Errorf("%w: parts %d and %d overlap", ErrInvalidGeometry, i, j)
		}
		return nil
	case nil:
		return fmt.Errorf("%w: nil geometry", ErrInvalidGeometry)
	}
	return fmt.Errorf("%w: %s is not polygonal", ErrInvalidGeometry, g.GeoJSONType())
}

// IsValid is Validate without the reason.
func IsValid(g orb.Geometry) bool {
	return Validate(g) == nil
}

func validatePolygon(p orb.Polygon) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty polygon", ErrInvalidGeometry)
	}
	for i, r := range p {
		if err := validateRing(r); err != nil {
			return fmt.Errorf("ring %d: %w", i, err)
		}
	}
	for i, h := range p[1:] {
		for _, pt := range h {
			if !planar.RingContains(p[0], pt) {
				return fmt.Errorf("%w: hole %d outside exterior", ErrInvalidGeometry, i+1)
			}
		}
	}
	if crossingRings(p) {
		return fmt.Errorf("%w: rings cross", ErrInvalidGeometry)
	}
	return nil
}

func validateRing(r orb.Ring) error {
	if len(r) < 4 {
		return fmt.Errorf("%w: ring has %d points", ErrInvalidGeometry, len(r))
	}
	if !r.Closed() {
		return fmt.Errorf("%w: ring not closed", ErrInvalidGeometry)
	}
	for _, pt := range r {
		if math.IsNaN(pt[0]) || math.IsNaN(pt[1]) || math.IsInf(pt[0], 0) || math.IsInf(pt[1], 0) {
			return fmt.Errorf("%w: non-finite coordinate", ErrInvalidGeometry)
		}
	}
	if math.Abs(planar.Area(orb.Polygon{r})) == 0 {
		return fmt.Errorf("%w: zero-area ring", ErrInvalidGeometry)
	}
	if selfIntersects(dedupe(r)) {
		return fmt.Errorf("%w: ring self-intersects", ErrInvalidGeometry)
	}
	return nil
}

// dedupe drops consecutive repeated vertices.
func dedupe(r orb.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(r))
	for i, pt := range r {
		if i > 0 && pt.Equal(r[i-1]) {
			continue
		}
		out = append(out, pt)
	}
	return out
}

type segment struct {
	ring int
	idx  int
	a, b orb.Point
}

func segBounds(a, b orb.Point) (min, max [2]float64) {
	return [2]float64{math.Min(a[0], b[0]), math.Min(a[1], b[1])},
		[2]float64{math.Max(a[0], b[0]), math.Max(a[1], b[1])}
}

// selfIntersects reports whether two non-adjacent edges of a closed ring
// touch or cross. Edges are indexed in an R-tree so large rings stay cheap.
func selfIntersects(r orb.Ring) bool {
	n := len(r) - 1 // number of edges
	if n < 3 {
		return true
	}
	var tr rtree.RTreeG[segment]
	for i := 0; i < n; i++ {
		min, max := segBounds(r[i], r[i+1])
		tr.Insert(min, max, segment{idx: i, a: r[i], b: r[i+1]})
	}
	hit := false
	for i := 0; i < n && !hit; i++ {
		a, b := r[i], r[i+1]
		min, max := segBounds(a, b)
		tr.Search(min, max, func(_, _ [2]float64, s segment) bool {
			if s.idx <= i {
				return true
			}
			adjacent := s.idx == i+1 || (i == 0 && s.idx == n-1)
			if adjacent {
				// Adjacent edges share one vertex; they only conflict when
				// they fold back over each other.
				if collinearOverlap(a, b, s.a, s.b) {
					hit = true
					return false
				}
				return true
			}
			if segmentsIntersect(a, b, s.a, s.b) {
				hit = true
				return false
			}
			return true
		})
	}
	return hit
}

// crossingRings reports whether edges of different rings of one polygon
// properly cross. Touching at a single vertex is allowed.
func crossingRings(p orb.Polygon) bool {
	if len(p) < 2 {
		return false
	}
	var tr rtree.RTreeG[segment]
	for ri, r := range p {
		for i := 0; i < len(r)-1; i++ {
			min, max := segBounds(r[i], r[i+1])
			tr.Insert(min, max, segment{ring: ri, idx: i, a: r[i], b: r[i+1]})
		}
	}
	hit := false
	for ri, r := range p {
		for i := 0; i < len(r)-1 && !hit; i++ {
			a, b := r[i], r[i+1]
			min, max := segBounds(a, b)
			tr.Search(min, max, func(_, _ [2]float64, s segment) bool {
				if s.ring <= ri {
					return true
				}
				if properCross(a, b, s.a, s.b) {
					hit = true
					return false
				}
				return true
			})
		}
		if hit {
			return true
		}
	}
	return false
}

func orient(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func onSegment(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

// segmentsIntersect reports whether closed segments ab and cd share a point.
func segmentsIntersect(a, b, c, d orb.Point) bool {
	d1 := sign(orient(c, d, a))
	d2 := sign(orient(c, d, b))
	d3 := sign(orient(a, b, c))
	d4 := sign(orient(a, b, d))
	if d1*d2 < 0 && d3*d4 < 0 {
		return true
	}
	return (d1 == 0 && onSegment(c, d, a)) ||
		(d2 == 0 && onSegment(c, d, b)) ||
		(d3 == 0 && onSegment(a, b, c)) ||
		(d4 == 0 && onSegment(a, b, d))
}

// properCross reports an intersection at a point interior to both segments.
func properCross(a, b, c, d orb.Point) bool {
	d1 := sign(orient(c, d, a))
	d2 := sign(orient(c, d, b))
	d3 := sign(orient(a, b, c))
	d4 := sign(orient(a, b, d))
	if d1*d2 < 0 && d3*d4 < 0 {
		return true
	}
	// Collinear overlap of positive length between rings also counts.
	return d1 == 0 && d2 == 0 && collinearOverlap(a, b, c, d)
}

// collinearOverlap reports whether collinear segments share more than a point.
func collinearOverlap(a, b, c, d orb.Point) bool {
	if sign(orient(a, b, c)) != 0 || sign(orient(a, b, d)) != 0 {
		return false
	}
	// Project onto the dominant axis.
	axis := 0
	if math.Abs(b[0]-a[0]) < math.Abs(b[1]-a[1]) {
		axis = 1
	}
	lo1, hi1 := math.Min(a[axis], b[axis]), math.Max(a[axis], b[axis])
	lo2, hi2 := math.Min(c[axis], d[axis]), math.Max(c[axis], d[axis])
	return math.Min(hi1, hi2)-math.Max(lo1, lo2) > 0
}

// overlappingParts finds two parts whose interiors intersect: their edges
// cross or overlap, or one lies inside the other. Parts are validated first.
func overlappingParts(mp orb.MultiPolygon) (int, int, bool) {
	if len(mp) < 2 {
		return 0, 0, false
	}
	var tr rtree.RTreeG[int]
	for i, p := range mp {
		b := p.Bound()
		tr.Insert(b.Min, b.Max, i)
	}
	for i, p := range mp {
		b := p.Bound()
		found := -1
		tr.Search(b.Min, b.Max, func(_, _ [2]float64, j int) bool {
			if j <= i {
				return true
			}
			if partsOverlap(p, mp[j]) {
				found = j
				return false
			}
			return true
		})
		if found >= 0 {
			return i, found, true
		}
	}
	return 0, 0, false
}

func partsOverlap(a, b orb.Polygon) bool {
	if planar.PolygonContains(b, interiorPoint(a[0])) || planar.PolygonContains(a, interiorPoint(b[0])) {
		return true
	}
	var tr rtree.RTreeG[segment]
	for ri, r := range b {
		for i := 0; i < len(r)-1; i++ {
			min, max := segBounds(r[i], r[i+1])
			tr.Insert(min, max, segment{ring: ri, idx: i, a: r[i], b: r[i+1]})
		}
	}
	hit := false
	for _, r := range a {
		for i := 0; i < len(r)-1 && !hit; i++ {
			p, q := r[i], r[i+1]
			min, max := segBounds(p, q)
			tr.Search(min, max, func(_, _ [2]float64, s segment) bool {
				if properCross(p, q, s.a, s.b) {
					hit = true
					return false
				}
				return true
			})
		}
	}
	return hit
}
