package geo

import (
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ToPolygonal converts an orb polygon or multipolygon for use with the
// polygon clipping operations of ctessum/geom. Other types yield nil.
func ToPolygonal(g orb.Geometry) geom.Polygonal {
	switch t := g.(type) {
	case orb.Polygon:
		return toPolygon(t)
	case orb.MultiPolygon:
		mp := make(geom.MultiPolygon, 0, len(t))
		for _, p := range t {
			mp = append(mp, toPolygon(p))
		}
		return mp
	}
	return nil
}

func toPolygon(p orb.Polygon) geom.Polygon {
	out := make(geom.Polygon, 0, len(p))
	for _, r := range p {
		path := make(geom.Path, 0, len(r))
		for _, pt := range r {
			path = append(path, geom.Point{X: pt[0], Y: pt[1]})
		}
		out = append(out, path)
	}
	return out
}

// FromGeom converts a ctessum geometry back to orb, regrouping rings into
// exteriors and holes. Empty results yield nil.
func FromGeom(g geom.Geom) orb.Geometry {
	var rings []orb.Ring
	switch t := g.(type) {
	case geom.Polygon:
		rings = pathsToRings(t)
	case geom.MultiPolygon:
		for _, p := range t {
			rings = append(rings, pathsToRings(p)...)
		}
	default:
		return nil
	}
	return regroup(rings)
}

func pathsToRings(p geom.Polygon) []orb.Ring {
	out := make([]orb.Ring, 0, len(p))
	for _, path := range p {
		r := make(orb.Ring, 0, len(path)+1)
		for _, pt := range path {
			r = append(r, orb.Point{pt.X, pt.Y})
		}
		if len(r) > 0 && !r.Closed() {
			r = append(r, r[0])
		}
		if len(r) >= 4 {
			out = append(out, r)
		}
	}
	return out
}

// FromRings builds a polygon or multipolygon from an unordered ring list,
// as found in shapefiles. Unclosed rings are closed; degenerate rings are
// dropped.
func FromRings(rings []orb.Ring) orb.Geometry {
	out := make([]orb.Ring, 0, len(rings))
	for _, r := range rings {
		if len(r) > 0 && !r.Closed() {
			r = append(r[:len(r):len(r)], r[0])
		}
		if len(r) >= 4 {
			out = append(out, r)
		}
	}
	return regroup(out)
}

// regroup nests a flat ring list: a ring inside an even number of other
// rings is an exterior, otherwise a hole of its smallest containing
// exterior. Exteriors are wound counter-clockwise, holes clockwise.
func regroup(rings []orb.Ring) orb.Geometry {
	if len(rings) == 0 {
		return nil
	}
	type ringInfo struct {
		ring  orb.Ring
		area  float64
		depth int
		outer int
	}
	infos := make([]*ringInfo, len(rings))
	for i, r := range rings {
		infos[i] = &ringInfo{ring: r, area: math.Abs(planar.Area(orb.Polygon{r})), outer: -1}
	}
	// Largest first so containers precede the rings they contain.
	sort.SliceStable(infos, func(i, j int) bool { return infos[i].area > infos[j].area })

	for i, ri := range infos {
		inner := interiorPoint(ri.ring)
		for j := 0; j < i; j++ {
			if planar.RingContains(infos[j].ring, inner) {
				ri.depth++
			}
		}
	}

	var polys orb.MultiPolygon
	index := make(map[int]int) // infos index -> polys index
	for i, ri := range infos {
		if ri.depth%2 == 0 {
			if ri.ring.Orientation() != orb.CCW {
				ri.ring.Reverse()
			}
			index[i] = len(polys)
			polys = append(polys, orb.Polygon{ri.ring})
			continue
		}
		// Smallest containing exterior is the last one found in area order.
		inner := interiorPoint(ri.ring)
		owner := -1
		for j := i - 1; j >= 0; j-- {
			if infos[j].depth == ri.depth-1 && planar.RingContains(infos[j].ring, inner) {
				owner = j
				break
			}
		}
		if owner < 0 {
			continue
		}
		if ri.ring.Orientation() != orb.CW {
			ri.ring.Reverse()
		}
		pi := index[owner]
		polys[pi] = append(polys[pi], ri.ring)
	}

	switch len(polys) {
	case 0:
		return nil
	case 1:
		return polys[0]
	}
	return polys
}

// interiorPoint returns a point just off the first edge midpoint, on the
// inside of the ring, so containment tests avoid shared vertices.
func interiorPoint(r orb.Ring) orb.Point {
	a, b := r[0], r[1]
	mid := orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
	dx, dy := b[0]-a[0], b[1]-a[1]
	l := math.Hypot(dx, dy)
	if l == 0 {
		return mid
	}
	eps := l * 1e-6
	// Left normal is inside for a CCW ring.
	nx, ny := -dy/l*eps, dx/l*eps
	if r.Orientation() == orb.CW {
		nx, ny = -nx, -ny
	}
	return orb.Point{mid[0] + nx, mid[1] + ny}
}

// Union dissolves polygonal geometries into one. Non-polygonal inputs are
// ignored. The result is not validated.
func Union(geoms ...orb.Geometry) orb.Geometry {
	var acc geom.Polygonal
	started := false
	for _, g := range geoms {
		p := ToPolygonal(g)
		if p == nil {
			continue
		}
		if !started {
			acc = p.Union(geom.Polygon{})
			started = true
			continue
		}
		acc = acc.Union(p)
	}
	if !started {
		return nil
	}
	return FromGeom(acc)
}

// SnapRound rounds every coordinate to a grid of the given cell size and
// drops repeated vertices and collapsed rings.
func SnapRound(g orb.Geometry, grid float64) orb.Geometry {
	snap := func(v float64) float64 { return math.Round(v/grid) * grid }
	ring := func(r orb.Ring) orb.Ring {
		out := make(orb.Ring, 0, len(r))
		for _, pt := range r {
			p := orb.Point{snap(pt[0]), snap(pt[1])}
			if len(out) > 0 && out[len(out)-1].Equal(p) {
				continue
			}
			out = append(out, p)
		}
		if len(out) > 0 && !out.Closed() {
			out = append(out, out[0])
		}
		return out
	}
	poly := func(p orb.Polygon) orb.Polygon {
		var out orb.Polygon
		for i, r := range p {
			sr := ring(r)
			if len(sr) < 4 {
				if i == 0 {
					return nil
				}
				continue
			}
			out = append(out, sr)
		}
		return out
	}
	switch t := g.(type) {
	case orb.Polygon:
		if p := poly(t); p != nil {
			return p
		}
		return nil
	case orb.MultiPolygon:
		var out orb.MultiPolygon
		for _, p := range t {
			if sp := poly(p); sp != nil {
				out = append(out, sp)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return g
}

// RepairGrid is the snap grid used by Repair, about one centimetre.
const RepairGrid = 1e-7

// Repair is the zero-buffer substitute: snap-round the geometry and run it
// through a self-union, which rebuilds rings without self-intersections.
// It returns ErrInvalidGeometry when the result is still invalid.
func Repair(g orb.Geometry) (orb.Geometry, error) {
	snapped := SnapRound(g, RepairGrid)
	if snapped == nil {
		return nil, ErrInvalidGeometry
	}
	out := Union(snapped)
	if out == nil {
		return nil, ErrInvalidGeometry
	}
	if err := Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}
