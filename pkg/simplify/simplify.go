// Package simplify reduces vertex counts per admin level without changing
// topology.
package simplify

import (
	"log/slog"

	"github.com/paulmach/orb"

	"locgeo/pkg/geo"
	"locgeo/pkg/metrics"
	"locgeo/pkg/model"
)

// Tolerances maps admin level to tolerance in degrees. Levels deeper than
// the table use the last entry.
type Tolerances []float64

// DefaultTolerances is coarser for countries, finer for subdivisions.
var DefaultTolerances = Tolerances{0.01, 0.005, 0.001, 0.0005}

// For returns the tolerance for an admin level.
func (t Tolerances) For(level int) float64 {
	if len(t) == 0 {
		return 0
	}
	if level < 0 {
		level = 0
	}
	if level >= len(t) {
		return t[len(t)-1]
	}
	return t[level]
}

// Geometry simplifies g with tolerance. The input is returned unchanged
// when it is invalid to begin with, or when the result would be invalid or
// carry more rings than the input. It never mutates g.
func Geometry(g orb.Geometry, tolerance float64) (orb.Geometry, bool) {
	if tolerance <= 0 || geo.Validate(g) != nil {
		return g, false
	}
	// Simplification of invalid input can fail to terminate, hence the
	// validation above.
	p := geo.ToPolygonal(g)
	if p == nil {
		return g, false
	}
	out := geo.FromGeom(p.Simplify(tolerance))
	if out == nil {
		return g, false
	}
	if geo.RingCount(out) > geo.RingCount(g) || geo.Validate(out) != nil {
		return g, false
	}
	return out, true
}

// Simplifier applies the per-level policy to records.
type Simplifier struct {
	tolerances Tolerances
	metrics    *metrics.Metrics
}

// New creates a Simplifier. Nil tolerances use DefaultTolerances.
func New(t Tolerances, m *metrics.Metrics) *Simplifier {
	if t == nil {
		t = DefaultTolerances
	}
	return &Simplifier{tolerances: t, metrics: m}
}

// Apply simplifies a record in place. Disaster perimeters, point-only
// records and records already marked simplified are skipped. It reports
// whether the record changed.
func (s *Simplifier) Apply(r *model.GeometryRecord) bool {
	if r.Simplified || r.EntityType.IsDisaster() || !r.HasGeometry() {
		s.metrics.Simplify("skipped")
		return false
	}
	before := geo.VertexCount(r.Geometry)
	out, ok := Geometry(r.Geometry, s.tolerances.For(r.AdminLevel))
	// Kept geometries are still marked so reruns skip them.
	r.Simplified = true
	if !ok {
		s.metrics.Simplify("kept")
		slog.Debug("Simplify: kept original", "loc_id", r.LocID)
		return true
	}
	r.Geometry = out
	r.Derive()
	s.metrics.Simplify("simplified")
	slog.Debug("Simplify: reduced", "loc_id", r.LocID, "before", before, "after", geo.VertexCount(out))
	return true
}

// ApplyAll simplifies every record and returns the ones that changed.
func (s *Simplifier) ApplyAll(recs []*model.GeometryRecord) []*model.GeometryRecord {
	var changed []*model.GeometryRecord
	for _, r := range recs {
		if s.Apply(r) {
			changed = append(changed, r)
		}
	}
	return changed
}
