package geo

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"locgeo/pkg/metrics"
	"locgeo/pkg/model"
)

// DefaultTolerance is the territorial-waters tolerance in degrees
// (about 12 nautical miles).
const DefaultTolerance = 0.2

// Pass identifies which geocoder pass assigned a point.
type Pass int

const (
	PassNone Pass = iota
	PassContains
	PassNearest
	PassWater
)

func (p Pass) String() string {
	switch p {
	case PassContains:
		return "pip"
	case PassNearest:
		return "nearest"
	case PassWater:
		return "water"
	default:
		return "ungeocodable"
	}
}

// Match is a successful assignment.
type Match struct {
	LocID string
	Name  string
	Pass  Pass
	// DistanceDeg is the boundary distance for PassNearest, 0 otherwise.
	DistanceDeg float64
}

// Options configure a Geocoder.
type Options struct {
	// Tolerance in degrees for the coastal pass. Zero means DefaultTolerance.
	Tolerance float64
	// Profile is used when Geocode is called with an empty profile.
	Profile Profile
	// Water overrides the built-in water partition.
	Water WaterTable
}

type candidate struct {
	rec  *model.GeometryRecord
	area float64
}

// Geocoder assigns loc_ids to points against one admin level of a store.
// It is immutable after construction and safe for concurrent use.
type Geocoder struct {
	tree    rtree.RTreeG[*candidate]
	size    int
	tol     float64
	profile Profile
	water   WaterTable
	metrics *metrics.Metrics
}

// NewGeocoder indexes the polygonal records. Point-only records and
// records flagged with invalid geometry are skipped.
func NewGeocoder(recs []*model.GeometryRecord, opts Options, m *metrics.Metrics) *Geocoder {
	g := &Geocoder{
		tol:     opts.Tolerance,
		profile: opts.Profile,
		water:   opts.Water,
		metrics: m,
	}
	if g.tol <= 0 {
		g.tol = DefaultTolerance
	}
	if g.profile == "" {
		g.profile = ProfileGlobal
	}
	if g.water == nil {
		g.water = DefaultWaterTable()
	}
	for _, r := range recs {
		if r.GeometryInvalid || !r.HasGeometry() {
			continue
		}
		b := r.Geometry.Bound()
		g.tree.Insert(b.Min, b.Max, &candidate{rec: r, area: Area(r.Geometry)})
		g.size++
	}
	slog.Debug("Geocoder: indexed polygons", "count", g.size, "tolerance_deg", g.tol)
	return g
}

// Len returns the number of indexed polygons.
func (g *Geocoder) Len() int { return g.size }

// Geocode assigns a loc_id to (lat, lon). Points that no pass can assign,
// including out-of-range coordinates, return an *UngeocodableError.
func (g *Geocoder) Geocode(lat, lon float64, profile Profile) (Match, error) {
	pt := Point{Lat: lat, Lon: lon}
	if !pt.Valid() {
		g.metrics.Geocode(PassNone.String())
		return Match{}, &UngeocodableError{Lat: lat, Lon: lon, Reason: "coordinate out of range"}
	}
	if profile == "" {
		profile = g.profile
	}
	p := pt.Orb()

	if m, ok := g.contains(p); ok {
		g.metrics.Geocode(m.Pass.String())
		return m, nil
	}
	if m, ok := g.nearest(p); ok {
		g.metrics.Geocode(m.Pass.String())
		return m, nil
	}
	if w, ok := g.water.Assign(p, profile); ok {
		g.metrics.Geocode(PassWater.String())
		return Match{LocID: w.LocID, Name: w.Name, Pass: PassWater}, nil
	}
	g.metrics.Geocode(PassNone.String())
	return Match{}, &UngeocodableError{Lat: lat, Lon: lon, Reason: fmt.Sprintf("no water body in profile %s", profile)}
}

// contains is Pass 1. Polygons of one level should not overlap; a point on
// a shared boundary goes to the lexicographically smallest loc_id.
func (g *Geocoder) contains(p orb.Point) (Match, bool) {
	var best *candidate
	g.tree.Search(p, p, func(_, _ [2]float64, c *candidate) bool {
		if !containsPoint(c.rec.Geometry, p) {
			return true
		}
		if best == nil || c.rec.LocID < best.rec.LocID {
			best = c
		}
		return true
	})
	if best == nil {
		return Match{}, false
	}
	return Match{LocID: best.rec.LocID, Name: best.rec.Name, Pass: PassContains}, true
}

// nearest is Pass 2: the closest boundary within tolerance. Equal
// distances prefer the smaller polygon, then the smaller loc_id.
func (g *Geocoder) nearest(p orb.Point) (Match, bool) {
	min := [2]float64{p[0] - g.tol, p[1] - g.tol}
	max := [2]float64{p[0] + g.tol, p[1] + g.tol}

	const eps = 1e-12
	var best *candidate
	bestDist := math.MaxFloat64
	g.tree.Search(min, max, func(_, _ [2]float64, c *candidate) bool {
		d := distanceToGeometry(p, c.rec.Geometry)
		if d > g.tol {
			return true
		}
		switch {
		case best == nil || d < bestDist-eps:
		case math.Abs(d-bestDist) <= eps && (c.area < best.area ||
			(c.area == best.area && c.rec.LocID < best.rec.LocID)):
		default:
			return true
		}
		best, bestDist = c, d
		return true
	})
	if best == nil {
		return Match{}, false
	}
	return Match{LocID: best.rec.LocID, Name: best.rec.Name, Pass: PassNearest, DistanceDeg: bestDist}, true
}

// Event is a raw event row from a converter.
type Event struct {
	Lat   float64
	Lon   float64
	Attrs map[string]string
}

// Assigned is an event with its loc_id.
type Assigned struct {
	Event
	LocID string
	Pass  Pass
}

// GeocodeAll assigns every event. Ungeocodable events are logged and
// dropped; the batch continues. It returns the assigned rows and the number
// of dropped events.
func (g *Geocoder) GeocodeAll(events []Event, profile Profile) ([]Assigned, int) {
	out := make([]Assigned, 0, len(events))
	failed := 0
	for i, ev := range events {
		m, err := g.Geocode(ev.Lat, ev.Lon, profile)
		if err != nil {
			failed++
			slog.Warn("Geocoder: skipping event", "row", i, "error", err)
			continue
		}
		out = append(out, Assigned{Event: ev, LocID: m.LocID, Pass: m.Pass})
	}
	if failed > 0 {
		slog.Info("Geocoder: batch finished with skipped events", "assigned", len(out), "skipped", failed)
	}
	return out, failed
}

// FinestLevel returns the records at the deepest admin level that carries
// polygon geometry, the usual input for NewGeocoder.
func FinestLevel(recs []*model.GeometryRecord) []*model.GeometryRecord {
	level := -1
	for _, r := range recs {
		if r.HasGeometry() && r.AdminLevel > level {
			level = r.AdminLevel
		}
	}
	var out []*model.GeometryRecord
	for _, r := range recs {
		if r.AdminLevel == level && r.HasGeometry() {
			out = append(out, r)
		}
	}
	return out
}
