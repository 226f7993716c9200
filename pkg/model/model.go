package model

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"locgeo/pkg/locid"
)

// GeometryRecord is one row in a geometry store.
type GeometryRecord struct {
	LocID      string           `json:"loc_id"`    // Primary Key within its scope
	ParentID   string           `json:"parent_id"` // Cached, derivable from LocID
	AdminLevel int              `json:"admin_level"`
	EntityType locid.EntityType `json:"entity_type"`
	Name       string           `json:"name"`

	// Geometry is nil for point-only entities.
	Geometry orb.Geometry `json:"-"`
	Centroid orb.Point    `json:"centroid"`
	BBox     orb.Bound    `json:"bbox"`

	// Derived on load, not authoritative
	ChildrenCount    int `json:"children_count"`
	DescendantsCount int `json:"descendants_count"`

	// Pipeline bookkeeping
	GeometryInvalid bool   `json:"geometry_invalid"` // dissolve could not produce valid geometry
	SourceHash      string `json:"source_hash"`      // hash of the child set this parent was built from
	Simplified      bool   `json:"simplified"`
}

// HasGeometry reports whether the record carries a polygonal geometry.
func (r *GeometryRecord) HasGeometry() bool {
	switch g := r.Geometry.(type) {
	case orb.Polygon:
		return len(g) > 0
	case orb.MultiPolygon:
		return len(g) > 0
	}
	return false
}

// Derive fills ParentID, Centroid and BBox from LocID and Geometry using
// the default codec. Point-only records keep their existing centroid.
func (r *GeometryRecord) Derive() {
	r.DeriveWith(locid.Default())
}

// DeriveWith is Derive with an explicit codec.
func (r *GeometryRecord) DeriveWith(c *locid.Codec) {
	if p, ok := c.ParentOf(r.LocID); ok {
		r.ParentID = p
	} else {
		r.ParentID = ""
	}
	if r.Geometry == nil {
		r.BBox = orb.Bound{Min: r.Centroid, Max: r.Centroid}
		return
	}
	r.BBox = r.Geometry.Bound()
	if pt, ok := r.Geometry.(orb.Point); ok {
		r.Centroid = pt
		return
	}
	cen, area := planar.CentroidArea(r.Geometry)
	if area == 0 {
		cen = r.BBox.Center()
	}
	r.Centroid = cen
}

// Clone returns a shallow copy with a deep-copied geometry.
func (r *GeometryRecord) Clone() *GeometryRecord {
	c := *r
	if r.Geometry != nil {
		c.Geometry = orb.Clone(r.Geometry)
	}
	return &c
}

// MetricRow is one (loc_id, year) row of a metric table.
// A nil value is a null cell, not zero.
type MetricRow struct {
	LocID  string              `json:"loc_id"`
	Year   int                 `json:"year"`
	Values map[string]*float64 `json:"values"`
}

// Summary describes one scope for the discovery index.
type Summary struct {
	Scope    string         `json:"scope"`
	Version  int            `json:"version"`
	Records  int            `json:"records"`
	ByLevel  map[int]int    `json:"by_level"`
	ByType   map[string]int `json:"by_type"`
	BBox     orb.Bound      `json:"bbox"`
	Invalid  int            `json:"invalid"`
	MaxDepth int            `json:"max_depth"`
}

// Float is a helper for building metric values.
func Float(v float64) *float64 { return &v }
