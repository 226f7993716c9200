package model

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestDerive(t *testing.T) {
	r := &GeometryRecord{
		LocID:    "USA-CA-6037",
		Geometry: orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}},
	}
	r.Derive()
	assert.Equal(t, "USA-CA", r.ParentID)
	assert.Equal(t, orb.Point{1, 1}, r.Centroid)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}}, r.BBox)
	assert.True(t, r.HasGeometry())
}

func TestDerivePointOnly(t *testing.T) {
	r := &GeometryRecord{LocID: "USA", Centroid: orb.Point{-98, 39}}
	r.Derive()
	assert.Equal(t, "", r.ParentID)
	assert.Equal(t, orb.Point{-98, 39}, r.Centroid)
	assert.False(t, r.HasGeometry())
}

func TestClone(t *testing.T) {
	r := &GeometryRecord{LocID: "USA", Geometry: orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}}
	c := r.Clone()
	c.Geometry.(orb.Polygon)[0][0] = orb.Point{5, 5}
	assert.Equal(t, orb.Point{0, 0}, r.Geometry.(orb.Polygon)[0][0])
}
