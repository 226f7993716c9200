package simplify

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locgeo/pkg/geo"
	"locgeo/pkg/locid"
	"locgeo/pkg/model"
)

// wobbly returns a closed ring approximating a circle with noise on every
// other vertex, so simplification has something to remove.
func wobbly(cx, cy, r float64, n int) orb.Ring {
	ring := make(orb.Ring, 0, n+1)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		rr := r
		if i%2 == 1 {
			rr += r * 0.0001
		}
		ring = append(ring, orb.Point{cx + rr*math.Cos(a), cy + rr*math.Sin(a)})
	}
	return append(ring, ring[0])
}

func TestTolerances(t *testing.T) {
	assert.Equal(t, 0.01, DefaultTolerances.For(0))
	assert.Equal(t, 0.001, DefaultTolerances.For(2))
	assert.Equal(t, 0.0005, DefaultTolerances.For(9))
	assert.Equal(t, 0.01, DefaultTolerances.For(-1))
	assert.Equal(t, 0.0, Tolerances{}.For(1))
}

func TestGeometry_TopologyPreserved(t *testing.T) {
	for level := 0; level < 5; level++ {
		poly := orb.Polygon{wobbly(0, 0, 1, 400), wobbly(0, 0, 0.3, 100)}
		require.NoError(t, geo.Validate(poly))

		out, ok := Geometry(poly, DefaultTolerances.For(level))
		if !ok {
			continue
		}
		assert.NoError(t, geo.Validate(out), "level %d", level)
		assert.LessOrEqual(t, geo.RingCount(out), geo.RingCount(poly), "level %d", level)
		assert.Less(t, geo.VertexCount(out), geo.VertexCount(poly), "level %d", level)
	}
}

func TestGeometry_InvalidInputUntouched(t *testing.T) {
	bowtie := orb.Polygon{{{0, 0}, {2, 2}, {2, 0}, {0, 2}, {0, 0}}}
	out, ok := Geometry(bowtie, 0.01)
	assert.False(t, ok)
	assert.Equal(t, orb.Geometry(bowtie), out)
}

func TestApply(t *testing.T) {
	s := New(nil, nil)

	r := &model.GeometryRecord{LocID: "USA-CA", AdminLevel: 1, Geometry: orb.Polygon{wobbly(-120, 37, 3, 400)}}
	before := geo.VertexCount(r.Geometry)
	assert.True(t, s.Apply(r))
	assert.True(t, r.Simplified)
	assert.Less(t, geo.VertexCount(r.Geometry), before)

	// Second pass is a no-op
	assert.False(t, s.Apply(r))

	fire := &model.GeometryRecord{LocID: "USA-CA-FIRE_2020", EntityType: locid.EntityWildfire, Geometry: orb.Polygon{wobbly(0, 0, 1, 400)}}
	assert.False(t, s.Apply(fire))
	assert.False(t, fire.Simplified)
	assert.Equal(t, 401, geo.VertexCount(fire.Geometry))

	pointOnly := &model.GeometryRecord{LocID: "USA-TX"}
	assert.False(t, s.Apply(pointOnly))
}

func TestApplyAll(t *testing.T) {
	recs := []*model.GeometryRecord{
		{LocID: "USA-CA", AdminLevel: 1, Geometry: orb.Polygon{wobbly(-120, 37, 3, 200)}},
		{LocID: "USA-TX", AdminLevel: 1, Simplified: true, Geometry: orb.Polygon{wobbly(-99, 31, 3, 200)}},
	}
	changed := New(nil, nil).ApplyAll(recs)
	require.Len(t, changed, 1)
	assert.Equal(t, "USA-CA", changed[0].LocID)
}
