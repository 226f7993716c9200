package geo

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnion_AdjacentSquares(t *testing.T) {
	out := Union(rect(0, 0, 1, 1), rect(1, 0, 2, 1))
	require.NotNil(t, out)
	assert.NoError(t, Validate(out))
	assert.InDelta(t, 2.0, Area(out), 1e-9)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 1}}, out.Bound())
}

func TestUnion_DisjointBecomesMultiPolygon(t *testing.T) {
	out := Union(rect(0, 0, 1, 1), rect(5, 5, 6, 6))
	mp, ok := out.(orb.MultiPolygon)
	require.True(t, ok, "got %T", out)
	assert.Len(t, mp, 2)
	assert.InDelta(t, 2.0, Area(out), 1e-9)
}

func TestUnion_RingEnclosingHole(t *testing.T) {
	// Four strips around a 1x1 gap produce an exterior with one hole.
	out := Union(
		rect(0, 0, 3, 1),
		rect(0, 2, 3, 3),
		rect(0, 1, 1, 2),
		rect(2, 1, 3, 2),
	)
	require.NotNil(t, out)
	assert.NoError(t, Validate(out))
	assert.InDelta(t, 8.0, Area(out), 1e-9)
	assert.Equal(t, 2, RingCount(out))
}

func TestUnion_IgnoresNonPolygonal(t *testing.T) {
	assert.Nil(t, Union(orb.Point{1, 1}))
	assert.Nil(t, Union())
}

func TestRegroupOrientation(t *testing.T) {
	cw := orb.Ring{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}
	out := regroup([]orb.Ring{cw})
	p, ok := out.(orb.Polygon)
	require.True(t, ok)
	assert.Equal(t, orb.CCW, p[0].Orientation())
}

func TestSnapRound(t *testing.T) {
	p := orb.Polygon{{{0, 0}, {1.00000001, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	out := SnapRound(p, 1e-6).(orb.Polygon)
	assert.Len(t, out[0], 5)

	// Collapsed rings disappear
	tiny := rect(0, 0, 1e-9, 1e-9)
	assert.Nil(t, SnapRound(tiny, 1e-6))
}

func TestCounts(t *testing.T) {
	mp := orb.MultiPolygon{rect(0, 0, 1, 1), rect(2, 2, 3, 3)}
	assert.Equal(t, 2, RingCount(mp))
	assert.Equal(t, 10, VertexCount(mp))
}
