package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locgeo/pkg/catalog"
	"locgeo/pkg/db"
	"locgeo/pkg/metrics"
	"locgeo/pkg/model"
	"locgeo/pkg/store"
)

func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}}
}

func seed(t *testing.T, dir string, scope store.ScopeID, recs []*model.GeometryRecord) {
	t.Helper()
	d, err := db.Init(filepath.Join(dir, string(scope)+store.FileExt))
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, store.NewSQLiteStore(d).AppendRecords(context.Background(), recs))
}

func setup(t *testing.T) string {
	dir := t.TempDir()
	seed(t, dir, "USA", []*model.GeometryRecord{
		{LocID: "USA-CA-6037", AdminLevel: 2, Geometry: square(0, 0, 1)},
		{LocID: "USA-CA-6059", AdminLevel: 2, Geometry: square(1, 0, 1)},
		{LocID: "USA-TX-48201", AdminLevel: 2, Geometry: square(5, 5, 1)},
	})
	seed(t, dir, "FRA", []*model.GeometryRecord{
		{LocID: "FRA-IDF", AdminLevel: 1, Centroid: orb.Point{2.35, 48.85}},
	})
	return dir
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	dir := setup(t)
	m := metrics.NewMetrics()
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.May, 4, 0, 0, 0, 0, time.UTC))
	catPath := filepath.Join(dir, "catalog", "index.json")

	p := New(Options{Dir: dir, Workers: 2, CatalogPath: catPath}, m, clock)
	rep, err := p.Run(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, rep.RunID)
	require.Len(t, rep.Results, 2)

	// Scopes are listed in name order.
	fra, usa := rep.Results[0], rep.Results[1]
	assert.Equal(t, store.ScopeID("FRA"), fra.Scope)
	assert.True(t, fra.IsEmptyScope())
	require.NoError(t, usa.Err)
	assert.Equal(t, 2, usa.Parents["dissolved"]+usa.Parents["repaired"])
	assert.Equal(t, 5, usa.Summary.Records)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CountriesProcessed.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CountriesProcessed.WithLabelValues("failed")))

	// The failed scope still shows up in the catalog with its stored state.
	cat, err := catalog.Load(catPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"FRA", "USA"}, cat.Scopes())
	assert.Equal(t, rep.RunID, cat.RunID)

	st, err := store.LoadFile(ctx, "USA", filepath.Join(dir, "USA.db"))
	require.NoError(t, err)
	ca := st.Lookup("USA-CA")
	require.NotNil(t, ca)
	assert.Equal(t, 1, ca.AdminLevel)
	assert.NotEmpty(t, ca.SourceHash)
	assert.True(t, ca.Simplified)
	assert.Equal(t, 2, ca.ChildrenCount)
}

func TestRun_Idempotent(t *testing.T) {
	ctx := context.Background()
	dir := setup(t)

	_, err := New(Options{Dir: dir, Scopes: []store.ScopeID{"USA"}}, nil, nil).Run(ctx)
	require.NoError(t, err)
	before, err := store.LoadFile(ctx, "USA", filepath.Join(dir, "USA.db"))
	require.NoError(t, err)

	rep, err := New(Options{Dir: dir, Scopes: []store.ScopeID{"USA"}}, nil, nil).Run(ctx)
	require.NoError(t, err)
	require.Len(t, rep.Results, 1)
	res := rep.Results[0]
	require.NoError(t, res.Err)
	assert.Equal(t, 0, res.Saved)
	assert.Equal(t, 2, res.Parents["skipped"])

	after, err := store.LoadFile(ctx, "USA", filepath.Join(dir, "USA.db"))
	require.NoError(t, err)
	assert.Equal(t, before.Version(), after.Version())
	assert.Equal(t, before.Lookup("USA-CA").SourceHash, after.Lookup("USA-CA").SourceHash)
}

func TestRun_MissingScopeIsolated(t *testing.T) {
	dir := setup(t)
	rep, err := New(Options{Dir: dir, Scopes: []store.ScopeID{"DEU", "USA"}}, nil, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Failed(), 1)
	assert.Equal(t, store.ScopeID("DEU"), rep.Failed()[0].Scope)
	assert.NoError(t, rep.Results[1].Err)
}
