package aggregate

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locgeo/pkg/locid"
	"locgeo/pkg/metrics"
	"locgeo/pkg/model"
)

var f = model.Float

func testSpecs() Specs {
	return Specs{
		"population": {Metric: "population", Rule: RuleSum},
		"rate":       {Metric: "rate", Rule: RuleAvg},
		"peak":       {Metric: "peak", Rule: RuleMax},
		"low":        {Metric: "low", Rule: RuleMin},
		"region":     {Metric: "region", Rule: RuleFirst},
		"income":     {Metric: "income", Rule: RuleWeightedAvg, Weight: "population"},
	}
}

func TestRollup_NullSafe(t *testing.T) {
	rows := []model.MetricRow{
		{LocID: "USA-CA-6037", Year: 2020, Values: map[string]*float64{"population": f(10), "rate": f(2)}},
		{LocID: "USA-CA-6059", Year: 2020, Values: map[string]*float64{"population": f(5), "rate": f(4)}},
		{LocID: "USA-CA-6111", Year: 2020, Values: map[string]*float64{"population": nil, "rate": nil}},
	}
	out, rep := NewRoller(testSpecs(), nil, nil).Rollup(rows)
	require.Len(t, out, 1)
	assert.Empty(t, rep.Skewed)
	assert.Equal(t, "USA-CA", out[0].LocID)
	assert.Equal(t, 15.0, *out[0].Values["population"])
	// Average over the two reporting children, not three.
	assert.Equal(t, 3.0, *out[0].Values["rate"])
}

func TestRollup_Rules(t *testing.T) {
	rows := []model.MetricRow{
		{LocID: "USA-TX-2", Year: 2021, Values: map[string]*float64{"peak": f(3), "low": f(3), "region": f(2), "population": f(300), "income": f(10)}},
		{LocID: "USA-TX-1", Year: 2021, Values: map[string]*float64{"peak": f(9), "low": f(-1), "region": f(1), "population": f(100), "income": f(50)}},
	}
	out, _ := NewRoller(testSpecs(), nil, nil).Rollup(rows)
	require.Len(t, out, 1)
	v := out[0].Values
	assert.Equal(t, 9.0, *v["peak"])
	assert.Equal(t, -1.0, *v["low"])
	assert.Equal(t, 1.0, *v["region"], "first in loc_id order")
	assert.Equal(t, 400.0, *v["population"])
	assert.InDelta(t, 20.0, *v["income"], 1e-9)
	_, hasRate := v["rate"]
	assert.False(t, hasRate, "absent columns stay absent")
}

func TestRollup_AllNullStaysNull(t *testing.T) {
	rows := []model.MetricRow{
		{LocID: "USA-CA-1", Year: 2020, Values: map[string]*float64{"rate": nil}},
	}
	out, _ := NewRoller(testSpecs(), nil, nil).Rollup(rows)
	require.Len(t, out, 1)
	v, ok := out[0].Values["rate"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestRollup_Skew(t *testing.T) {
	m := metrics.NewMetrics()
	rows := []model.MetricRow{
		{LocID: "USA-CA-1", Year: 2020, Values: map[string]*float64{"population": f(1), "mystery": f(7)}},
	}
	out, rep := NewRoller(testSpecs(), nil, m).Rollup(rows)
	assert.Equal(t, []string{"mystery"}, rep.Skewed)
	assert.True(t, errors.Is(rep.Err(), ErrAggregationSkew))
	_, has := out[0].Values["mystery"]
	assert.False(t, has)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AggregationSkew))
}

func TestRollup_GroupsByYearAndSorts(t *testing.T) {
	rows := []model.MetricRow{
		{LocID: "USA-TX-1", Year: 2021, Values: map[string]*float64{"population": f(1)}},
		{LocID: "USA-CA-1", Year: 2021, Values: map[string]*float64{"population": f(2)}},
		{LocID: "USA-CA-1", Year: 2020, Values: map[string]*float64{"population": f(3)}},
		{LocID: "USA", Year: 2020, Values: map[string]*float64{"population": f(3)}},
	}
	out, rep := NewRoller(testSpecs(), nil, nil).Rollup(rows)
	assert.Equal(t, 1, rep.Orphans)
	got := make([]string, len(out))
	for i, r := range out {
		got[i] = fmt.Sprintf("%s/%d", r.LocID, r.Year)
	}
	assert.Equal(t, []string{"USA-CA/2020", "USA-CA/2021", "USA-TX/2021"}, got)
}

func TestRollupTree(t *testing.T) {
	rows := []model.MetricRow{
		{LocID: "USA-CA-6037", Year: 2020, Values: map[string]*float64{"population": f(10)}},
		{LocID: "USA-CA-6059", Year: 2020, Values: map[string]*float64{"population": f(5)}},
		{LocID: "USA-TX-48201", Year: 2020, Values: map[string]*float64{"population": f(4)}},
		// Supplied state rows win over computed ones.
		{LocID: "USA-TX", Year: 2020, Values: map[string]*float64{"population": f(30)}},
	}
	out, _ := NewRoller(testSpecs(), nil, nil).RollupTree(rows)
	byID := make(map[string]float64)
	for _, r := range out {
		byID[r.LocID] = *r.Values["population"]
	}
	assert.Equal(t, 15.0, byID["USA-CA"])
	assert.Equal(t, 30.0, byID["USA-TX"])
	assert.Equal(t, 45.0, byID["USA"])
	assert.Len(t, out, 6)
}

func TestRollup_Deterministic(t *testing.T) {
	rows := []model.MetricRow{
		{LocID: "USA-CA-2", Year: 2020, Values: map[string]*float64{"population": f(1), "rate": f(1)}},
		{LocID: "USA-CA-1", Year: 2020, Values: map[string]*float64{"population": f(2), "rate": nil}},
	}
	r := NewRoller(testSpecs(), nil, nil)
	a, _ := r.RollupTree(rows)
	b, _ := r.RollupTree(rows)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("rollup not deterministic:\n%s", diff)
	}
}

func TestSpecs(t *testing.T) {
	specs, err := ParseSpecs([]byte(`
metrics:
  - metric: population
    rule: SUM
  - metric: income
    rule: weighted_avg
    weight: population
`))
	require.NoError(t, err)
	assert.Equal(t, RuleSum, specs["population"].Rule)
	assert.Equal(t, "population", specs["income"].Weight)

	_, err = ParseSpecs([]byte("metrics:\n  - metric: x\n    rule: median\n"))
	assert.True(t, errors.Is(err, ErrUnknownRule))

	_, err = FromMap(map[string]string{"income": "weighted_avg"})
	assert.Error(t, err)

	specs, err = FromMap(map[string]string{"income": "weighted_avg:population", "population": "sum"})
	require.NoError(t, err)
	assert.Equal(t, []string{"income", "population"}, specs.Names())
}

func TestCSVRoundTrip(t *testing.T) {
	in := "loc_id,year,population,rate\nUSA-CA-6037,2020,10,\nUSA-CA-6059,2020,5,2.5\n"
	rows, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].Values["rate"])
	assert.Equal(t, 2.5, *rows[1].Values["rate"])

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))
	assert.Equal(t, in, buf.String())
}

func TestReadCSV_RejectsPaddedFIPS(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("loc_id,year,population\nUSA-CA-06037,2020,1\n"))
	assert.Error(t, err)
}

func TestReadCSV_ConfiguredExceptions(t *testing.T) {
	t.Cleanup(func() { locid.SetDefault(nil) })
	in := "loc_id,year,population\nXAB-NORTH,2020,1\n"

	_, err := ReadCSV(strings.NewReader(in))
	assert.ErrorIs(t, err, locid.ErrUnregisteredPrefix)

	locid.SetDefault(locid.NewCodec(locid.NewRegistry(append([]string{"XAB"}, locid.DefaultExceptions...), nil)))
	rows, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "XAB-NORTH", rows[0].LocID)
}
