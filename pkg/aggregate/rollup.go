package aggregate

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"locgeo/pkg/locid"
	"locgeo/pkg/metrics"
	"locgeo/pkg/model"
)

// Roller combines child metric rows into parent rows.
type Roller struct {
	specs   Specs
	codec   *locid.Codec
	metrics *metrics.Metrics
}

// NewRoller creates a Roller. A nil codec uses the default.
func NewRoller(specs Specs, codec *locid.Codec, m *metrics.Metrics) *Roller {
	if codec == nil {
		codec = locid.Default()
	}
	return &Roller{specs: specs, codec: codec, metrics: m}
}

// Report lists what a rollup excluded.
type Report struct {
	// Skewed are metric columns without a rule, excluded from every parent.
	Skewed []string
	// Orphans are rows whose loc_id has no parent.
	Orphans int
}

// Err returns an error wrapping ErrAggregationSkew when columns were
// excluded. It is a warning for callers that want one.
func (r Report) Err() error {
	if len(r.Skewed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrAggregationSkew, r.Skewed)
}

type groupKey struct {
	parent string
	year   int
}

// Rollup groups rows by (parent_id, year) and applies each metric's rule.
// Null child values are excluded, not counted as zero. Output is sorted by
// (loc_id, year).
func (r *Roller) Rollup(rows []model.MetricRow) ([]model.MetricRow, Report) {
	var rep Report
	skewed := make(map[string]bool)
	groups := make(map[groupKey][]model.MetricRow)

	for _, row := range rows {
		parent, ok := r.codec.ParentOf(row.LocID)
		if !ok {
			rep.Orphans++
			continue
		}
		for col := range row.Values {
			if _, ok := r.specs[col]; !ok && !skewed[col] {
				skewed[col] = true
			}
		}
		k := groupKey{parent: parent, year: row.Year}
		groups[k] = append(groups[k], row)
	}

	for col := range skewed {
		if r.isWeightColumn(col) {
			delete(skewed, col)
			continue
		}
		rep.Skewed = append(rep.Skewed, col)
	}
	sort.Strings(rep.Skewed)
	for _, col := range rep.Skewed {
		r.metrics.Skew()
		slog.Warn("Aggregate: no rule for metric, excluded from rollup", "metric", col)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].parent != keys[j].parent {
			return keys[i].parent < keys[j].parent
		}
		return keys[i].year < keys[j].year
	})

	out := make([]model.MetricRow, 0, len(keys))
	for _, k := range keys {
		children := groups[k]
		sort.Slice(children, func(i, j int) bool { return children[i].LocID < children[j].LocID })
		out = append(out, model.MetricRow{
			LocID:  k.parent,
			Year:   k.year,
			Values: r.combine(children),
		})
	}
	return out, rep
}

func (r *Roller) isWeightColumn(col string) bool {
	for _, sp := range r.specs {
		if sp.Rule == RuleWeightedAvg && sp.Weight == col {
			return true
		}
	}
	return false
}

func (r *Roller) combine(children []model.MetricRow) map[string]*float64 {
	vals := make(map[string]*float64)
	for _, name := range r.specs.Names() {
		present := false
		for _, c := range children {
			if _, ok := c.Values[name]; ok {
				present = true
				break
			}
		}
		if !present {
			continue
		}
		vals[name] = apply(r.specs[name], children)
	}
	// Weight columns roll up as sums so weighted averages compose upward.
	for _, name := range r.specs.Names() {
		sp := r.specs[name]
		if sp.Rule != RuleWeightedAvg {
			continue
		}
		if _, ruled := r.specs[sp.Weight]; ruled {
			continue
		}
		if _, done := vals[sp.Weight]; !done {
			vals[sp.Weight] = apply(Spec{Metric: sp.Weight, Rule: RuleSum}, children)
		}
	}
	return vals
}

// apply combines one metric over children in loc_id order.
func apply(sp Spec, children []model.MetricRow) *float64 {
	var (
		n      int
		acc    float64
		wsum   float64
		result *float64
	)
	for _, c := range children {
		v := c.Values[sp.Metric]
		if v == nil || math.IsNaN(*v) {
			continue
		}
		switch sp.Rule {
		case RuleSum, RuleAvg:
			acc += *v
			n++
		case RuleFirst:
			if result == nil {
				result = model.Float(*v)
			}
		case RuleMax:
			if result == nil || *v > *result {
				result = model.Float(*v)
			}
		case RuleMin:
			if result == nil || *v < *result {
				result = model.Float(*v)
			}
		case RuleWeightedAvg:
			w := c.Values[sp.Weight]
			if w == nil || math.IsNaN(*w) {
				continue
			}
			acc += *v * *w
			wsum += *w
			n++
		}
	}
	switch sp.Rule {
	case RuleSum:
		if n > 0 {
			return model.Float(acc)
		}
	case RuleAvg:
		if n > 0 {
			return model.Float(acc / float64(n))
		}
	case RuleWeightedAvg:
		if n > 0 && wsum != 0 {
			return model.Float(acc / wsum)
		}
	default:
		return result
	}
	return nil
}

// RollupTree rolls rows up level by level until the roots. Rows supplied
// for a parent take precedence over computed ones for the same
// (loc_id, year). The result holds the input rows plus every computed
// ancestor row, sorted by (loc_id, year).
func (r *Roller) RollupTree(rows []model.MetricRow) ([]model.MetricRow, Report) {
	var rep Report
	skewed := make(map[string]bool)

	type key = groupKey
	all := make(map[key]model.MetricRow, len(rows))
	byDepth := make(map[int][]model.MetricRow)
	maxDepth := -1
	for _, row := range rows {
		all[key{row.LocID, row.Year}] = row
		d := r.codec.Depth(row.LocID)
		byDepth[d] = append(byDepth[d], row)
		if d > maxDepth {
			maxDepth = d
		}
	}

	for d := maxDepth; d > 0; d-- {
		parents, lvl := r.Rollup(byDepth[d])
		for _, s := range lvl.Skewed {
			skewed[s] = true
		}
		for _, p := range parents {
			k := key{p.LocID, p.Year}
			if _, exists := all[k]; exists {
				continue
			}
			all[k] = p
			byDepth[d-1] = append(byDepth[d-1], p)
		}
	}

	for s := range skewed {
		rep.Skewed = append(rep.Skewed, s)
	}
	sort.Strings(rep.Skewed)

	out := make([]model.MetricRow, 0, len(all))
	for _, row := range all {
		out = append(out, row)
	}
	SortRows(out)
	return out, rep
}

// SortRows orders rows by (loc_id, year).
func SortRows(rows []model.MetricRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].LocID != rows[j].LocID {
			return rows[i].LocID < rows[j].LocID
		}
		return rows[i].Year < rows[j].Year
	})
}
