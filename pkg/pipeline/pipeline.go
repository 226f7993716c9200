// Package pipeline runs the per-scope build passes in parallel and then
// rebuilds the discovery index. Scopes never read each other's files, so
// workers share nothing; one scope failing leaves the others untouched.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"locgeo/pkg/aggregate"
	"locgeo/pkg/catalog"
	"locgeo/pkg/db"
	"locgeo/pkg/locid"
	"locgeo/pkg/metrics"
	"locgeo/pkg/model"
	"locgeo/pkg/simplify"
	"locgeo/pkg/store"
)

// Options configures a run.
type Options struct {
	Dir     string
	Workers int
	// Scopes limits the run; empty means every scope file in Dir.
	Scopes      []store.ScopeID
	CatalogPath string
	Tolerances  simplify.Tolerances
	Codec       *locid.Codec
}

// Result is the outcome of one scope.
type Result struct {
	Scope      store.ScopeID
	Summary    model.Summary
	Parents    aggregate.Stats
	Simplified int
	Saved      int
	Duration   time.Duration
	Err        error
}

// Report is the outcome of a whole run.
type Report struct {
	RunID   string
	Results []Result
	Catalog *catalog.Index
}

// Failed returns the results that carry an error.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Pipeline runs build passes over a directory of scope files.
type Pipeline struct {
	opts    Options
	metrics *metrics.Metrics
	clock   clockwork.Clock
	runID   string
}

// New creates a pipeline with a fresh run ID.
func New(opts Options, m *metrics.Metrics, clock clockwork.Clock) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Codec == nil {
		opts.Codec = locid.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{opts: opts, metrics: m, clock: clock, runID: uuid.NewString()}
}

// RunID identifies this run in logs and pushed metrics.
func (p *Pipeline) RunID() string { return p.runID }

// Run processes every scope, waits for all of them, then builds the
// catalog from whatever scope files exist. A failed scope is reported in
// the results; Run itself only fails when the scope list or the catalog
// cannot be produced.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	scopes := p.opts.Scopes
	if len(scopes) == 0 {
		var err error
		scopes, err = store.NewSet(p.opts.Dir).Scopes()
		if err != nil {
			return nil, fmt.Errorf("list scopes: %w", err)
		}
	}
	slog.Info("Pipeline: starting run", "run_id", p.runID, "scopes", len(scopes), "workers", p.opts.Workers)
	start := p.clock.Now()

	results := make([]Result, len(scopes))
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.opts.Workers)

	for i, scope := range scopes {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, scope store.ScopeID) {
			defer wg.Done()
			defer func() { <-sem }()

			res := p.processScope(ctx, scope)
			if res.Err != nil {
				p.metrics.Country("failed")
				slog.Error("Pipeline: scope failed", "scope", scope, "error", res.Err)
			} else {
				p.metrics.Country("ok")
				slog.Info("Pipeline: scope done", "scope", scope, "records", res.Summary.Records, "saved", res.Saved, "duration", res.Duration)
			}
			results[i] = res
		}(i, scope)
	}
	// Barrier: the catalog reduce needs every scope finished.
	wg.Wait()

	rep := &Report{RunID: p.runID, Results: results}
	sums := p.summaries(ctx, results)
	rep.Catalog = catalog.Build(sums, p.runID, p.clock)
	if p.opts.CatalogPath != "" {
		if err := rep.Catalog.Save(p.opts.CatalogPath); err != nil {
			return rep, fmt.Errorf("save catalog: %w", err)
		}
	}
	p.metrics.ObserveStage("run", p.clock.Since(start))

	if failed := rep.Failed(); len(failed) > 0 {
		slog.Warn("Pipeline: run finished with failures", "run_id", p.runID, "failed", len(failed), "total", len(results))
	} else {
		p.metrics.MarkSuccess(p.clock.Now())
		slog.Info("Pipeline: run finished", "run_id", p.runID, "total", len(results))
	}
	return rep, nil
}

// summaries collects one summary per scope. Failed scopes contribute their
// last persisted state when the file is still readable.
func (p *Pipeline) summaries(ctx context.Context, results []Result) []model.Summary {
	sums := make([]model.Summary, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			sums = append(sums, r.Summary)
			continue
		}
		set := store.NewSet(p.opts.Dir)
		st, err := store.LoadFile(ctx, r.Scope, set.Path(r.Scope))
		if err != nil || st == nil {
			continue
		}
		sums = append(sums, st.Summary())
	}
	return sums
}

func (p *Pipeline) processScope(ctx context.Context, scope store.ScopeID) (res Result) {
	res.Scope = scope
	start := p.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic in scope %s: %v", scope, r)
		}
		res.Duration = p.clock.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	path := store.NewSet(p.opts.Dir).Path(scope)
	d, err := db.OpenExisting(path)
	if err != nil {
		res.Err = err
		return res
	}
	defer d.Close()
	ss := store.NewSQLiteStore(d)

	t := p.clock.Now()
	recs, err := ss.LoadRecords(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	p.metrics.ObserveStage("load", p.clock.Since(t))
	if !hasValidGeometry(recs) {
		res.Err = fmt.Errorf("%s: %w", scope, store.ErrEmptyScope)
		return res
	}

	t = p.clock.Now()
	dis := aggregate.NewDissolver(scope, p.opts.Codec, p.metrics)
	built, stats := dis.Build(recs)
	res.Parents = stats
	p.metrics.ObserveStage("dissolve", p.clock.Since(t))

	all := mergeRecords(recs, built)

	t = p.clock.Now()
	simplified := simplify.New(p.opts.Tolerances, p.metrics).ApplyAll(all)
	res.Simplified = len(simplified)
	moved := dis.Stamp(all)
	p.metrics.ObserveStage("simplify", p.clock.Since(t))

	changed := uniqueByID(built, simplified, moved)
	if len(changed) > 0 {
		t = p.clock.Now()
		if err := ss.SaveRecords(ctx, changed); err != nil {
			res.Err = err
			return res
		}
		p.metrics.ObserveStage("save", p.clock.Since(t))
	}
	res.Saved = len(changed)

	st, err := store.New(scope, ss.Version(ctx), all)
	if err != nil {
		res.Err = err
		return res
	}
	res.Summary = st.Summary()
	return res
}

func hasValidGeometry(recs []*model.GeometryRecord) bool {
	for _, r := range recs {
		if r.HasGeometry() && !r.GeometryInvalid {
			return true
		}
	}
	return false
}

// mergeRecords overlays rebuilt parents on the loaded set.
func mergeRecords(recs, built []*model.GeometryRecord) []*model.GeometryRecord {
	idx := make(map[string]int, len(recs))
	out := make([]*model.GeometryRecord, len(recs))
	copy(out, recs)
	for i, r := range out {
		idx[r.LocID] = i
	}
	for _, b := range built {
		if i, ok := idx[b.LocID]; ok {
			out[i] = b
			continue
		}
		idx[b.LocID] = len(out)
		out = append(out, b)
	}
	return out
}

func uniqueByID(sets ...[]*model.GeometryRecord) []*model.GeometryRecord {
	seen := make(map[string]*model.GeometryRecord)
	for _, s := range sets {
		for _, r := range s {
			seen[r.LocID] = r
		}
	}
	out := make([]*model.GeometryRecord, 0, len(seen))
	for _, r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocID < out[j].LocID })
	return out
}

// IsEmptyScope reports whether a result failed for lack of geometry.
func (r Result) IsEmptyScope() bool { return errors.Is(r.Err, store.ErrEmptyScope) }
