// Package resolver orchestrates the tiered geometry lookup.
package resolver

import (
	"fmt"
	"log/slog"

	"locgeo/pkg/locid"
	"locgeo/pkg/metrics"
	"locgeo/pkg/model"
	"locgeo/pkg/store"
)

// Tier names the stage that answered a resolution.
type Tier int

const (
	TierNone Tier = iota
	TierNative
	TierCrosswalk
	TierFallback
)

func (t Tier) String() string {
	switch t {
	case TierNative:
		return "native"
	case TierCrosswalk:
		return "crosswalk"
	case TierFallback:
		return "fallback"
	default:
		return "not_found"
	}
}

// Translator maps a native id to a fallback id.
type Translator interface {
	Translate(localID, country string) (string, bool)
}

// Result is a successful resolution.
type Result struct {
	Record *model.GeometryRecord
	Tier   Tier
	// QueriedID is the id that was finally looked up; it differs from the
	// requested id after a crosswalk translation or an ancestor walk.
	QueriedID string
}

// Resolver walks Native -> Crosswalk -> Fallback and stops at the first
// definite hit. Store load errors are not misses and abort the resolution.
type Resolver struct {
	native    store.ScopeSource
	fallback  store.ScopeSource
	crosswalk Translator
	metrics   *metrics.Metrics
}

// New creates a Resolver. Any source may be nil.
func New(native, fallback store.ScopeSource, xw Translator, m *metrics.Metrics) *Resolver {
	return &Resolver{native: native, fallback: fallback, crosswalk: xw, metrics: m}
}

// Resolve returns the geometry record for id or ErrNotFound.
func (r *Resolver) Resolve(id string) (Result, error) {
	if err := locid.Validate(id); err != nil {
		return Result{}, err
	}
	res, err := r.resolve(id)
	if err != nil {
		return Result{}, err
	}
	r.metrics.Resolve(res.Tier.String())
	if res.Tier == TierNone {
		return Result{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return res, nil
}

func (r *Resolver) resolve(id string) (Result, error) {
	scope := store.ScopeFor(id)

	rec, err := lookup(r.native, scope, id)
	if err != nil {
		return Result{}, fmt.Errorf("native %s: %w", scope, err)
	}
	if rec != nil {
		return Result{Record: rec, Tier: TierNative, QueriedID: id}, nil
	}

	if r.crosswalk != nil {
		if translated, ok := r.crosswalk.Translate(id, string(scope)); ok {
			// The translated id may route to a different scope than the source id.
			rec, err := lookup(r.fallback, store.ScopeFor(translated), translated)
			if err != nil {
				return Result{}, fmt.Errorf("crosswalk %s: %w", translated, err)
			}
			if rec != nil {
				return Result{Record: rec, Tier: TierCrosswalk, QueriedID: translated}, nil
			}
			slog.Debug("Resolver: crosswalk target missing from fallback", "loc_id", id, "translated", translated)
		}
	}

	rec, err = lookup(r.fallback, scope, id)
	if err != nil {
		return Result{}, fmt.Errorf("fallback %s: %w", scope, err)
	}
	if rec != nil {
		return Result{Record: rec, Tier: TierFallback, QueriedID: id}, nil
	}
	return Result{Tier: TierNone}, nil
}

func lookup(src store.ScopeSource, scope store.ScopeID, id string) (*model.GeometryRecord, error) {
	if src == nil {
		return nil, nil
	}
	s, err := src.Get(scope)
	if err != nil {
		return nil, err
	}
	return s.Lookup(id), nil
}

// ResolveNearest resolves id, or failing that the nearest ancestor that has
// geometry. QueriedID reports which id answered.
func (r *Resolver) ResolveNearest(id string) (Result, error) {
	if err := locid.Validate(id); err != nil {
		return Result{}, err
	}
	chain := append([]string{id}, locid.Default().Ancestors(id)...)
	for _, cand := range chain {
		res, err := r.resolve(cand)
		if err != nil {
			return Result{}, err
		}
		if res.Tier != TierNone {
			r.metrics.Resolve(res.Tier.String())
			return res, nil
		}
	}
	r.metrics.Resolve(TierNone.String())
	return Result{}, fmt.Errorf("%w: %s or any ancestor", ErrNotFound, id)
}
