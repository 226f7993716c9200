package store

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"

	"locgeo/pkg/locid"
	"locgeo/pkg/model"
)

// Store is the immutable, loaded form of one scope: an arena of records plus
// a hash index keyed by loc_id and a children index keyed by parent_id.
// It is safe for concurrent readers.
type Store struct {
	scope    ScopeID
	version  int
	records  []*model.GeometryRecord
	index    map[string]int
	children map[string][]int
}

// New builds a store from records. Parent ids, centroids and bounding
// boxes are re-derived and the children/descendant counts rebuilt.
// Duplicate loc_ids fail with ErrDuplicateLocID.
func New(scope ScopeID, version int, recs []*model.GeometryRecord) (*Store, error) {
	s := &Store{
		scope:    scope,
		version:  version,
		records:  make([]*model.GeometryRecord, 0, len(recs)),
		index:    make(map[string]int, len(recs)),
		children: make(map[string][]int),
	}

	for _, r := range recs {
		if _, dup := s.index[r.LocID]; dup {
			return nil, fmt.Errorf("%w: %s in %s", ErrDuplicateLocID, r.LocID, scope)
		}
		r.Derive()
		s.index[r.LocID] = len(s.records)
		s.records = append(s.records, r)
	}

	for i, r := range s.records {
		if r.ParentID != "" {
			s.children[r.ParentID] = append(s.children[r.ParentID], i)
		}
	}
	for _, kids := range s.children {
		sort.Slice(kids, func(a, b int) bool {
			return s.records[kids[a]].LocID < s.records[kids[b]].LocID
		})
	}

	memo := make(map[string]int, len(s.records))
	for _, r := range s.records {
		r.ChildrenCount = len(s.children[r.LocID])
		r.DescendantsCount = s.descendants(r.LocID, memo)
	}
	return s, nil
}

func (s *Store) descendants(id string, memo map[string]int) int {
	if n, ok := memo[id]; ok {
		return n
	}
	n := 0
	for _, i := range s.children[id] {
		n += 1 + s.descendants(s.records[i].LocID, memo)
	}
	memo[id] = n
	return n
}

// Scope returns the scope this store was loaded for.
func (s *Store) Scope() ScopeID { return s.scope }

// Version returns the record-set version of the scope file.
func (s *Store) Version() int { return s.version }

// Len returns the number of records.
func (s *Store) Len() int { return len(s.records) }

// Lookup returns the record for id, or nil.
func (s *Store) Lookup(id string) *model.GeometryRecord {
	if s == nil {
		return nil
	}
	i, ok := s.index[id]
	if !ok {
		return nil
	}
	return s.records[i]
}

// Children returns the direct children of id present in this store,
// ordered by loc_id.
func (s *Store) Children(id string) []*model.GeometryRecord {
	idx := s.children[id]
	out := make([]*model.GeometryRecord, len(idx))
	for i, j := range idx {
		out[i] = s.records[j]
	}
	return out
}

// Records returns all records in load order. Callers must not mutate them.
func (s *Store) Records() []*model.GeometryRecord {
	return s.records
}

// IDs returns every loc_id in load order.
func (s *Store) IDs() []string {
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.LocID
	}
	return out
}

// AtLevel returns the records with the given admin level.
func (s *Store) AtLevel(level int) []*model.GeometryRecord {
	var out []*model.GeometryRecord
	for _, r := range s.records {
		if r.AdminLevel == level {
			out = append(out, r)
		}
	}
	return out
}

// MaxLevel returns the deepest admin level present, or -1 when empty.
func (s *Store) MaxLevel() int {
	max := -1
	for _, r := range s.records {
		if r.AdminLevel > max {
			max = r.AdminLevel
		}
	}
	return max
}

// Bound returns the union of all record bounding boxes.
func (s *Store) Bound() orb.Bound {
	var b orb.Bound
	first := true
	for _, r := range s.records {
		if first {
			b = r.BBox
			first = false
			continue
		}
		b = b.Union(r.BBox)
	}
	return b
}

// Summary reports per-level and per-type counts for the discovery index.
func (s *Store) Summary() model.Summary {
	sum := model.Summary{
		Scope:   string(s.scope),
		Version: s.version,
		Records: len(s.records),
		ByLevel: make(map[int]int),
		ByType:  make(map[string]int),
		BBox:    s.Bound(),
	}
	for _, r := range s.records {
		sum.ByLevel[r.AdminLevel]++
		sum.ByType[r.EntityType.String()]++
		if r.GeometryInvalid {
			sum.Invalid++
		}
		if d := locid.Default().Depth(r.LocID); d > sum.MaxDepth {
			sum.MaxDepth = d
		}
	}
	return sum
}
