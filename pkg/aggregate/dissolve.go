package aggregate

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"locgeo/pkg/geo"
	"locgeo/pkg/locid"
	"locgeo/pkg/metrics"
	"locgeo/pkg/model"
	"locgeo/pkg/store"
)

// Outcome of building one parent.
const (
	OutcomeDissolved = "dissolved"
	OutcomeRepaired  = "repaired"
	OutcomeInvalid   = "invalid"
	OutcomeSkipped   = "skipped"
	OutcomeNative    = "native"
)

// Stats counts parent outcomes of one dissolve run.
type Stats map[string]int

// Dissolver builds parent geometry bottom-up within one scope.
type Dissolver struct {
	scope   store.ScopeID
	codec   *locid.Codec
	metrics *metrics.Metrics

	validate func(orb.Geometry) error
	repair   func(orb.Geometry) (orb.Geometry, error)
}

// NewDissolver creates a Dissolver for the records of one scope. Parents
// that belong to another scope (e.g. country roots for a country file) are
// never produced.
func NewDissolver(scope store.ScopeID, codec *locid.Codec, m *metrics.Metrics) *Dissolver {
	if codec == nil {
		codec = locid.Default()
	}
	return &Dissolver{scope: scope, codec: codec, metrics: m, validate: geo.Validate, repair: geo.Repair}
}

// contributes reports whether a child's geometry feeds its parent's
// dissolve. Event perimeters are siblings, not building blocks.
func contributes(r *model.GeometryRecord) bool {
	return !r.EntityType.IsDisaster()
}

// Build produces every missing or stale parent record, deepest level
// first, and returns them sorted by loc_id. Native parents (records without
// a source hash) are authoritative and never replaced. Parents whose source
// hash matches their current children are skipped.
func (d *Dissolver) Build(recs []*model.GeometryRecord) ([]*model.GeometryRecord, Stats) {
	stats := make(Stats)
	byID := make(map[string]*model.GeometryRecord, len(recs))
	for _, r := range recs {
		byID[r.LocID] = r
	}

	var built []*model.GeometryRecord
	for depth := d.maxDepth(byID); depth > 0; depth-- {
		groups := d.groupAt(byID, depth)
		parents := make([]string, 0, len(groups))
		for p := range groups {
			parents = append(parents, p)
		}
		sort.Strings(parents)

		for _, pid := range parents {
			children := groups[pid]
			hash := SourceHash(children)
			existing := byID[pid]

			switch {
			case existing != nil && existing.SourceHash == "":
				stats[OutcomeNative]++
				continue
			case existing != nil && existing.SourceHash == hash:
				stats[OutcomeSkipped]++
				d.metrics.Parent(OutcomeSkipped)
				continue
			}

			parent, outcome := d.dissolve(pid, children, existing)
			parent.SourceHash = hash
			stats[outcome]++
			d.metrics.Parent(outcome)
			byID[pid] = parent
			built = append(built, parent)
		}
	}

	sort.Slice(built, func(i, j int) bool { return built[i].LocID < built[j].LocID })
	return built, stats
}

func (d *Dissolver) maxDepth(byID map[string]*model.GeometryRecord) int {
	max := 0
	for id := range byID {
		if dd := d.codec.Depth(id); dd > max {
			max = dd
		}
	}
	return max
}

// groupAt collects contributing children at depth by parent id, limited
// to parents routed to this scope.
func (d *Dissolver) groupAt(byID map[string]*model.GeometryRecord, depth int) map[string][]*model.GeometryRecord {
	groups := make(map[string][]*model.GeometryRecord)
	for id, r := range byID {
		if d.codec.Depth(id) != depth || !contributes(r) {
			continue
		}
		pid, ok := d.codec.ParentOf(id)
		if !ok || store.ScopeForHint(d.codec.Classify(pid)) != d.scope {
			continue
		}
		groups[pid] = append(groups[pid], r)
	}
	for _, kids := range groups {
		sort.Slice(kids, func(i, j int) bool { return kids[i].LocID < kids[j].LocID })
	}
	return groups
}

func (d *Dissolver) dissolve(pid string, children []*model.GeometryRecord, existing *model.GeometryRecord) (*model.GeometryRecord, string) {
	parent := &model.GeometryRecord{
		LocID:      pid,
		AdminLevel: minLevel(children) - 1,
		EntityType: commonType(children),
		Name:       pid,
	}
	if parent.AdminLevel < 0 {
		parent.AdminLevel = d.codec.Depth(pid)
	}
	if existing != nil && existing.Name != "" {
		parent.Name = existing.Name
	}

	var parts []orb.Geometry
	for _, c := range children {
		if c.HasGeometry() && !c.GeometryInvalid {
			parts = append(parts, c.Geometry)
		}
	}

	outcome := OutcomeDissolved
	merged := geo.Union(parts...)
	if merged != nil {
		if err := d.validate(merged); err != nil {
			slog.Warn("Aggregate: dissolved geometry invalid, repairing", "loc_id", pid, "error", err)
			repaired, rerr := d.repair(merged)
			if rerr != nil {
				merged = nil
			} else {
				merged = repaired
				outcome = OutcomeRepaired
			}
		}
	}

	if merged == nil {
		// Emitted and flagged, never dropped.
		parent.GeometryInvalid = len(parts) > 0
		if parent.GeometryInvalid {
			slog.Warn("Aggregate: parent emitted without geometry", "loc_id", pid, "children", len(children))
			outcome = OutcomeInvalid
		}
		parent.Centroid = meanCentroid(children)
		parent.DeriveWith(d.codec)
		return parent, outcome
	}

	parent.Geometry = merged
	parent.DeriveWith(d.codec)
	return parent, outcome
}

func minLevel(children []*model.GeometryRecord) int {
	lvl := children[0].AdminLevel
	for _, c := range children[1:] {
		if c.AdminLevel < lvl {
			lvl = c.AdminLevel
		}
	}
	return lvl
}

func commonType(children []*model.GeometryRecord) locid.EntityType {
	t := children[0].EntityType
	for _, c := range children[1:] {
		if c.EntityType != t {
			return locid.EntityAdmin
		}
	}
	if t == locid.EntityOther {
		return locid.EntityAdmin
	}
	return t
}

func meanCentroid(children []*model.GeometryRecord) orb.Point {
	var sx, sy float64
	for _, c := range children {
		sx += c.Centroid[0]
		sy += c.Centroid[1]
	}
	n := float64(len(children))
	return orb.Point{sx / n, sy / n}
}

// SourceHash fingerprints a child set: ids, levels and geometry in loc_id
// order. Callers pass children sorted by loc_id.
func SourceHash(children []*model.GeometryRecord) string {
	h := sha256.New()
	var lvl [8]byte
	for _, c := range children {
		h.Write([]byte(c.LocID))
		h.Write([]byte{0})
		binary.BigEndian.PutUint64(lvl[:], uint64(int64(c.AdminLevel)))
		h.Write(lvl[:])
		if c.Geometry != nil {
			if b, err := wkb.Marshal(c.Geometry); err == nil {
				h.Write(b)
			}
		}
		if c.GeometryInvalid {
			h.Write([]byte{1})
		}
		h.Write([]byte{0xff})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Stamp refreshes the source hash of every dissolved parent against its
// current children. Run it after simplification so the next run sees the
// simplified children as unchanged. It returns the parents whose hash moved.
func (d *Dissolver) Stamp(recs []*model.GeometryRecord) []*model.GeometryRecord {
	byID := make(map[string]*model.GeometryRecord, len(recs))
	for _, r := range recs {
		byID[r.LocID] = r
	}
	groups := make(map[string][]*model.GeometryRecord)
	for id, r := range byID {
		if !contributes(r) {
			continue
		}
		if pid, ok := d.codec.ParentOf(id); ok {
			groups[pid] = append(groups[pid], r)
		}
	}

	var moved []*model.GeometryRecord
	for pid, kids := range groups {
		p := byID[pid]
		if p == nil || p.SourceHash == "" {
			continue
		}
		sort.Slice(kids, func(i, j int) bool { return kids[i].LocID < kids[j].LocID })
		if h := SourceHash(kids); h != p.SourceHash {
			p.SourceHash = h
			moved = append(moved, p)
		}
	}
	sort.Slice(moved, func(i, j int) bool { return moved[i].LocID < moved[j].LocID })
	return moved
}
