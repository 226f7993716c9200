package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/paulmach/orb"

	"locgeo/pkg/db"
	"locgeo/pkg/geo"
	"locgeo/pkg/locid"
	"locgeo/pkg/model"
	"locgeo/pkg/store"
)

// Mapping tells the importer how source attributes become record fields.
// Either IDField names an attribute that already holds a full loc_id, or
// CodeField is appended as one segment to Prefix (or to the loc_id found
// in ParentField).
type Mapping struct {
	IDField     string `yaml:"id_field"`
	Prefix      string `yaml:"prefix"`
	ParentField string `yaml:"parent_field"`
	CodeField   string `yaml:"code_field"`
	NameField   string `yaml:"name_field"`
	TypeField   string `yaml:"type_field"`
	LevelField  string `yaml:"level_field"`

	// Type applies when TypeField is empty or unset on a feature.
	Type locid.EntityType `yaml:"type"`
	// Level applies when positive and LevelField yields nothing; otherwise
	// the structural depth of the loc_id is used.
	Level int `yaml:"level"`
}

// LocID derives a feature's loc_id. The result is validated but never
// repaired: "06037" stays "06037" and is rejected.
func (m Mapping) LocID(c *locid.Codec, props map[string]string) (string, error) {
	if m.IDField != "" {
		id := props[m.IDField]
		if id == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingField, m.IDField)
		}
		return id, c.Validate(id)
	}
	parent := m.Prefix
	if m.ParentField != "" {
		parent = props[m.ParentField]
	}
	if parent == "" {
		return "", fmt.Errorf("%w: parent", ErrMissingField)
	}
	code := props[m.CodeField]
	if code == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingField, m.CodeField)
	}
	return c.Build(parent, code)
}

// Rejection records one feature that could not be imported.
type Rejection struct {
	Index int
	LocID string
	Err   error
}

// Report summarizes an import run.
type Report struct {
	Imported map[store.ScopeID]int
	Rejected []Rejection
	Repaired int
	Invalid  int
}

// Total returns the number of imported records over all scopes.
func (r Report) Total() int {
	n := 0
	for _, v := range r.Imported {
		n += v
	}
	return n
}

// Importer converts features into geometry records and appends them to
// the scope files of one directory.
type Importer struct {
	dir     string
	mapping Mapping
	codec   *locid.Codec
}

// New creates an Importer writing below dir. A nil codec uses the default.
func New(dir string, m Mapping, codec *locid.Codec) *Importer {
	if codec == nil {
		codec = locid.Default()
	}
	return &Importer{dir: dir, mapping: m, codec: codec}
}

// Convert turns features into records. Invalid loc_ids are rejected, not
// coerced. Invalid polygons are repaired; when repair fails the record is
// kept point-only and flagged.
func (im *Importer) Convert(feats []Feature) ([]*model.GeometryRecord, Report) {
	rep := Report{Imported: make(map[store.ScopeID]int)}
	out := make([]*model.GeometryRecord, 0, len(feats))

	for i, f := range feats {
		id, err := im.mapping.LocID(im.codec, f.Props)
		if err != nil {
			slog.Warn("Importer: rejected feature", "index", i, "loc_id", id, "error", err)
			rep.Rejected = append(rep.Rejected, Rejection{Index: i, LocID: id, Err: err})
			continue
		}
		r := &model.GeometryRecord{
			LocID:      id,
			Name:       f.Props[im.mapping.NameField],
			EntityType: im.entityType(f.Props),
			AdminLevel: im.level(id, f.Props),
		}
		if r.Name == "" {
			r.Name = id
		}

		switch g := f.Geometry.(type) {
		case orb.Point:
			r.Centroid = g
		case orb.Polygon, orb.MultiPolygon:
			r.Geometry = g
			if err := geo.Validate(g); err != nil {
				if fixed, rerr := geo.Repair(g); rerr == nil {
					r.Geometry = fixed
					rep.Repaired++
				} else {
					slog.Warn("Importer: geometry invalid after repair", "loc_id", id, "error", err)
					r.DeriveWith(im.codec)
					r.Geometry = nil
					r.GeometryInvalid = true
					rep.Invalid++
				}
			}
		}
		r.DeriveWith(im.codec)
		out = append(out, r)
	}
	return out, rep
}

func (im *Importer) entityType(props map[string]string) locid.EntityType {
	if im.mapping.TypeField != "" {
		if s := props[im.mapping.TypeField]; s != "" {
			t, ok := locid.ParseEntityType(s)
			if !ok {
				slog.Warn("Importer: unknown entity type", "type", s)
			}
			return t
		}
	}
	if im.mapping.Type == locid.EntityOther {
		return locid.EntityAdmin
	}
	return im.mapping.Type
}

func (im *Importer) level(id string, props map[string]string) int {
	if im.mapping.LevelField != "" {
		if v, err := strconv.Atoi(props[im.mapping.LevelField]); err == nil {
			return v
		}
	}
	if im.mapping.Level > 0 {
		return im.mapping.Level
	}
	return im.codec.Depth(id)
}

// Import converts features and appends them to their scope files. Each
// scope is written in one transaction; a duplicate loc_id fails that scope
// only, and the first such error is returned after all scopes were tried.
func (im *Importer) Import(ctx context.Context, feats []Feature) (Report, error) {
	recs, rep := im.Convert(feats)

	byScope := make(map[store.ScopeID][]*model.GeometryRecord)
	for _, r := range recs {
		s := store.ScopeForHint(im.codec.Classify(r.LocID))
		byScope[s] = append(byScope[s], r)
	}
	scopes := make([]store.ScopeID, 0, len(byScope))
	for s := range byScope {
		scopes = append(scopes, s)
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i] < scopes[j] })

	set := store.NewSet(im.dir)
	var firstErr error
	for _, s := range scopes {
		if err := appendScope(ctx, set.Path(s), byScope[s]); err != nil {
			slog.Error("Importer: scope append failed", "scope", s, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("scope %s: %w", s, err)
			}
			continue
		}
		rep.Imported[s] = len(byScope[s])
		slog.Info("Importer: appended records", "scope", s, "count", len(byScope[s]))
	}
	return rep, firstErr
}

func appendScope(ctx context.Context, path string, recs []*model.GeometryRecord) error {
	d, err := db.Init(path)
	if err != nil {
		return err
	}
	defer d.Close()
	return store.NewSQLiteStore(d).AppendRecords(ctx, recs)
}
