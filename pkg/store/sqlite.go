package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"locgeo/pkg/db"
	"locgeo/pkg/locid"
	"locgeo/pkg/model"
)

// StateKeyVersion holds the record-set version of a scope file.
const StateKeyVersion = "record_set_version"

// SQLiteStore persists one scope's records in a SQLite file.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Records ---

const recordColumns = `loc_id, parent_id, admin_level, entity_type, name, geometry,
	centroid_lon, centroid_lat, min_lon, min_lat, max_lon, max_lat,
	children_count, descendants_count, geometry_invalid, source_hash, simplified`

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.GeometryRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM geometry_records WHERE loc_id = ?`, id)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return r, nil
}

// LoadRecords returns every record in loc_id order.
func (s *SQLiteStore) LoadRecords(ctx context.Context) ([]*model.GeometryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM geometry_records ORDER BY loc_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.GeometryRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveRecords upserts records and bumps the record-set version. Used by the
// aggregation and simplification passes.
func (s *SQLiteStore) SaveRecords(ctx context.Context, recs []*model.GeometryRecord) error {
	return s.write(ctx, recs, false)
}

// AppendRecords inserts new records. Any loc_id already present in the file
// (or repeated within recs) fails the whole batch with ErrDuplicateLocID.
func (s *SQLiteStore) AppendRecords(ctx context.Context, recs []*model.GeometryRecord) error {
	return s.write(ctx, recs, true)
}

func (s *SQLiteStore) write(ctx context.Context, recs []*model.GeometryRecord, appendOnly bool) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	verb := "INSERT OR REPLACE"
	if appendOnly {
		verb = "INSERT"
	}
	stmt, err := tx.PrepareContext(ctx, verb+` INTO geometry_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	seen := make(map[string]bool, len(recs))
	for _, r := range recs {
		if appendOnly {
			if seen[r.LocID] {
				return fmt.Errorf("%w: %s", ErrDuplicateLocID, r.LocID)
			}
			seen[r.LocID] = true
			var n int
			if err := tx.QueryRowContext(ctx, "SELECT count(*) FROM geometry_records WHERE loc_id = ?", r.LocID).Scan(&n); err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: %s", ErrDuplicateLocID, r.LocID)
			}
		}

		var geom []byte
		if r.Geometry != nil {
			geom, err = wkb.Marshal(r.Geometry)
			if err != nil {
				return fmt.Errorf("encode %s: %w", r.LocID, err)
			}
		}
		_, err = stmt.ExecContext(ctx,
			r.LocID, nullString(r.ParentID), r.AdminLevel, r.EntityType.String(), r.Name, geom,
			r.Centroid.Lon(), r.Centroid.Lat(), r.BBox.Min.Lon(), r.BBox.Min.Lat(), r.BBox.Max.Lon(), r.BBox.Max.Lat(),
			r.ChildrenCount, r.DescendantsCount, r.GeometryInvalid, nullString(r.SourceHash), r.Simplified,
		)
		if err != nil {
			return fmt.Errorf("write %s: %w", r.LocID, err)
		}
	}

	if err := bumpVersion(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

func bumpVersion(ctx context.Context, tx *sql.Tx) error {
	var cur string
	err := tx.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", StateKeyVersion).Scan(&cur)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	v, _ := strconv.Atoi(cur)
	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`,
		StateKeyVersion, strconv.Itoa(v+1), time.Now())
	return err
}

// Version returns the record-set version, 0 for a fresh file.
func (s *SQLiteStore) Version(ctx context.Context) int {
	v, ok := s.GetState(ctx, StateKeyVersion)
	if !ok {
		return 0
	}
	n, _ := strconv.Atoi(v)
	return n
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*model.GeometryRecord, error) {
	var (
		r          model.GeometryRecord
		parent     sql.NullString
		entityType string
		name       sql.NullString
		geom       []byte
		hash       sql.NullString
		cLon, cLat float64
		minLon     float64
		minLat     float64
		maxLon     float64
		maxLat     float64
	)
	err := sc.Scan(
		&r.LocID, &parent, &r.AdminLevel, &entityType, &name, &geom,
		&cLon, &cLat, &minLon, &minLat, &maxLon, &maxLat,
		&r.ChildrenCount, &r.DescendantsCount, &r.GeometryInvalid, &hash, &r.Simplified,
	)
	if err != nil {
		return nil, err
	}
	r.ParentID = parent.String
	r.Name = name.String
	r.SourceHash = hash.String
	r.EntityType, _ = locid.ParseEntityType(entityType)
	r.Centroid = orb.Point{cLon, cLat}
	r.BBox = orb.Bound{Min: orb.Point{minLon, minLat}, Max: orb.Point{maxLon, maxLat}}
	if len(geom) > 0 {
		g, err := wkb.Unmarshal(geom)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.LocID, err)
		}
		r.Geometry = g
	}
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}
