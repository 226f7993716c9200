package importer

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locgeo/pkg/locid"
	"locgeo/pkg/store"
)

func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}}
}

func TestMapping_LocID(t *testing.T) {
	c := locid.Default()
	tests := []struct {
		name    string
		m       Mapping
		props   map[string]string
		want    string
		wantErr error
	}{
		{"full id", Mapping{IDField: "loc_id"}, map[string]string{"loc_id": "USA-CA-6037"}, "USA-CA-6037", nil},
		{"prefix and code", Mapping{Prefix: "USA-CA", CodeField: "fips"}, map[string]string{"fips": "6037"}, "USA-CA-6037", nil},
		{"parent field", Mapping{ParentField: "state", CodeField: "fips"}, map[string]string{"state": "USA-TX", "fips": "48201"}, "USA-TX-48201", nil},
		{"padded fips rejected", Mapping{Prefix: "USA-CA", CodeField: "fips"}, map[string]string{"fips": "06037"}, "", locid.ErrInvalidLocID},
		{"lower case rejected", Mapping{IDField: "loc_id"}, map[string]string{"loc_id": "usa-ca"}, "", locid.ErrInvalidLocID},
		{"missing code", Mapping{Prefix: "USA-CA", CodeField: "fips"}, map[string]string{}, "", ErrMissingField},
		{"missing id", Mapping{IDField: "loc_id"}, map[string]string{"name": "x"}, "", ErrMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.m.LocID(c, tt.props)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

const sampleGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"GEOID": 6037, "NAME": "Los Angeles"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
    {"type": "Feature", "properties": {"GEOID": 6059000, "NAME": "Far"},
     "geometry": {"type": "Point", "coordinates": [2, 3]}},
    {"type": "Feature", "properties": {"GEOID": 1},
     "geometry": {"type": "LineString", "coordinates": [[0,0],[1,1]]}}
  ]
}`

func TestReadGeoJSON(t *testing.T) {
	feats, err := ReadGeoJSON(strings.NewReader(sampleGeoJSON))
	require.NoError(t, err)
	require.Len(t, feats, 2)
	assert.Equal(t, "6037", feats[0].Props["GEOID"])
	assert.Equal(t, "6059000", feats[1].Props["GEOID"])
	assert.Equal(t, orb.Point{2, 3}, feats[1].Geometry)
}

func TestReadShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counties.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("FIPS", 10),
		shp.StringField("NAME", 40),
	}))

	// Second shape has two outer parts and becomes a multipolygon.
	shapes := [][][]shp.Point{
		{{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}},
		{
			{{X: 3, Y: 0}, {X: 3, Y: 1}, {X: 4, Y: 1}, {X: 4, Y: 0}, {X: 3, Y: 0}},
			{{X: 6, Y: 0}, {X: 6, Y: 1}, {X: 7, Y: 1}, {X: 7, Y: 0}, {X: 6, Y: 0}},
		},
	}
	attrs := [][]string{{"6037", "Los Angeles"}, {"6059", "Orange"}}
	for i, parts := range shapes {
		pl := shp.NewPolyLine(parts)
		poly := shp.Polygon(*pl)
		w.Write(&poly)
		require.NoError(t, w.WriteAttribute(i, 0, attrs[i][0]))
		require.NoError(t, w.WriteAttribute(i, 1, attrs[i][1]))
	}
	w.Close()

	feats, err := ReadShapefile(path)
	require.NoError(t, err)
	require.Len(t, feats, 2)
	assert.Equal(t, "6037", feats[0].Props["FIPS"])
	assert.Equal(t, "Orange", feats[1].Props["NAME"])

	p, ok := feats[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Equal(t, orb.CCW, p[0].Orientation(), "exteriors are rewound counter-clockwise")
	mp, ok := feats[1].Geometry.(orb.MultiPolygon)
	require.True(t, ok)
	assert.Len(t, mp, 2)
}

func gpkgBlob(t *testing.T, g orb.Geometry) []byte {
	t.Helper()
	body, err := wkb.Marshal(g)
	require.NoError(t, err)
	b := g.Bound()
	head := []byte{'G', 'P', 0, 0x03, 0xE6, 0x10, 0, 0} // little endian, xy envelope, srs 4326
	env := make([]byte, 32)
	for i, v := range []float64{b.Min[0], b.Max[0], b.Min[1], b.Max[1]} {
		binary.LittleEndian.PutUint64(env[i*8:], math.Float64bits(v))
	}
	return append(append(head, env...), body...)
}

func TestReadGeoPackage(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "admin.gpkg")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE gpkg_contents (table_name TEXT, data_type TEXT)`,
		`CREATE TABLE gpkg_geometry_columns (table_name TEXT, column_name TEXT)`,
		`INSERT INTO gpkg_contents VALUES ('regions', 'features')`,
		`INSERT INTO gpkg_geometry_columns VALUES ('regions', 'geom')`,
		`CREATE TABLE regions (fid INTEGER PRIMARY KEY, nuts_id TEXT, geom BLOB)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	_, err = db.Exec(`INSERT INTO regions (nuts_id, geom) VALUES (?, ?)`, "DE1", gpkgBlob(t, square(8, 47, 2)))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO regions (nuts_id, geom) VALUES (?, ?)`, "DE2", []byte{'G', 'P', 0, 0x11, 0, 0, 0, 0})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	feats, err := ReadGeoPackage(ctx, path, "")
	require.NoError(t, err)
	require.Len(t, feats, 1, "empty geometries are skipped")
	assert.Equal(t, "DE1", feats[0].Props["nuts_id"])
	assert.Equal(t, "1", feats[0].Props["fid"])
	assert.Equal(t, square(8, 47, 2), feats[0].Geometry)

	_, err = ReadGeoPackage(ctx, filepath.Join(t.TempDir(), "missing.gpkg"), "")
	assert.Error(t, err)
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	im := New(dir, Mapping{IDField: "loc_id", NameField: "name"}, nil)

	feats := []Feature{
		{Props: map[string]string{"loc_id": "USA", "name": "United States"}, Geometry: square(0, 0, 10)},
		{Props: map[string]string{"loc_id": "USA-CA", "name": "California"}, Geometry: square(0, 0, 2)},
		{Props: map[string]string{"loc_id": "USA-CA-6037"}, Geometry: orb.Point{0.5, 0.5}},
		{Props: map[string]string{"loc_id": "USA-CA-06059"}, Geometry: square(1, 0, 1)},
		{Props: map[string]string{"loc_id": "XSG"}, Geometry: square(-98, 18, 17)},
	}
	rep, err := im.Import(ctx, feats)
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Total())
	require.Len(t, rep.Rejected, 1)
	assert.Equal(t, 3, rep.Rejected[0].Index)
	assert.Equal(t, map[store.ScopeID]int{"USA": 2, "global": 1, "global_entities": 1}, rep.Imported)

	set := store.NewSet(dir)
	usa, err := set.Get("USA")
	require.NoError(t, err)
	require.NotNil(t, usa)
	ca := usa.Lookup("USA-CA")
	require.NotNil(t, ca)
	assert.Equal(t, 1, ca.AdminLevel)
	assert.Equal(t, locid.EntityAdmin, ca.EntityType)
	assert.Equal(t, 1, ca.ChildrenCount)
	county := usa.Lookup("USA-CA-6037")
	require.NotNil(t, county)
	assert.Equal(t, "USA-CA-6037", county.Name)
	assert.Equal(t, orb.Point{0.5, 0.5}, county.Centroid)

	// Append-only: importing the same ids again fails that scope only.
	rep, err = New(dir, Mapping{IDField: "loc_id"}, nil).Import(ctx, []Feature{
		{Props: map[string]string{"loc_id": "USA-TX"}, Geometry: square(5, 5, 1)},
		{Props: map[string]string{"loc_id": "USA-CA"}, Geometry: square(0, 0, 2)},
		{Props: map[string]string{"loc_id": "CAN"}, Geometry: square(0, 20, 5)},
	})
	assert.True(t, errors.Is(err, store.ErrDuplicateLocID))
	assert.Equal(t, map[store.ScopeID]int{"global": 1}, rep.Imported)
}

func TestConvert_RepairsBowtie(t *testing.T) {
	bowtie := orb.Polygon{{{0, 0}, {2, 2}, {2, 0}, {0, 2}, {0, 0}}}
	recs, rep := New(t.TempDir(), Mapping{IDField: "id"}, nil).Convert([]Feature{
		{Props: map[string]string{"id": "FRA-IDF"}, Geometry: bowtie},
	})
	require.Len(t, recs, 1)
	assert.Equal(t, 1, rep.Repaired+rep.Invalid)
	if rep.Invalid == 1 {
		assert.True(t, recs[0].GeometryInvalid)
		assert.Nil(t, recs[0].Geometry)
	}
}

func TestImport_ConfiguredRegistry(t *testing.T) {
	codec := locid.NewCodec(locid.NewRegistry(
		append([]string{"XAB"}, locid.DefaultExceptions...),
		append([]string{"GREAT-LAKES-BASIN"}, locid.DefaultRoots...),
	))
	im := New(t.TempDir(), Mapping{IDField: "loc_id"}, codec)
	feats := []Feature{
		{Props: map[string]string{"loc_id": "GREAT-LAKES-BASIN-ERIE"}, Geometry: square(-83, 41, 4)},
		{Props: map[string]string{"loc_id": "XAB-NORTH"}, Geometry: square(0, 0, 1)},
	}

	recs, rep := im.Convert(feats)
	require.Empty(t, rep.Rejected)
	require.Len(t, recs, 2)
	assert.Equal(t, "GREAT-LAKES-BASIN", recs[0].ParentID)
	assert.Equal(t, "XAB", recs[1].ParentID)

	rep, err := im.Import(context.Background(), feats)
	require.NoError(t, err)
	assert.Equal(t, map[store.ScopeID]int{"global_entities": 1, "XAB": 1}, rep.Imported)
}
