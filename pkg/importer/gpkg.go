package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	_ "modernc.org/sqlite"
)

// ReadGeoPackage reads the features of one table of a GeoPackage. An empty
// table name selects the first features table listed in gpkg_contents.
func ReadGeoPackage(ctx context.Context, path, table string) ([]Feature, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geopackage: %w", err)
	}
	defer db.Close()

	if table == "" {
		err = db.QueryRowContext(ctx, "SELECT table_name FROM gpkg_contents WHERE data_type = 'features' LIMIT 1").Scan(&table)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoFeatureTable
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read gpkg_contents: %w", err)
		}
	}

	var geomColumn string
	err = db.QueryRowContext(ctx, "SELECT column_name FROM gpkg_geometry_columns WHERE table_name = ?", table).Scan(&geomColumn)
	if err != nil {
		return nil, fmt.Errorf("geometry column of %s: %w", table, err)
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Feature
	row := 0
	for rows.Next() {
		row++
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		f := Feature{Props: make(map[string]string, len(cols)-1)}
		for i, c := range cols {
			if c != geomColumn {
				f.Props[c] = propString(vals[i])
				continue
			}
			blob, _ := vals[i].([]byte)
			g, err := decodeGPKG(blob)
			if err != nil {
				slog.Warn("Importer: skipping undecodable geometry", "table", table, "row", row, "error", err)
				break
			}
			f.Geometry = g
		}
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon, orb.Point:
			out = append(out, f)
		}
	}
	return out, rows.Err()
}

// decodeGPKG strips the GeoPackage binary header (magic, version, flags,
// srs id and optional envelope) and decodes the WKB body.
func decodeGPKG(b []byte) (orb.Geometry, error) {
	if len(b) >= 8 && b[0] == 'G' && b[1] == 'P' {
		flags := b[3]
		if flags&0x10 != 0 {
			return nil, errors.New("empty geometry")
		}
		headerSize := 8
		switch (flags >> 1) & 0x07 {
		case 0:
		case 1:
			headerSize += 32
		case 2, 3:
			headerSize += 48
		case 4:
			headerSize += 64
		default:
			return nil, fmt.Errorf("bad envelope indicator in flags %#x", flags)
		}
		if len(b) < headerSize {
			return nil, errors.New("truncated geopackage header")
		}
		b = b[headerSize:]
	}
	return wkb.Unmarshal(b)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
