package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Feature is one boundary feature read from a source file. Attribute
// values are kept as the source wrote them; no padding or case changes.
type Feature struct {
	Props    map[string]string
	Geometry orb.Geometry
}

// Open reads every feature of a boundary file, choosing the reader by
// extension (.shp, .geojson/.json, .gpkg).
func Open(ctx context.Context, path string) ([]Feature, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".shp":
		return ReadShapefile(path)
	case ".geojson", ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadGeoJSON(f)
	case ".gpkg":
		return ReadGeoPackage(ctx, path, "")
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// propString renders a decoded JSON property without scientific notation,
// so numeric codes such as FIPS 6037000 stay exact strings.
func propString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []byte:
		return string(t)
	}
	return fmt.Sprint(v)
}
