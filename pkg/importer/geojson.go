package importer

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ReadGeoJSON reads a FeatureCollection. Polygon, MultiPolygon and Point
// features are kept.
func ReadGeoJSON(r io.Reader) ([]Feature, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
	}

	out := make([]Feature, 0, len(fc.Features))
	for i, f := range fc.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon, orb.Point:
		default:
			slog.Warn("Importer: skipping unsupported geometry", "type", fmt.Sprintf("%T", f.Geometry), "feature", i)
			continue
		}
		props := make(map[string]string, len(f.Properties))
		for k, v := range f.Properties {
			props[k] = propString(v)
		}
		out = append(out, Feature{Props: props, Geometry: f.Geometry})
	}
	return out, nil
}
