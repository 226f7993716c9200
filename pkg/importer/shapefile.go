package importer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"locgeo/pkg/geo"
)

// ReadShapefile reads polygon and point features with their DBF attributes.
// Null shapes and line shapes are skipped.
func ReadShapefile(path string) ([]Feature, error) {
	shape, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer shape.Close()

	fields := shape.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.String()
	}

	var out []Feature
	for shape.Next() {
		n, p := shape.Shape()

		var g orb.Geometry
		switch s := p.(type) {
		case *shp.Null:
			continue
		case *shp.Polygon:
			g = convertPolygon(s)
		case *shp.Point:
			g = orb.Point{s.X, s.Y}
		default:
			slog.Warn("Importer: skipping unsupported shape type", "type", fmt.Sprintf("%T", p), "row", n)
			continue
		}
		if g == nil {
			slog.Warn("Importer: skipping degenerate polygon", "row", n)
			continue
		}

		props := make(map[string]string, len(names))
		for i, name := range names {
			props[name] = strings.TrimSpace(strings.Trim(shape.ReadAttribute(n, i), "\x00"))
		}
		out = append(out, Feature{Props: props, Geometry: g})
	}

	if err := shape.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shapes: %w", err)
	}
	return out, nil
}

// convertPolygon splits the shape into its parts and lets ring nesting
// decide exteriors and holes, since one shapefile polygon may hold several
// outer rings.
func convertPolygon(s *shp.Polygon) orb.Geometry {
	rings := make([]orb.Ring, 0, s.NumParts)
	for i := 0; i < int(s.NumParts); i++ {
		start := s.Parts[i]
		end := s.NumPoints
		if i < int(s.NumParts)-1 {
			end = s.Parts[i+1]
		}

		ring := make(orb.Ring, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, orb.Point{s.Points[j].X, s.Points[j].Y})
		}
		rings = append(rings, ring)
	}
	return geo.FromRings(rings)
}
