package store

import (
	"github.com/paulmach/orb/geojson"

	"locgeo/pkg/model"
)

// FeatureCollection renders records as GeoJSON for renderers. Records
// without geometry become point features at their centroid.
func FeatureCollection(recs []*model.GeometryRecord) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range recs {
		var f *geojson.Feature
		if r.Geometry != nil {
			f = geojson.NewFeature(r.Geometry)
		} else {
			f = geojson.NewFeature(r.Centroid)
		}
		f.ID = r.LocID
		f.Properties["loc_id"] = r.LocID
		f.Properties["parent_id"] = r.ParentID
		f.Properties["admin_level"] = r.AdminLevel
		f.Properties["entity_type"] = r.EntityType.String()
		f.Properties["name"] = r.Name
		f.Properties["children_count"] = r.ChildrenCount
		f.Properties["descendants_count"] = r.DescendantsCount
		if r.GeometryInvalid {
			f.Properties["geometry_invalid"] = true
		}
		fc.Append(f)
	}
	return fc
}

// ExportGeoJSON marshals a whole store.
func ExportGeoJSON(s *Store) ([]byte, error) {
	return FeatureCollection(s.Records()).MarshalJSON()
}
