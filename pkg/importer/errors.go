package importer

import "errors"

var (
	// ErrUnsupportedFormat is returned for boundary files of unknown type.
	ErrUnsupportedFormat = errors.New("unsupported boundary format")
	// ErrMissingField is returned when a mapped attribute is absent or empty.
	ErrMissingField = errors.New("missing mapped field")
	// ErrNoFeatureTable is returned for a GeoPackage without a features table.
	ErrNoFeatureTable = errors.New("no feature table")
)
