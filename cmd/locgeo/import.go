package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"locgeo/pkg/importer"
	"locgeo/pkg/locid"
)

func importCmd() *cobra.Command {
	var (
		m          importer.Mapping
		entityType string
		table      string
		fallback   bool
	)
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Append boundary features (.shp, .geojson, .gpkg) to scope stores",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if entityType != "" {
				t, ok := locid.ParseEntityType(entityType)
				if !ok {
					return fmt.Errorf("unknown entity type %q", entityType)
				}
				m.Type = t
			}
			if m.IDField == "" && m.CodeField == "" {
				return fmt.Errorf("either --id-field or --code-field is required")
			}

			ctx := context.Background()
			im := importer.New(dataDir(fallback), m, state.codec)
			var firstErr error
			for _, path := range args {
				var feats []importer.Feature
				var err error
				if table != "" {
					feats, err = importer.ReadGeoPackage(ctx, path, table)
				} else {
					feats, err = importer.Open(ctx, path)
				}
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				rep, err := im.Import(ctx, feats)
				slog.Info("Import: file done", "path", path, "features", len(feats), "imported", rep.Total(),
					"rejected", len(rep.Rejected), "repaired", rep.Repaired, "invalid", rep.Invalid)
				if err != nil && firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", path, err)
				}
			}
			return firstErr
		},
	}
	f := cmd.Flags()
	f.StringVar(&m.IDField, "id-field", "", "Attribute holding a full loc_id")
	f.StringVar(&m.Prefix, "prefix", "", "Parent loc_id the code field is appended to")
	f.StringVar(&m.ParentField, "parent-field", "", "Attribute holding the parent loc_id")
	f.StringVar(&m.CodeField, "code-field", "", "Attribute holding the last loc_id segment")
	f.StringVar(&m.NameField, "name-field", "", "Attribute holding the display name")
	f.StringVar(&m.TypeField, "type-field", "", "Attribute holding the entity type")
	f.StringVar(&m.LevelField, "level-field", "", "Attribute holding the admin level")
	f.IntVar(&m.Level, "level", 0, "Admin level for all features (default: structural depth)")
	f.StringVar(&entityType, "type", "", "Entity type for all features (default: admin)")
	f.StringVar(&table, "table", "", "GeoPackage feature table (default: first)")
	f.BoolVar(&fallback, "fallback", false, "Write to the fallback stores")
	return cmd
}
