package main

import (
	"encoding/json"
	"os"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"locgeo/pkg/crosswalk"
	"locgeo/pkg/model"
	"locgeo/pkg/resolver"
	"locgeo/pkg/store"
)

type resolveOutput struct {
	LocID     string           `json:"loc_id"`
	QueriedID string           `json:"queried_id"`
	Tier      string           `json:"tier"`
	Name      string           `json:"name,omitempty"`
	Level     int              `json:"admin_level"`
	Feature   *geojson.Feature `json:"feature,omitempty"`
}

func resolveCmd() *cobra.Command {
	var (
		nearest  bool
		withGeom bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <loc_id>...",
		Short: "Resolve loc_ids through the native, crosswalk and fallback tiers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := state.cfg
			r := resolver.New(
				store.NewSet(cfg.Data.NativeDir),
				store.NewSet(cfg.Data.FallbackDir),
				crosswalk.NewTranslator(cfg.Data.CrosswalkDir),
				state.metrics,
			)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			for _, id := range args {
				var (
					res resolver.Result
					err error
				)
				if nearest {
					res, err = r.ResolveNearest(id)
				} else {
					res, err = r.Resolve(id)
				}
				if err != nil {
					return err
				}
				out := resolveOutput{
					LocID:     id,
					QueriedID: res.QueriedID,
					Tier:      res.Tier.String(),
					Name:      res.Record.Name,
					Level:     res.Record.AdminLevel,
				}
				if withGeom {
					out.Feature = store.FeatureCollection([]*model.GeometryRecord{res.Record}).Features[0]
				}
				if err := enc.Encode(out); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&nearest, "nearest", false, "Fall back to the nearest ancestor with geometry")
	cmd.Flags().BoolVar(&withGeom, "geometry", false, "Include the geometry as a GeoJSON feature")
	return cmd
}
