package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"locgeo/pkg/store"
)

func exportCmd() *cobra.Command {
	var (
		output   string
		fallback bool
	)
	cmd := &cobra.Command{
		Use:   "export <scope>",
		Short: "Export a scope as a GeoJSON FeatureCollection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := store.ScopeID(args[0])
			st, err := store.NewSet(dataDir(fallback)).Get(scope)
			if err != nil {
				return err
			}
			if st == nil {
				return fmt.Errorf("no store for scope %s", scope)
			}
			data, err := store.ExportGeoJSON(st)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			slog.Info("Exported scope", "scope", scope, "records", st.Len(), "path", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().BoolVar(&fallback, "fallback", false, "Export from the fallback store")
	return cmd
}
