package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"locgeo/pkg/catalog"
)

func catalogCmd() *cobra.Command {
	var near string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show the discovery index written by the last build",
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := catalog.Load(state.cfg.Data.CatalogPath)
			if err != nil {
				return err
			}

			scopes := ix.Scopes()
			if near != "" {
				lat, lon, err := parseLatLon(near)
				if err != nil {
					return err
				}
				if scopes, err = ix.ScopesNear(lat, lon); err != nil {
					return err
				}
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCOPE\tVERSION\tRECORDS\tDEPTH\tINVALID\tH3")
			for _, s := range scopes {
				e, _ := ix.Lookup(s)
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\n", e.Scope, e.Version, e.Records, e.MaxDepth, e.Invalid, e.Cell)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Printf("\n%d scopes, %d records, built %s\n", len(scopes), ix.Records(), ix.BuiltAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
	cmd.Flags().StringVar(&near, "near", "", "Only scopes near a point, as lat,lon")
	return cmd
}

func parseLatLon(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected lat,lon, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad longitude: %w", err)
	}
	return lat, lon, nil
}
