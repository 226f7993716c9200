package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"locgeo/pkg/aggregate"
	"locgeo/pkg/model"
)

func rollupCmd() *cobra.Command {
	var (
		input  string
		output string
		tree   bool
	)
	cmd := &cobra.Command{
		Use:   "rollup --input <metrics.csv>",
		Short: "Aggregate metric rows from children to parents",
		Long:  "Reads loc_id,year,<metrics...> rows and writes one row per (parent, year), combining each metric with its configured rule. --tree repeats the pass up to the root.",
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := state.cfg.AggregationSpecs()
			if err != nil {
				return err
			}

			var r io.Reader = os.Stdin
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			rows, err := aggregate.ReadCSV(r)
			if err != nil {
				return err
			}

			roller := aggregate.NewRoller(specs, state.codec, state.metrics)
			var (
				out []model.MetricRow
				rep aggregate.Report
			)
			if tree {
				out, rep = roller.RollupTree(rows)
			} else {
				out, rep = roller.Rollup(rows)
			}
			if err := rep.Err(); err != nil {
				slog.Warn("Columns excluded from aggregation", "error", err)
			}
			if rep.Orphans > 0 {
				slog.Info("Rows without a parent skipped", "count", rep.Orphans)
			}

			var w io.Writer = os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return aggregate.WriteCSV(w, out)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&input, "input", "i", "", "Input CSV (default stdin)")
	f.StringVarP(&output, "output", "o", "", "Output CSV (default stdout)")
	f.BoolVar(&tree, "tree", false, "Aggregate every ancestor level, keeping the input rows")
	return cmd
}
