package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"locgeo/pkg/db/maintenance"
	"locgeo/pkg/pipeline"
	"locgeo/pkg/store"
)

func buildCmd() *cobra.Command {
	var (
		fallback bool
		maintain time.Duration
	)
	cmd := &cobra.Command{
		Use:   "build [scope]...",
		Short: "Dissolve parents, simplify and rebuild the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := state.cfg
			names := args
			if len(names) == 0 {
				names = cfg.Pipeline.Scopes
			}
			scopes := make([]store.ScopeID, len(names))
			for i, s := range names {
				scopes[i] = store.ScopeID(s)
			}

			clock := clockwork.NewRealClock()
			ctx := context.Background()
			if t := time.Duration(cfg.Pipeline.Timeout); t > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, t)
				defer cancel()
			}

			p := pipeline.New(pipeline.Options{
				Dir:         dataDir(fallback),
				Workers:     cfg.Pipeline.Workers,
				Scopes:      scopes,
				CatalogPath: cfg.Data.CatalogPath,
				Tolerances:  cfg.Tolerances(),
				Codec:       state.codec,
			}, state.metrics, clock)

			rep, err := p.Run(ctx)
			if perr := state.metrics.Push(cfg.Metrics.PushURL, cfg.Metrics.Job, p.RunID()); perr != nil {
				slog.Warn("Build: metrics push failed", "error", perr)
			}
			if err != nil {
				return err
			}

			for _, r := range rep.Results {
				status := "ok"
				if r.Err != nil {
					status = r.Err.Error()
				}
				fmt.Printf("%-16s records=%-7d saved=%-6d %s\n", r.Scope, r.Summary.Records, r.Saved, status)
			}
			if maintain > 0 {
				n, err := maintenance.RunAll(ctx, store.NewSet(dataDir(fallback)), clock, maintain)
				if err != nil {
					slog.Warn("Build: maintenance incomplete", "error", err)
				}
				slog.Info("Build: maintenance done", "files", n)
			}
			if failed := rep.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d scopes failed", len(failed), len(rep.Results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fallback, "fallback", false, "Build the fallback stores")
	cmd.Flags().DurationVar(&maintain, "maintain", 0, "Vacuum and check scope files not maintained within this interval (0 disables)")
	return cmd
}
