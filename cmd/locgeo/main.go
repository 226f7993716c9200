package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"locgeo/pkg/config"
	"locgeo/pkg/locid"
	"locgeo/pkg/logging"
	"locgeo/pkg/metrics"
	"locgeo/pkg/version"
)

const defaultConfigPath = "configs/locgeo.yaml"

// app is the state shared by all subcommands, set up in PersistentPreRunE.
type app struct {
	cfg     *config.Config
	codec   *locid.Codec
	metrics *metrics.Metrics
	cleanup func()
}

var (
	configPath string
	logLevel   string
	initConfig bool
	state      app
)

var rootCmd = &cobra.Command{
	Use:           "locgeo",
	Short:         "Location hierarchy and geometry resolution",
	Long:          "locgeo imports administrative boundaries into per-scope stores, builds parent levels, and resolves and geocodes loc_ids.",
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if initConfig {
			return nil
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			cfg.Log.App.Level = logLevel
		}
		cleanup, err := logging.Init(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		codec := cfg.Codec()
		locid.SetDefault(codec)
		state = app{cfg: cfg, codec: codec, metrics: metrics.NewMetrics(), cleanup: cleanup}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if state.cleanup != nil {
			state.cleanup()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !initConfig {
			return cmd.Help()
		}
		if err := config.GenerateDefault(configPath); err != nil {
			return fmt.Errorf("failed to generate config: %w", err)
		}
		fmt.Printf("Config file generated: %s\n", configPath)
		return nil
	},
}

func init() {
	cobra.MousetrapHelpText = ""
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&initConfig, "init-config", false, "Generate default config file and exit")

	rootCmd.AddCommand(importCmd(), buildCmd(), geocodeCmd(), resolveCmd(), rollupCmd(), exportCmd(), catalogCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// dataDir picks the native or fallback store directory.
func dataDir(fallback bool) string {
	if fallback {
		return state.cfg.Data.FallbackDir
	}
	return state.cfg.Data.NativeDir
}
