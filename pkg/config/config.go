package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"locgeo/pkg/aggregate"
	"locgeo/pkg/geo"
	"locgeo/pkg/locid"
	"locgeo/pkg/simplify"
)

// Config holds the application configuration.
type Config struct {
	Data        DataConfig        `yaml:"data"`
	Geocoder    GeocoderConfig    `yaml:"geocoder"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Simplify    SimplifyConfig    `yaml:"simplify"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Entities    EntitiesConfig    `yaml:"entities"`
	Log         LogConfig         `yaml:"log"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// DataConfig holds the locations of scope files and reference data.
type DataConfig struct {
	NativeDir    string `yaml:"native_dir"`    // per-country authoritative geometry
	FallbackDir  string `yaml:"fallback_dir"`  // global fallback geometry
	CrosswalkDir string `yaml:"crosswalk_dir"` // {ISO3}.yaml crosswalk files
	CatalogPath  string `yaml:"catalog_path"`
}

// GeocoderConfig holds settings for the spatial geocoder.
type GeocoderConfig struct {
	Tolerance Degrees `yaml:"tolerance"` // territorial waters
	Profile   string  `yaml:"profile"`
}

// PipelineConfig holds settings for batch builds.
type PipelineConfig struct {
	Workers int      `yaml:"workers"`
	Scopes  []string `yaml:"scopes"` // empty: every scope file
	Timeout Duration `yaml:"timeout"`
}

// SimplifyConfig holds per-level simplification tolerances in degrees.
// Index 0 is level 0; deeper levels reuse the last entry.
type SimplifyConfig struct {
	Tolerances []float64 `yaml:"tolerances"`
}

// AggregationConfig holds metric rollup rules.
type AggregationConfig struct {
	Rules    map[string]string `yaml:"rules"`     // metric -> rule, "weighted_avg:<weight>"
	SpecFile string            `yaml:"spec_file"` // overrides Rules when set
}

// EntitiesConfig extends the identifier registry.
type EntitiesConfig struct {
	Roots      []string `yaml:"roots"`
	Exceptions []string `yaml:"exceptions"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	App LogSettings `yaml:"app"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// MetricsConfig holds pushgateway settings.
type MetricsConfig struct {
	PushURL string `yaml:"push_url"`
	Job     string `yaml:"job"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			NativeDir:    "./data/native",
			FallbackDir:  "./data/fallback",
			CrosswalkDir: "./data/crosswalk",
			CatalogPath:  "./data/catalog.json",
		},
		Geocoder: GeocoderConfig{
			Tolerance: Degrees(geo.DefaultTolerance),
			Profile:   string(geo.ProfileGlobal),
		},
		Pipeline: PipelineConfig{
			Workers: 4,
			Timeout: Duration(6 * time.Hour),
		},
		Simplify: SimplifyConfig{
			Tolerances: append([]float64(nil), simplify.DefaultTolerances...),
		},
		Aggregation: AggregationConfig{
			Rules: map[string]string{
				"population": "sum",
			},
		},
		Log: LogConfig{
			App: LogSettings{
				Path:  "./logs/locgeo.log",
				Level: "INFO",
			},
		},
		Metrics: MetricsConfig{
			Job: "locgeo_build",
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// Environment overrides (optionally from a .env file next to the config)
// are applied last and never written back to disk.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	_ = godotenv.Load(filepath.Join(dir, ".env"))
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("LOCGEO_DATA_DIR"); v != "" {
		cfg.Data.NativeDir = filepath.Join(v, "native")
		cfg.Data.FallbackDir = filepath.Join(v, "fallback")
		cfg.Data.CrosswalkDir = filepath.Join(v, "crosswalk")
		cfg.Data.CatalogPath = filepath.Join(v, "catalog.json")
	}
	if v := os.Getenv("LOCGEO_LOG_LEVEL"); v != "" {
		cfg.Log.App.Level = strings.ToUpper(v)
	}
	if v := os.Getenv("LOCGEO_PUSHGATEWAY"); v != "" {
		cfg.Metrics.PushURL = v
	}
	if v := os.Getenv("LOCGEO_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LOCGEO_WORKERS %q: %w", v, err)
		}
		cfg.Pipeline.Workers = n
	}
	return nil
}

// Validate checks values that other packages would otherwise reject late.
func (c *Config) Validate() error {
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Geocoder.Tolerance < 0 {
		return fmt.Errorf("geocoder.tolerance must not be negative")
	}
	if _, err := geo.ParseProfile(c.Geocoder.Profile); err != nil {
		return err
	}
	if c.Aggregation.SpecFile == "" {
		if _, err := aggregate.FromMap(c.Aggregation.Rules); err != nil {
			return fmt.Errorf("aggregation.rules: %w", err)
		}
	}
	return nil
}

// Registry builds the identifier registry. Configured roots and
// exceptions are added to the built-in lists.
func (c *Config) Registry() *locid.Registry {
	if len(c.Entities.Roots) == 0 && len(c.Entities.Exceptions) == 0 {
		return locid.NewRegistry(nil, nil)
	}
	roots := append(append([]string(nil), locid.DefaultRoots...), c.Entities.Roots...)
	exc := append(append([]string(nil), locid.DefaultExceptions...), c.Entities.Exceptions...)
	return locid.NewRegistry(exc, roots)
}

// Codec builds an identifier codec over Registry.
func (c *Config) Codec() *locid.Codec {
	return locid.NewCodec(c.Registry())
}

// AggregationSpecs returns the rollup rule table.
func (c *Config) AggregationSpecs() (aggregate.Specs, error) {
	if c.Aggregation.SpecFile != "" {
		return aggregate.LoadSpecs(c.Aggregation.SpecFile)
	}
	return aggregate.FromMap(c.Aggregation.Rules)
}

// Tolerances returns the simplification table.
func (c *Config) Tolerances() simplify.Tolerances {
	if len(c.Simplify.Tolerances) == 0 {
		return simplify.DefaultTolerances
	}
	return simplify.Tolerances(c.Simplify.Tolerances)
}

// GeocoderOptions returns the geocoder settings.
func (c *Config) GeocoderOptions() (geo.Options, error) {
	p, err := geo.ParseProfile(c.Geocoder.Profile)
	if err != nil {
		return geo.Options{}, err
	}
	return geo.Options{Tolerance: float64(c.Geocoder.Tolerance), Profile: p}, nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# locgeo Configuration
# ---------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Degrees:  deg (default), nm (nautical miles), km (kilometers)
# Environment: LOCGEO_DATA_DIR, LOCGEO_LOG_LEVEL, LOCGEO_PUSHGATEWAY, LOCGEO_WORKERS

`)
	data = append(header, data...)

	reProfile := regexp.MustCompile(`(?m)^(\s+)profile:`)
	data = reProfile.ReplaceAll(data, []byte("${1}# Options: global, usa, canada, australia\n${1}profile:"))

	reRules := regexp.MustCompile(`(?m)^(\s+)rules:`)
	data = reRules.ReplaceAll(data, []byte("${1}# Options: sum, avg, first, max, min, weighted_avg:<weight column>\n${1}rules:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
