package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"locgeo/pkg/aggregate"
	"locgeo/pkg/geo"
)

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "locgeo.yaml")

	tests := []struct {
		name          string
		setup         func()
		validate      func(*testing.T, *Config)
		checkFile     func(*testing.T)
		expectedError bool
	}{
		{
			name:  "NewFile_Defaults",
			setup: func() {},
			validate: func(t *testing.T, cfg *Config) {
				if float64(cfg.Geocoder.Tolerance) != geo.DefaultTolerance {
					t.Errorf("expected default tolerance %v, got %v", geo.DefaultTolerance, cfg.Geocoder.Tolerance)
				}
				if cfg.Pipeline.Workers != 4 {
					t.Errorf("expected 4 workers, got %d", cfg.Pipeline.Workers)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "profile: global") {
					t.Error("config file missing default values")
				}
				if !strings.Contains(string(content), "# Options: global, usa, canada, australia") {
					t.Error("config file missing profile comment")
				}
			},
		},
		{
			name: "ExistingFile_Override",
			setup: func() {
				data := "geocoder:\n  tolerance: 6nm\n  profile: usa\npipeline:\n  workers: 8\n  timeout: 1d\n"
				if err := os.WriteFile(configPath, []byte(data), 0o644); err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Geocoder.Profile != "usa" {
					t.Errorf("expected profile usa, got %s", cfg.Geocoder.Profile)
				}
				if float64(cfg.Geocoder.Tolerance) != 0.1 {
					t.Errorf("expected 0.1 degrees, got %v", cfg.Geocoder.Tolerance)
				}
				if time.Duration(cfg.Pipeline.Timeout) != 24*time.Hour {
					t.Errorf("expected 24h timeout, got %v", time.Duration(cfg.Pipeline.Timeout))
				}
				// Untouched sections keep their defaults
				if cfg.Data.NativeDir != "./data/native" {
					t.Errorf("expected default native dir, got %s", cfg.Data.NativeDir)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if strings.Contains(string(content), "native_dir") {
					t.Error("existing config file must not be rewritten")
				}
			},
		},
		{
			name: "InvalidProfile",
			setup: func() {
				if err := os.WriteFile(configPath, []byte("geocoder:\n  profile: mars\n"), 0o644); err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
		{
			name: "InvalidRule",
			setup: func() {
				if err := os.WriteFile(configPath, []byte("aggregation:\n  rules:\n    rate: median\n"), 0o644); err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Remove(configPath)
			tt.setup()

			cfg, err := Load(configPath)
			if (err != nil) != tt.expectedError {
				t.Fatalf("Load() error = %v, expectedError %v", err, tt.expectedError)
			}
			if tt.expectedError {
				return
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
			if tt.checkFile != nil {
				tt.checkFile(t)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "locgeo.yaml")

	t.Setenv("LOCGEO_DATA_DIR", "/srv/geo")
	t.Setenv("LOCGEO_WORKERS", "16")
	t.Setenv("LOCGEO_LOG_LEVEL", "debug")
	// .env never overrides variables already set
	if err := os.WriteFile(filepath.Join(tempDir, ".env"), []byte("LOCGEO_WORKERS=2\nLOCGEO_PUSHGATEWAY=http://gw:9091\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("LOCGEO_PUSHGATEWAY") })

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Data.NativeDir != filepath.Join("/srv/geo", "native") {
		t.Errorf("unexpected native dir %s", cfg.Data.NativeDir)
	}
	if cfg.Pipeline.Workers != 16 {
		t.Errorf("expected 16 workers, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Log.App.Level != "DEBUG" {
		t.Errorf("expected DEBUG, got %s", cfg.Log.App.Level)
	}
	if cfg.Metrics.PushURL != "http://gw:9091" {
		t.Errorf("expected push url from .env, got %q", cfg.Metrics.PushURL)
	}

	t.Setenv("LOCGEO_WORKERS", "many")
	if _, err := Load(configPath); err == nil {
		t.Error("expected error for non-numeric LOCGEO_WORKERS")
	}
}

func TestConfigHelpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Entities.Roots = []string{"LAKE-CHAD-BASIN"}
	cfg.Aggregation.Rules = map[string]string{"income": "weighted_avg:population", "population": "sum"}

	codec := cfg.Codec()
	if !codec.IsRoot("LAKE-CHAD-BASIN") || !codec.IsRoot("AMAZON-BASIN") {
		t.Error("configured roots must extend the defaults")
	}

	specs, err := cfg.AggregationSpecs()
	if err != nil {
		t.Fatalf("AggregationSpecs failed: %v", err)
	}
	if specs["income"].Rule != aggregate.RuleWeightedAvg || specs["income"].Weight != "population" {
		t.Errorf("unexpected spec %+v", specs["income"])
	}

	if got := cfg.Tolerances().For(0); got != 0.01 {
		t.Errorf("expected level 0 tolerance 0.01, got %v", got)
	}

	opts, err := cfg.GeocoderOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Profile != geo.ProfileGlobal || opts.Tolerance != geo.DefaultTolerance {
		t.Errorf("unexpected options %+v", opts)
	}
}

func TestGenerateDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "locgeo.yaml")
	if err := GenerateDefault(path); err != nil {
		t.Fatalf("GenerateDefault failed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load after GenerateDefault failed: %v", err)
	}
	if cfg.Metrics.Job != "locgeo_build" {
		t.Errorf("expected default job, got %s", cfg.Metrics.Job)
	}
}
