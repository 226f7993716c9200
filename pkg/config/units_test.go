package config

import (
	"math"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"10s", 10 * time.Second, false},
		{"1m", 1 * time.Minute, false},
		{"1.5h", 90 * time.Minute, false},
		{"1d", 24 * time.Hour, false},
		{"1w", 168 * time.Hour, false},
		{"2d2h", 50 * time.Hour, false},
		{"100ms", 100 * time.Millisecond, false},
		{"invalid", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDuration(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestParseDegrees(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		wantErr  bool
	}{
		{"0.2", 0.2, false},
		{"0.5deg", 0.5, false},
		{"12nm", 0.2, false},
		{"111.32km", 1, false},
		{"", 0, false},
		{"10x", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDegrees(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDegrees(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if math.Abs(got-tt.expected) > 1e-12 {
			t.Errorf("ParseDegrees(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestYAMLUnmarshal(t *testing.T) {
	type TestConfig struct {
		Time Duration `yaml:"time"`
		Tol  Degrees  `yaml:"tol"`
	}

	yamlData := `
time: 2d
tol: 12nm
`
	var cfg TestConfig
	if err := yaml.Unmarshal([]byte(yamlData), &cfg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if time.Duration(cfg.Time) != 48*time.Hour {
		t.Errorf("Expected 48h, got %v", time.Duration(cfg.Time))
	}
	if math.Abs(float64(cfg.Tol)-0.2) > 1e-12 {
		t.Errorf("Expected 0.2 degrees, got %v", cfg.Tol)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(out), "tol: 0.2deg") {
		t.Errorf("unexpected marshal output: %s", out)
	}
}
