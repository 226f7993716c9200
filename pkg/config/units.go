package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support extended units (d, w) in YAML/JSON.
type Duration time.Duration

// Common durations.
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// ParseDuration parses a duration string, supporting d and w.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	// time.ParseDuration knows neither d nor w.
	if strings.ContainsAny(s, "dw") {
		return parseExtendedDuration(s)
	}

	return time.ParseDuration(s)
}

var unitMap = map[string]time.Duration{
	"ns": time.Nanosecond,
	"us": time.Microsecond,
	"µs": time.Microsecond,
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  Day,
	"w":  Week,
}

var durationPart = regexp.MustCompile(`([0-9.]+)([a-zµ]+)`)

func parseExtendedDuration(s string) (time.Duration, error) {
	var total time.Duration

	matches := durationPart.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid duration format: %s", s)
	}

	for _, match := range matches {
		valStr := match[1]
		unitStr := match[2]

		val, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number in duration: %s", valStr)
		}

		base, ok := unitMap[unitStr]
		if !ok {
			return 0, fmt.Errorf("unknown unit: %s", unitStr)
		}

		total += time.Duration(val * float64(base))
	}

	return total, nil
}

// Degrees is an angular distance in degrees of arc. YAML values accept
// deg, nm (nautical miles, 60 per degree) and km.
type Degrees float64

// KmPerDegree is the length of one degree of latitude.
const KmPerDegree = 111.32

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Degrees) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		// Bare number
		var f float64
		if errNum := value.Decode(&f); errNum == nil {
			*d = Degrees(f)
			return nil
		}
		return err
	}

	deg, err := ParseDegrees(s)
	if err != nil {
		return err
	}
	*d = Degrees(deg)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Degrees) MarshalYAML() (interface{}, error) {
	return strconv.FormatFloat(float64(d), 'f', -1, 64) + "deg", nil
}

// ParseDegrees parses an angular distance such as "0.2", "0.2deg",
// "12nm" or "22km".
func ParseDegrees(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	var div float64
	var numStr string

	switch {
	case strings.HasSuffix(s, "deg"):
		div = 1
		numStr = strings.TrimSuffix(s, "deg")
	case strings.HasSuffix(s, "nm"):
		div = 60
		numStr = strings.TrimSuffix(s, "nm")
	case strings.HasSuffix(s, "km"):
		div = KmPerDegree
		numStr = strings.TrimSuffix(s, "km")
	default:
		div = 1
		numStr = s
	}

	val, err := strconv.ParseFloat(strings.TrimSpace(numStr), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid angular distance: %w", err)
	}
	return val / div, nil
}
