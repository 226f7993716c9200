package aggregate

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule is how child values combine into a parent value.
type Rule string

const (
	RuleSum         Rule = "sum"
	RuleAvg         Rule = "avg"
	RuleFirst       Rule = "first"
	RuleMax         Rule = "max"
	RuleMin         Rule = "min"
	RuleWeightedAvg Rule = "weighted_avg"
)

// Spec is the aggregation policy of one metric.
type Spec struct {
	Metric string `yaml:"metric"`
	Rule   Rule   `yaml:"rule"`
	// Weight names the weight column for weighted_avg.
	Weight string `yaml:"weight,omitempty"`
}

// Specs is the declarative rule table keyed by metric name.
type Specs map[string]Spec

// Validate checks every rule.
func (s Specs) Validate() error {
	for name, sp := range s {
		switch sp.Rule {
		case RuleSum, RuleAvg, RuleFirst, RuleMax, RuleMin:
		case RuleWeightedAvg:
			if sp.Weight == "" {
				return fmt.Errorf("metric %s: weighted_avg needs a weight column", name)
			}
		default:
			return fmt.Errorf("metric %s: %w %q", name, ErrUnknownRule, sp.Rule)
		}
	}
	return nil
}

// Names returns metric names in sorted order.
func (s Specs) Names() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type specFile struct {
	Metrics []Spec `yaml:"metrics"`
}

// ParseSpecs reads a rule table from YAML:
//
//	metrics:
//	  - metric: population
//	    rule: sum
func ParseSpecs(data []byte) (Specs, error) {
	var f specFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse aggregation specs: %w", err)
	}
	out := make(Specs, len(f.Metrics))
	for _, sp := range f.Metrics {
		sp.Metric = strings.TrimSpace(sp.Metric)
		sp.Rule = Rule(strings.ToLower(string(sp.Rule)))
		out[sp.Metric] = sp
	}
	return out, out.Validate()
}

// LoadSpecs reads a rule table from a YAML file.
func LoadSpecs(path string) (Specs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSpecs(data)
}

// FromMap builds Specs from a metric -> rule map, as found in config.
// Weighted rules use "weighted_avg:<weight column>".
func FromMap(m map[string]string) (Specs, error) {
	out := make(Specs, len(m))
	for name, r := range m {
		rule, weight, _ := strings.Cut(r, ":")
		out[name] = Spec{Metric: name, Rule: Rule(strings.ToLower(strings.TrimSpace(rule))), Weight: strings.TrimSpace(weight)}
	}
	return out, out.Validate()
}
