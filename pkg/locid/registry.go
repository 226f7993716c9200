package locid

import (
	"sort"
	"strings"

	"github.com/biter777/countries"
)

// SegmentRule constrains the format of one segment depth within a country.
type SegmentRule struct {
	// NoLeadingZeros rejects numeric segments such as "06037".
	NoLeadingZeros bool
}

// Registry holds the prefixes and roots the codec accepts beyond ISO 3166.
type Registry struct {
	exceptions map[string]bool
	roots      []string // sorted longest first
	rootSet    map[string]bool
	rules      map[string]map[int]SegmentRule
}

// DefaultExceptions are user-assigned or disputed codes in common use.
// None may start with a water prefix (XO, XS, XL).
var DefaultExceptions = []string{
	"XKX", // Kosovo
	"XNC", // Northern Cyprus
	"XAD", // Akrotiri
	"XXD", // Dhekelia
	"XCA", // Caspian Sea littoral claim areas
	"XPI", // Paracel Islands
}

// DefaultRoots are non-decomposable global entity names. They may contain
// hyphens but have no parent.
var DefaultRoots = []string{
	"AMAZON-BASIN",
	"CONGO-BASIN",
	"NILE-BASIN",
	"MEKONG-BASIN",
	"DANUBE-BASIN",
	"MISSISSIPPI-BASIN",
	"SAHEL",
	"ANTARCTICA-TREATY",
}

// NewRegistry builds a Registry. Nil slices fall back to the defaults.
func NewRegistry(exceptions, roots []string) *Registry {
	if exceptions == nil {
		exceptions = DefaultExceptions
	}
	if roots == nil {
		roots = DefaultRoots
	}
	r := &Registry{
		exceptions: make(map[string]bool, len(exceptions)),
		rootSet:    make(map[string]bool, len(roots)),
		rules: map[string]map[int]SegmentRule{
			// County FIPS joins are exact string matches.
			"USA": {2: {NoLeadingZeros: true}},
		},
	}
	for _, e := range exceptions {
		r.exceptions[e] = true
	}
	for _, root := range roots {
		if r.rootSet[root] {
			continue
		}
		r.rootSet[root] = true
		r.roots = append(r.roots, root)
	}
	sort.Slice(r.roots, func(i, j int) bool {
		if len(r.roots[i]) != len(r.roots[j]) {
			return len(r.roots[i]) > len(r.roots[j])
		}
		return r.roots[i] < r.roots[j]
	})
	return r
}

// SetRule installs a segment rule for a country at a given depth.
func (r *Registry) SetRule(country string, depth int, rule SegmentRule) {
	if r.rules[country] == nil {
		r.rules[country] = make(map[int]SegmentRule)
	}
	r.rules[country][depth] = rule
}

// IsISO3 reports whether code is an assigned ISO 3166-1 alpha-3 code.
func (r *Registry) IsISO3(code string) bool {
	if len(code) != 3 || !isUpperAlpha(code) {
		return false
	}
	c := countries.ByName(code)
	return c != countries.Unknown && c.Alpha3() == code
}

// IsCountry reports whether code is ISO alpha-3 or a registered exception.
func (r *Registry) IsCountry(code string) bool {
	return r.exceptions[code] || r.IsISO3(code)
}

// IsRoot reports whether id is a registered global entity root.
func (r *Registry) IsRoot(id string) bool {
	return r.rootSet[id]
}

// rootOf returns the registered root id starts with, if any.
func (r *Registry) rootOf(id string) (string, bool) {
	for _, root := range r.roots {
		if id == root || strings.HasPrefix(id, root+"-") {
			return root, true
		}
	}
	return "", false
}

func (r *Registry) rule(country string, depth int) SegmentRule {
	return r.rules[country][depth]
}

func isUpperAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
