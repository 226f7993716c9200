// Package locid implements the hierarchical location identifier.
//
// A loc_id is a country (or water body, or global entity root) followed by
// '-'-separated segments, e.g. "USA-CA-6037". Parents are derived
// structurally by removing the last segment; nothing is stored. Identifiers
// are validated, never repaired: no zero padding, no case folding.
package locid

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

// Separator joins segments.
const Separator = "-"

// Class is the coarse classification of an identifier.
type Class int

const (
	// ClassEntity is a subdivision or a country-scoped cross-boundary entity.
	ClassEntity Class = iota
	ClassCountry
	ClassWater
	ClassGlobalEntity
)

func (c Class) String() string {
	switch c {
	case ClassCountry:
		return "country"
	case ClassWater:
		return "water"
	case ClassGlobalEntity:
		return "global_entity"
	default:
		return "entity"
	}
}

// WaterKind distinguishes water prefixes.
type WaterKind byte

const (
	WaterNone  WaterKind = 0
	WaterOcean WaterKind = 'O'
	WaterSea   WaterKind = 'S'
	WaterLake  WaterKind = 'L'
)

// Hint is the result of Classify.
type Hint struct {
	Class Class
	Water WaterKind
	// Prefix is the country code, water code or global root the id hangs off.
	Prefix string
}

// Codec parses, validates and navigates identifiers against a Registry.
type Codec struct {
	reg *Registry
}

// NewCodec creates a codec. A nil registry uses the defaults.
func NewCodec(reg *Registry) *Codec {
	if reg == nil {
		reg = NewRegistry(nil, nil)
	}
	return &Codec{reg: reg}
}

// Registry returns the codec's registry.
func (c *Codec) Registry() *Registry { return c.reg }

// IsWaterCode reports whether s is a water prefix: 'X', then O/S/L, then a letter.
func IsWaterCode(s string) bool {
	if len(s) != 3 || s[0] != 'X' || !isUpperAlpha(s) {
		return false
	}
	switch WaterKind(s[1]) {
	case WaterOcean, WaterSea, WaterLake:
		return true
	}
	return false
}

func firstSegment(id string) string {
	if i := strings.Index(id, Separator); i >= 0 {
		return id[:i]
	}
	return id
}

// Classify returns a coarse classification of id. It does not validate.
func (c *Codec) Classify(id string) Hint {
	if root, ok := c.reg.rootOf(id); ok {
		return Hint{Class: ClassGlobalEntity, Prefix: root}
	}
	first := firstSegment(id)
	if IsWaterCode(first) {
		if first == id {
			return Hint{Class: ClassWater, Water: WaterKind(first[1]), Prefix: first}
		}
		return Hint{Class: ClassEntity, Water: WaterKind(first[1]), Prefix: first}
	}
	if c.reg.IsCountry(first) {
		if first == id {
			return Hint{Class: ClassCountry, Prefix: first}
		}
		return Hint{Class: ClassEntity, Prefix: first}
	}
	return Hint{Class: ClassEntity, Prefix: first}
}

// Validate checks id against the grammar and the registry.
func (c *Codec) Validate(id string) error {
	if id == "" {
		return invalid(id, ErrSeparator, "empty")
	}
	if strings.HasPrefix(id, Separator) || strings.HasSuffix(id, Separator) || strings.Contains(id, Separator+Separator) {
		return invalid(id, ErrSeparator, "")
	}
	if strings.ToUpper(id) != id {
		return invalid(id, ErrCasing, "identifiers are uppercase")
	}

	var prefix string
	var rest string
	if root, ok := c.reg.rootOf(id); ok {
		prefix = root
		rest = strings.TrimPrefix(strings.TrimPrefix(id, root), Separator)
	} else {
		prefix = firstSegment(id)
		rest = strings.TrimPrefix(strings.TrimPrefix(id, prefix), Separator)
		if !IsWaterCode(prefix) && !c.reg.IsCountry(prefix) {
			return invalid(id, ErrUnregisteredPrefix, prefix)
		}
	}
	if rest == "" {
		return nil
	}

	for i, seg := range strings.Split(rest, Separator) {
		if err := c.validateSegment(id, prefix, i+1, seg); err != nil {
			return err
		}
	}
	return nil
}

func (c *Codec) validateSegment(id, prefix string, depth int, seg string) error {
	numeric := true
	for i := 0; i < len(seg); i++ {
		ch := seg[i]
		switch {
		case ch >= '0' && ch <= '9':
		case ch >= 'A' && ch <= 'Z', ch == '_':
			numeric = false
		default:
			return invalid(id, ErrSegment, fmt.Sprintf("segment %q", seg))
		}
	}
	if numeric && len(seg) > 1 && seg[0] == '0' && c.reg.rule(prefix, depth).NoLeadingZeros {
		return invalid(id, ErrSegment, fmt.Sprintf("segment %q has leading zeros", seg))
	}
	return nil
}

// IsRoot reports whether id has no parent: a country, a bare water code or a
// registered global root.
func (c *Codec) IsRoot(id string) bool {
	if c.reg.IsRoot(id) {
		return true
	}
	if _, ok := c.reg.rootOf(id); ok {
		return false
	}
	return !strings.Contains(id, Separator)
}

// ParentOf strips the trailing segment. Roots have no parent.
func (c *Codec) ParentOf(id string) (string, bool) {
	if c.IsRoot(id) {
		return "", false
	}
	i := strings.LastIndex(id, Separator)
	if i <= 0 {
		return "", false
	}
	return id[:i], true
}

// ChildrenOf returns the members of candidates whose parent is id.
// Transitive descendants are excluded. Order follows candidates.
func (c *Codec) ChildrenOf(id string, candidates []string) []string {
	var out []string
	prefix := id + Separator
	for _, cand := range candidates {
		if !strings.HasPrefix(cand, prefix) {
			continue
		}
		if p, ok := c.ParentOf(cand); ok && p == id {
			out = append(out, cand)
		}
	}
	return out
}

// Ancestors returns the parent chain of id, nearest first.
func (c *Codec) Ancestors(id string) []string {
	var out []string
	for {
		p, ok := c.ParentOf(id)
		if !ok {
			return out
		}
		out = append(out, p)
		id = p
	}
}

// Depth is the structural admin level: 0 for roots.
func (c *Codec) Depth(id string) int {
	return len(c.Ancestors(id))
}

// RootOf returns the root at the top of id's chain.
func (c *Codec) RootOf(id string) string {
	for {
		p, ok := c.ParentOf(id)
		if !ok {
			return id
		}
		id = p
	}
}

// Build joins a prefix and segments and validates the result.
func (c *Codec) Build(prefix string, segments ...string) (string, error) {
	id := strings.Join(append([]string{prefix}, segments...), Separator)
	if err := c.Validate(id); err != nil {
		return "", err
	}
	return id, nil
}

// USCounty builds a county identifier from a state abbreviation and the
// numeric five-digit FIPS code, e.g. ("CA", 6037) -> "USA-CA-6037".
func (c *Codec) USCounty(state string, fips int) (string, error) {
	if fips <= 0 {
		return "", invalid(fmt.Sprintf("USA-%s-%d", state, fips), ErrSegment, "fips must be positive")
	}
	return c.Build("USA", state, strconv.Itoa(fips))
}

var (
	builtin = NewCodec(nil)
	std     atomic.Pointer[Codec]
)

func init() { std.Store(builtin) }

// Default returns the package-level codec. It is built from the default
// registry unless SetDefault installed another one.
func Default() *Codec { return std.Load() }

// SetDefault installs c as the package-level codec used by Validate,
// ParentOf, ChildrenOf and Classify. A nil c restores the built-in codec.
func SetDefault(c *Codec) {
	if c == nil {
		c = builtin
	}
	std.Store(c)
}

// Validate validates id with the default codec.
func Validate(id string) error { return Default().Validate(id) }

// ParentOf derives id's parent with the default codec.
func ParentOf(id string) (string, bool) { return Default().ParentOf(id) }

// ChildrenOf filters candidates with the default codec.
func ChildrenOf(id string, candidates []string) []string { return Default().ChildrenOf(id, candidates) }

// Classify classifies id with the default codec.
func Classify(id string) Hint { return Default().Classify(id) }
