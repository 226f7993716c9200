// Package catalog builds the discovery index over all scope summaries.
// The index is a value built once after every per-scope pass finished and
// handed to its consumers; nothing here is global.
package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/uber/h3-go/v4"

	"locgeo/pkg/model"
)

// Resolution is the H3 resolution of scope cells (~12,000 km² per cell).
const Resolution = 3

// nearRings is the GridDisk radius used by ScopesNear.
const nearRings = 2

// Entry is one scope in the index.
type Entry struct {
	model.Summary
	Cell string `json:"h3_cell,omitempty"`
}

// Index is the discovery index.
type Index struct {
	BuiltAt    time.Time `json:"built_at"`
	RunID      string    `json:"run_id,omitempty"`
	Resolution int       `json:"resolution"`
	Entries    []Entry   `json:"scopes"`

	byScope map[string]int
}

// Build reduces scope summaries into an index. Entries are sorted by scope.
func Build(sums []model.Summary, runID string, clock clockwork.Clock) *Index {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ix := &Index{
		BuiltAt:    clock.Now().UTC(),
		RunID:      runID,
		Resolution: Resolution,
		Entries:    make([]Entry, 0, len(sums)),
	}
	for _, s := range sums {
		e := Entry{Summary: s}
		if s.Records > 0 {
			if c, err := cellOf(s.BBox.Center()); err == nil {
				e.Cell = c.String()
			}
		}
		ix.Entries = append(ix.Entries, e)
	}
	sort.Slice(ix.Entries, func(i, j int) bool { return ix.Entries[i].Scope < ix.Entries[j].Scope })
	ix.reindex()
	return ix
}

func cellOf(p orb.Point) (h3.Cell, error) {
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) {
		return 0, fmt.Errorf("no position")
	}
	return h3.LatLngToCell(h3.LatLng{Lat: p[1], Lng: p[0]}, Resolution)
}

func (ix *Index) reindex() {
	ix.byScope = make(map[string]int, len(ix.Entries))
	for i, e := range ix.Entries {
		ix.byScope[e.Scope] = i
	}
}

// Lookup returns the entry of one scope.
func (ix *Index) Lookup(scope string) (Entry, bool) {
	i, ok := ix.byScope[scope]
	if !ok {
		return Entry{}, false
	}
	return ix.Entries[i], true
}

// Scopes lists all indexed scopes.
func (ix *Index) Scopes() []string {
	out := make([]string, len(ix.Entries))
	for i, e := range ix.Entries {
		out[i] = e.Scope
	}
	return out
}

// Records sums record counts over all scopes.
func (ix *Index) Records() int {
	n := 0
	for _, e := range ix.Entries {
		n += e.Records
	}
	return n
}

// ScopesNear returns the scopes whose bounding box contains the point or
// whose cell lies within a few H3 rings of it, sorted by scope.
func (ix *Index) ScopesNear(lat, lon float64) ([]string, error) {
	p := orb.Point{lon, lat}
	origin, err := cellOf(p)
	if err != nil {
		return nil, err
	}
	disk, err := h3.GridDisk(origin, nearRings)
	if err != nil {
		return nil, err
	}
	near := make(map[string]bool, len(disk))
	for _, c := range disk {
		near[c.String()] = true
	}

	var out []string
	for _, e := range ix.Entries {
		if e.Records == 0 {
			continue
		}
		if e.BBox.Contains(p) || near[e.Cell] {
			out = append(out, e.Scope)
		}
	}
	return out, nil
}

// Save writes the index as JSON, creating parent directories.
func (ix *Index) Save(path string) error {
	data, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads an index written by Save.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	ix.reindex()
	return &ix, nil
}
