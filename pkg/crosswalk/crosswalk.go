// Package crosswalk translates a country's native identifiers into the
// identifier scheme of the global fallback geometry.
package crosswalk

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Entry is one country's crosswalk file.
type Entry struct {
	SourceSystem string            `yaml:"source_system"`
	TargetSystem string            `yaml:"target_system"`
	Mapping      map[string]string `yaml:"mapping"`
}

type slot struct {
	once  sync.Once
	entry *Entry
}

// Translator loads crosswalk files lazily, one per country, from a
// directory of {ISO3}.yaml files.
type Translator struct {
	dir   string
	mu    sync.Mutex
	slots map[string]*slot
}

// NewTranslator creates a Translator over dir.
func NewTranslator(dir string) *Translator {
	return &Translator{dir: dir, slots: make(map[string]*slot)}
}

// Translate maps localID to its fallback id. A missing file or key is an
// expected miss and returns false.
func (t *Translator) Translate(localID, country string) (string, bool) {
	e := t.Entry(country)
	if e == nil {
		return "", false
	}
	id, ok := e.Mapping[localID]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Entry returns the loaded crosswalk for country, or nil.
func (t *Translator) Entry(country string) *Entry {
	if t == nil || t.dir == "" || country == "" {
		return nil
	}
	t.mu.Lock()
	s, ok := t.slots[country]
	if !ok {
		s = &slot{}
		t.slots[country] = s
	}
	t.mu.Unlock()

	s.once.Do(func() {
		e, err := LoadFile(filepath.Join(t.dir, country+".yaml"))
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				slog.Warn("Crosswalk: unreadable file, treating as absent", "country", country, "error", err)
			}
			return
		}
		slog.Debug("Crosswalk: loaded", "country", country, "source", e.SourceSystem, "target", e.TargetSystem, "entries", len(e.Mapping))
		s.entry = e
	})
	return s.entry
}

// LoadFile reads and parses one crosswalk file.
func LoadFile(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to parse crosswalk %s: %w", path, err)
	}
	if e.Mapping == nil {
		e.Mapping = make(map[string]string)
	}
	return &e, nil
}

// Save writes an entry as a crosswalk file.
func Save(path string, e *Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create crosswalk dir: %w", err)
	}
	data, err := yaml.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal crosswalk: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
