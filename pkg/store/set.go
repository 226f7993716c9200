package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"locgeo/pkg/db"
)

// FileExt is the extension of scope files.
const FileExt = ".db"

type setEntry struct {
	once  sync.Once
	store *Store
	err   error
}

// Set lazily loads the scope files of one directory. Each scope is read at
// most once per process and then treated as immutable.
type Set struct {
	dir     string
	mu      sync.Mutex
	entries map[ScopeID]*setEntry
}

// NewSet creates a Set rooted at dir.
func NewSet(dir string) *Set {
	return &Set{dir: dir, entries: make(map[ScopeID]*setEntry)}
}

// Dir returns the directory backing the set.
func (s *Set) Dir() string { return s.dir }

// Path returns the file path for a scope.
func (s *Set) Path(scope ScopeID) string {
	return filepath.Join(s.dir, string(scope)+FileExt)
}

// Get returns the loaded store for scope. A scope without a file yields
// (nil, nil): a definite miss, not an error.
func (s *Set) Get(scope ScopeID) (*Store, error) {
	s.mu.Lock()
	e, ok := s.entries[scope]
	if !ok {
		e = &setEntry{}
		s.entries[scope] = e
	}
	s.mu.Unlock()

	e.once.Do(func() {
		e.store, e.err = LoadFile(context.Background(), scope, s.Path(scope))
		if e.err == nil && e.store != nil {
			slog.Debug("Store: loaded scope", "scope", scope, "records", e.store.Len(), "version", e.store.Version())
		}
	})
	return e.store, e.err
}

// Scopes lists the scopes that have a file in the directory.
func (s *Set) Scopes() ([]ScopeID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []ScopeID
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), FileExt) {
			continue
		}
		out = append(out, ScopeID(strings.TrimSuffix(e.Name(), FileExt)))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// LoadFile reads a scope file into an immutable Store. A missing file
// returns (nil, nil).
func LoadFile(ctx context.Context, scope ScopeID, path string) (*Store, error) {
	d, err := db.OpenExisting(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer d.Close()

	ss := NewSQLiteStore(d)
	recs, err := ss.LoadRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", scope, err)
	}
	return New(scope, ss.Version(ctx), recs)
}
