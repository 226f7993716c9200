package main

import (
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locgeo/pkg/locid"
	"locgeo/pkg/store"
)

func TestReadEvents(t *testing.T) {
	in := "id,Latitude,lng\na,34.05,-118.25\nb,bad,2\n"
	events, header, err := readEvents(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "Latitude", "lng"}, header)
	require.Len(t, events, 2)
	assert.Equal(t, 34.05, events[0].Lat)
	assert.Equal(t, -118.25, events[0].Lon)
	assert.Equal(t, "a", events[0].Attrs["id"])
	assert.True(t, math.IsNaN(events[1].Lat))

	_, _, err = readEvents(strings.NewReader("x,y\n1,2\n"))
	assert.Error(t, err)
}

func TestParseLatLon(t *testing.T) {
	lat, lon, err := parseLatLon(" 48.85, 2.35")
	require.NoError(t, err)
	assert.Equal(t, 48.85, lat)
	assert.Equal(t, 2.35, lon)

	_, _, err = parseLatLon("48.85")
	assert.Error(t, err)
	_, _, err = parseLatLon("north,2")
	assert.Error(t, err)
}

func TestRootCommandWiring(t *testing.T) {
	want := []string{"build", "catalog", "export", "geocode", "import", "resolve", "rollup"}
	var got []string
	for _, c := range rootCmd.Commands() {
		if c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		got = append(got, c.Name())
	}
	assert.Subset(t, got, want)
}

func TestStartupInstallsConfiguredCodec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "locgeo.yaml")
	yml := "entities:\n  roots: [GREAT-LAKES-BASIN]\n  exceptions: [XAB]\nlog:\n  app:\n    path: " +
		filepath.Join(dir, "locgeo.log") + "\n    level: WARN\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	prev, prevLog := configPath, slog.Default()
	configPath = path
	t.Cleanup(func() {
		slog.SetDefault(prevLog)
		if state.cleanup != nil {
			state.cleanup()
		}
		state = app{}
		configPath = prev
		locid.SetDefault(nil)
	})

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))

	assert.Same(t, state.codec, locid.Default())
	assert.Equal(t, store.ScopeGlobalEntities, store.ScopeFor("GREAT-LAKES-BASIN-ERIE"))
	assert.NoError(t, locid.Validate("XAB-NORTH"))
}
