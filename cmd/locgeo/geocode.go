package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"locgeo/pkg/geo"
	"locgeo/pkg/store"
)

func geocodeCmd() *cobra.Command {
	var (
		scope    string
		profile  string
		input    string
		output   string
		fallback bool
	)
	cmd := &cobra.Command{
		Use:   "geocode --scope <scope> [lat lon]",
		Short: "Assign loc_ids to coordinates",
		Long:  "Assigns a loc_id by point-in-polygon, then the coastal nearest pass, then water bodies. Use --input for a CSV with lat and lon columns.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if scope == "" {
				return errors.New("--scope is required")
			}
			opts, err := state.cfg.GeocoderOptions()
			if err != nil {
				return err
			}
			if profile != "" {
				if opts.Profile, err = geo.ParseProfile(profile); err != nil {
					return err
				}
			}

			st, err := store.NewSet(dataDir(fallback)).Get(store.ScopeID(scope))
			if err != nil {
				return err
			}
			if st == nil {
				return fmt.Errorf("no store for scope %s", scope)
			}
			g := geo.NewGeocoder(geo.FinestLevel(st.Records()), opts, state.metrics)

			if input != "" {
				return geocodeCSV(g, opts.Profile, input, output)
			}
			if len(args) != 2 {
				return errors.New("expected <lat> <lon> or --input")
			}
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("bad latitude: %w", err)
			}
			lon, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("bad longitude: %w", err)
			}
			m, err := g.Geocode(lat, lon, opts.Profile)
			if err != nil {
				return err
			}
			if m.Pass == geo.PassNearest {
				fmt.Printf("%s\t%s\t%s\t%.1f km\n", m.LocID, m.Pass, m.Name, geo.DegreesToMeters(m.DistanceDeg, lat)/1000)
				return nil
			}
			fmt.Printf("%s\t%s\t%s\n", m.LocID, m.Pass, m.Name)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&scope, "scope", "", "Scope whose finest level is matched")
	f.StringVar(&profile, "profile", "", "Water profile (global, usa, canada, australia)")
	f.StringVar(&input, "input", "", "CSV file with lat and lon columns")
	f.StringVar(&output, "output", "", "Output CSV (default stdout)")
	f.BoolVar(&fallback, "fallback", false, "Match against the fallback store")
	return cmd
}

// geocodeCSV appends loc_id and pass columns to every row it can assign.
func geocodeCSV(g *geo.Geocoder, profile geo.Profile, input, output string) error {
	in, err := os.Open(input)
	if err != nil {
		return err
	}
	defer in.Close()

	events, header, err := readEvents(in)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if output != "" {
		out, err := os.Create(output)
		if err != nil {
			return err
		}
		defer out.Close()
		w = out
	}

	assigned, skipped := g.GeocodeAll(events, profile)
	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string(nil), header...), "loc_id", "pass")); err != nil {
		return err
	}
	for _, a := range assigned {
		row := make([]string, 0, len(header)+2)
		for _, h := range header {
			row = append(row, a.Attrs[h])
		}
		if err := cw.Write(append(row, a.LocID, a.Pass.String())); err != nil {
			return err
		}
	}
	cw.Flush()
	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "%d events could not be geocoded\n", skipped)
	}
	return cw.Error()
}

func readEvents(r io.Reader) ([]geo.Event, []string, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	latCol, lonCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "lat", "latitude":
			latCol = i
		case "lon", "lng", "longitude":
			lonCol = i
		}
	}
	if latCol < 0 || lonCol < 0 {
		return nil, nil, errors.New("input needs lat and lon columns")
	}

	var events []geo.Event
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		ev := geo.Event{Attrs: make(map[string]string, len(header))}
		for i, h := range header {
			ev.Attrs[h] = rec[i]
		}
		if ev.Lat, err = strconv.ParseFloat(strings.TrimSpace(rec[latCol]), 64); err != nil {
			ev.Lat = math.NaN()
		}
		if ev.Lon, err = strconv.ParseFloat(strings.TrimSpace(rec[lonCol]), 64); err != nil {
			ev.Lon = math.NaN()
		}
		events = append(events, ev)
	}
	return events, header, nil
}
