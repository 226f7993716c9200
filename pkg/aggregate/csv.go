package aggregate

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"locgeo/pkg/locid"
	"locgeo/pkg/model"
)

// ReadCSV parses a metric table with header loc_id,year,<metrics...>.
// Empty cells are nulls. Every loc_id is validated, never repaired.
func ReadCSV(r io.Reader) ([]model.MetricRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 || header[0] != "loc_id" || header[1] != "year" {
		return nil, fmt.Errorf("header must start with loc_id,year, got %v", header)
	}
	cols := header[2:]

	var rows []model.MetricRow
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		id := rec[0]
		if err := locid.Validate(id); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		year, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: bad year %q", line, rec[1])
		}
		row := model.MetricRow{LocID: id, Year: year, Values: make(map[string]*float64, len(cols))}
		for i, col := range cols {
			cell := strings.TrimSpace(rec[i+2])
			if cell == "" {
				row.Values[col] = nil
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", line, col, err)
			}
			row.Values[col] = model.Float(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCSV writes rows with columns in sorted order. Nulls are empty cells.
func WriteCSV(w io.Writer, rows []model.MetricRow) error {
	colSet := make(map[string]bool)
	for _, r := range rows {
		for k := range r.Values {
			colSet[k] = true
		}
	}
	cols := make([]string, 0, len(colSet))
	for k := range colSet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"loc_id", "year"}, cols...)); err != nil {
		return err
	}
	rec := make([]string, len(cols)+2)
	for _, r := range rows {
		rec[0] = r.LocID
		rec[1] = strconv.Itoa(r.Year)
		for i, c := range cols {
			if v := r.Values[c]; v != nil {
				rec[i+2] = strconv.FormatFloat(*v, 'f', -1, 64)
			} else {
				rec[i+2] = ""
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
