package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"
)

// WriteCSV writes rows in long form: snapshot,bus,type,prod.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"snapshot", "bus", "type", "prod"}); err != nil {
		return fmt.Errorf("report: write CSV header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Snapshot.UTC().Format(time.RFC3339),
			r.Bus,
			r.Type,
			strconv.FormatFloat(r.Production, 'f', 3, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("report: write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteWideCSV writes one bus in wide form: a snapshot column followed by
// one column per type.
func WriteWideCSV(w io.Writer, rows []Row, bus string) error {
	types := make(map[string]bool)
	bySnapshot := make(map[time.Time]map[string]float64)
	var snapshots []time.Time
	for _, r := range rows {
		if r.Bus != bus {
			continue
		}
		types[r.Type] = true
		m, ok := bySnapshot[r.Snapshot]
		if !ok {
			m = make(map[string]float64)
			bySnapshot[r.Snapshot] = m
			snapshots = append(snapshots, r.Snapshot)
		}
		m[r.Type] += r.Production
	}
	if len(snapshots) == 0 {
		return fmt.Errorf("report: no rows for bus %s", bus)
	}

	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Before(snapshots[j]) })
	names := make([]string, 0, len(types))
	for t := range types {
		names = append(names, t)
	}
	sort.Strings(names)

	cw := csv.NewWriter(w)
	header := append([]string{"snapshot"}, names...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("report: write CSV header: %w", err)
	}
	for _, snapshot := range snapshots {
		record := make([]string, 0, len(header))
		record = append(record, snapshot.UTC().Format(time.RFC3339))
		for _, name := range names {
			record = append(record, strconv.FormatFloat(bySnapshot[snapshot][name], 'f', 3, 64))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("report: write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the rows as a JSON array.
func WriteJSON(w io.Writer, rows []Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("report: encode JSON: %w", err)
	}
	return nil
}
