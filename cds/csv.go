package cds

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/matteodefelice/pypsa-entsoe/timeseries"
)

// Date formats seen in the dataset's country-level CSV files.
var csvTimeFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseCountryCSV parses a country-level CSV file of the energy-derived
// reanalysis dataset: "#"-prefixed comment lines, then a header with a Date
// column followed by one column per ISO-2 country code. Unparseable cells
// become NaN.
func ParseCountryCSV(r io.Reader) (*timeseries.Frame, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	var header []string
	var times []time.Time
	var rows [][]float64

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, ",")
		if header == nil {
			if !strings.EqualFold(strings.TrimSpace(fields[0]), "date") {
				return nil, fmt.Errorf("cds: expected Date header column, got %q", fields[0])
			}
			header = make([]string, len(fields)-1)
			for i, f := range fields[1:] {
				header[i] = strings.TrimSpace(f)
			}
			continue
		}

		if len(fields) != len(header)+1 {
			return nil, fmt.Errorf("cds: row has %d fields, header has %d columns", len(fields), len(header)+1)
		}

		t, err := parseCSVTime(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, err
		}
		times = append(times, t)

		row := make([]float64, len(header))
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				v = math.NaN()
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cds: read CSV: %w", err)
	}
	if header == nil {
		return nil, fmt.Errorf("cds: CSV has no header")
	}

	frame := timeseries.NewFrame(times)
	for i, name := range header {
		col := make([]float64, len(rows))
		for j, row := range rows {
			col[j] = row[i]
		}
		if err := frame.SetColumn(name, col); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

func parseCSVTime(s string) (time.Time, error) {
	for _, format := range csvTimeFormats {
		if t, err := time.ParseInLocation(format, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cds: unable to parse date %q", s)
}

// LoadFrames parses every CSV file in dir, keyed by file name.
func LoadFrames(dir string) (map[string]*timeseries.Frame, error) {
	files, err := ListCSV(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("cds: no CSV files in %s", dir)
	}

	frames := make(map[string]*timeseries.Frame, len(files))
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("cds: open %s: %w", path, err)
		}
		frame, err := ParseCountryCSV(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("cds: parse %s: %w", path, err)
		}
		frames[strings.TrimSuffix(strings.ToLower(filepath.Base(path)), ".csv")] = frame
	}
	return frames, nil
}
