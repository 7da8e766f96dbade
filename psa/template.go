package psa

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

//go:embed templates/generators.csv
var defaultGeneratorTemplateCSV []byte

//go:embed templates/stores.csv
var defaultStoreTemplateCSV []byte

// GeneratorTemplate carries the per-carrier technology parameters merged
// into the generator table.
type GeneratorTemplate struct {
	MarginalCost float64
	Efficiency   float64
	PMinPU       float64
}

// StoreTemplate carries the per-carrier parameters of storage units.
type StoreTemplate struct {
	MarginalCost float64
	MaxHours     float64
	EffStore     float64
	EffDispatch  float64
}

// DefaultGeneratorTemplates returns the built-in per-carrier generator
// parameters.
func DefaultGeneratorTemplates() map[string]GeneratorTemplate {
	t, err := parseGeneratorTemplates(bytes.NewReader(defaultGeneratorTemplateCSV))
	if err != nil {
		panic(fmt.Sprintf("psa: embedded generator template invalid: %v", err))
	}
	return t
}

// DefaultStoreTemplates returns the built-in per-carrier storage parameters.
func DefaultStoreTemplates() map[string]StoreTemplate {
	t, err := parseStoreTemplates(bytes.NewReader(defaultStoreTemplateCSV))
	if err != nil {
		panic(fmt.Sprintf("psa: embedded store template invalid: %v", err))
	}
	return t
}

// LoadGeneratorTemplates reads a generator template CSV with the columns
// carrier,marginal_cost,efficiency,p_min_pu.
func LoadGeneratorTemplates(path string) (map[string]GeneratorTemplate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("psa: open generator template: %w", err)
	}
	defer f.Close()
	return parseGeneratorTemplates(f)
}

// LoadStoreTemplates reads a storage template CSV with the columns
// carrier,marginal_cost,max_hours,efficiency_store,efficiency_dispatch.
func LoadStoreTemplates(path string) (map[string]StoreTemplate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("psa: open store template: %w", err)
	}
	defer f.Close()
	return parseStoreTemplates(f)
}

func parseGeneratorTemplates(r io.Reader) (map[string]GeneratorTemplate, error) {
	rows, err := readTemplateCSV(r, []string{"carrier", "marginal_cost", "efficiency", "p_min_pu"})
	if err != nil {
		return nil, err
	}
	out := make(map[string]GeneratorTemplate, len(rows))
	for _, row := range rows {
		out[row[0]] = GeneratorTemplate{
			MarginalCost: row.float(1),
			Efficiency:   row.float(2),
			PMinPU:       row.float(3),
		}
	}
	return out, nil
}

func parseStoreTemplates(r io.Reader) (map[string]StoreTemplate, error) {
	rows, err := readTemplateCSV(r, []string{"carrier", "marginal_cost", "max_hours", "efficiency_store", "efficiency_dispatch"})
	if err != nil {
		return nil, err
	}
	out := make(map[string]StoreTemplate, len(rows))
	for _, row := range rows {
		out[row[0]] = StoreTemplate{
			MarginalCost: row.float(1),
			MaxHours:     row.float(2),
			EffStore:     row.float(3),
			EffDispatch:  row.float(4),
		}
	}
	return out, nil
}

type templateRow []string

func (r templateRow) float(i int) float64 {
	v, _ := strconv.ParseFloat(r[i], 64)
	return v
}

func readTemplateCSV(r io.Reader, header []string) ([]templateRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("psa: read template CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("psa: template CSV has no data rows")
	}
	if len(records[0]) != len(header) {
		return nil, fmt.Errorf("psa: template CSV has %d columns, expected %d", len(records[0]), len(header))
	}
	for i, name := range header {
		if records[0][i] != name {
			return nil, fmt.Errorf("psa: template CSV column %d is %q, expected %q", i, records[0][i], name)
		}
	}

	rows := make([]templateRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		for i := 1; i < len(rec); i++ {
			if _, err := strconv.ParseFloat(rec[i], 64); err != nil {
				return nil, fmt.Errorf("psa: template value %q for carrier %s: %w", rec[i], rec[0], err)
			}
		}
		rows = append(rows, templateRow(rec))
	}
	return rows, nil
}
