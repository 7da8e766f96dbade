package psa

import (
	"math"
	"testing"
	"time"

	"github.com/matteodefelice/pypsa-entsoe/timeseries"
)

func constantSeries(t *testing.T, start time.Time, n int, value float64) *timeseries.Series {
	t.Helper()
	times := make([]time.Time, n)
	values := make([]float64, n)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * time.Hour)
		values[i] = value
	}
	s, err := timeseries.New(times, values)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestDefaultCarrierMapping(t *testing.T) {
	m := DefaultCarrierMapping()

	tests := []struct {
		productionType string
		want           string
	}{
		{"Fossil Brown coal/Lignite", "lignite"},
		{"Fossil Hard coal", "coal"},
		{"Fossil Gas", "CCGT"},
		{"Hydro Water Reservoir", "hydro"},
		{"Hydro Pumped Storage", "PHS"},
		{"Hydro Run-of-river and poundage", "ror"},
		{"Wind Onshore", "onwind"},
		{"Wind Offshore", "offwind"},
		{"Solar", "solar"},
		{"Nuclear", "nuclear"},
		{"Waste", "Other"},
		{"Something unknown", "Other"},
	}
	for _, tt := range tests {
		if got := m.Carrier(tt.productionType); got != tt.want {
			t.Errorf("Carrier(%q) = %q, want %q", tt.productionType, got, tt.want)
		}
	}
}

func TestDefaultTemplates(t *testing.T) {
	gens := DefaultGeneratorTemplates()
	if len(gens) == 0 {
		t.Fatal("Expected generator templates")
	}
	nuclear, ok := gens["nuclear"]
	if !ok {
		t.Fatal("Expected nuclear template")
	}
	if nuclear.MarginalCost <= 0 || nuclear.MarginalCost >= gens["CCGT"].MarginalCost {
		t.Errorf("Expected nuclear cheaper than gas, got %g vs %g",
			nuclear.MarginalCost, gens["CCGT"].MarginalCost)
	}

	stores := DefaultStoreTemplates()
	for _, carrier := range []string{"hydro", "PHS"} {
		tpl, ok := stores[carrier]
		if !ok {
			t.Fatalf("Expected %s store template", carrier)
		}
		if tpl.MaxHours <= 0 {
			t.Errorf("%s: expected positive max_hours, got %g", carrier, tpl.MaxHours)
		}
	}
	if stores["PHS"].EffStore <= 0 {
		t.Error("Expected pumped hydro to have a charging efficiency")
	}
}

func TestGeneratorsFromCapacity(t *testing.T) {
	capacity := map[string]float64{
		"Fossil Hard coal":      4000,
		"Fossil Oil":            500,
		"Fossil Oil shale":      100,
		"Nuclear":               6000,
		"Hydro Water Reservoir": 3000, // must not become a generator
		"Waste":                 math.NaN(),
	}

	gens, err := GeneratorsFromCapacity("ES", capacity, DefaultCarrierMapping(), DefaultGeneratorTemplates(), GeneratorOptions{})
	if err != nil {
		t.Fatalf("GeneratorsFromCapacity() failed: %v", err)
	}

	byCarrier := make(map[string]Generator)
	for _, g := range gens {
		byCarrier[g.Carrier] = g
	}

	if _, ok := byCarrier["hydro"]; ok {
		t.Error("Hydro reservoir must not appear in the generator table")
	}
	oil, ok := byCarrier["oil"]
	if !ok {
		t.Fatal("Expected oil generator")
	}
	// both oil production types aggregate into one fleet
	if oil.PNom != 600 {
		t.Errorf("Expected 600 MW oil, got %g", oil.PNom)
	}
	if oil.Bus != "ES" || oil.Name != "ES oil" {
		t.Errorf("Unexpected naming: %+v", oil)
	}
	if byCarrier["nuclear"].MarginalCost != DefaultGeneratorTemplates()["nuclear"].MarginalCost {
		t.Error("Expected template marginal cost merged in")
	}
}

func TestGeneratorsFromCapacity_PMinEstimate(t *testing.T) {
	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	capacity := map[string]float64{"Nuclear": 1000}
	observed := map[string]*timeseries.Series{
		"Nuclear": constantSeries(t, start, 100, 700),
	}

	gens, err := GeneratorsFromCapacity("FR", capacity, DefaultCarrierMapping(), DefaultGeneratorTemplates(), GeneratorOptions{
		Generation:   observed,
		EstimatePMin: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(gens) != 1 {
		t.Fatalf("Expected 1 generator, got %d", len(gens))
	}
	if got := gens[0].PMinPU; math.Abs(got-0.7) > 1e-9 {
		t.Errorf("Expected p_min_pu 0.7 from observed floor, got %g", got)
	}
}

func TestGeneratorsFromCapacity_Ramps(t *testing.T) {
	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	times := make([]time.Time, 6)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * time.Hour)
	}
	obs, err := timeseries.New(times, []float64{500, 800, 600, 900, 500, 700})
	if err != nil {
		t.Fatal(err)
	}

	gens, err := GeneratorsFromCapacity("DE", map[string]float64{"Fossil Hard coal": 1000},
		DefaultCarrierMapping(), DefaultGeneratorTemplates(), GeneratorOptions{
			Generation:    map[string]*timeseries.Series{"Fossil Hard coal": obs},
			EstimateRamps: true,
		})
	if err != nil {
		t.Fatal(err)
	}
	g := gens[0]
	if g.RampLimitUp <= 0 || g.RampLimitUp > 0.31 {
		t.Errorf("Expected ramp up around 0.3, got %g", g.RampLimitUp)
	}
	if g.RampLimitDown <= 0 || g.RampLimitDown > 0.41 {
		t.Errorf("Expected ramp down around 0.4, got %g", g.RampLimitDown)
	}
}

func TestStoragesFromCapacity(t *testing.T) {
	capacity := map[string]float64{
		"Hydro Water Reservoir": 3000,
		"Hydro Pumped Storage":  1200,
		"Nuclear":               6000,
	}

	units, err := StoragesFromCapacity("AT", capacity, DefaultCarrierMapping(), DefaultStoreTemplates())
	if err != nil {
		t.Fatalf("StoragesFromCapacity() failed: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("Expected 2 storage units, got %d", len(units))
	}
	for _, u := range units {
		if !u.CyclicSOC {
			t.Errorf("%s: expected cyclic state of charge", u.Name)
		}
	}
	if units[0].Carrier != "hydro" || units[0].PNom != 3000 {
		t.Errorf("Unexpected first unit: %+v", units[0])
	}
	if units[1].Carrier != "PHS" || units[1].PNom != 1200 {
		t.Errorf("Unexpected second unit: %+v", units[1])
	}
}

func TestStoragesFromCapacity_NoHydro(t *testing.T) {
	units, err := StoragesFromCapacity("NL", map[string]float64{"Fossil Gas": 10000},
		DefaultCarrierMapping(), DefaultStoreTemplates())
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 0 {
		t.Errorf("Expected no storage units, got %d", len(units))
	}
}
