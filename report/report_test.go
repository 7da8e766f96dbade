package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/matteodefelice/pypsa-entsoe/dispatch"
	"github.com/matteodefelice/pypsa-entsoe/psa"
	"github.com/matteodefelice/pypsa-entsoe/timeseries"
)

func testSnapshots(n int) []time.Time {
	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return out
}

func series(t *testing.T, snapshots []time.Time, values []float64) *timeseries.Series {
	t.Helper()
	s, err := timeseries.New(snapshots, values)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func solvedNetwork(t *testing.T) (*psa.Network, *dispatch.Result) {
	t.Helper()
	snapshots := testSnapshots(2)
	n := &psa.Network{Snapshots: snapshots}
	n.AddBus("DE")
	n.AddBus("FR")
	n.Generators = []psa.Generator{
		{Name: "DE coal", Bus: "DE", Carrier: "coal", PNom: 4000},
		{Name: "DE lignite", Bus: "DE", Carrier: "lignite", PNom: 2000},
		{Name: "DE solar", Bus: "DE", Carrier: "solar", PNom: 3000},
		{Name: "FR oil", Bus: "FR", Carrier: "oil", PNom: 100},
	}
	n.StorageUnits = []psa.StorageUnit{
		{Name: "FR hydro", Bus: "FR", Carrier: "hydro", PNom: 2000, MaxHours: 100},
	}
	n.Links = []psa.Link{
		{Name: "DE-FR", Bus0: "DE", Bus1: "FR", PNom: 1000},
	}

	res := &dispatch.Result{
		Objective: 54321,
		Generation: map[string]*timeseries.Series{
			"DE coal":    series(t, snapshots, []float64{1000, 1200}),
			"DE lignite": series(t, snapshots, []float64{500, 500}),
			"DE solar":   series(t, snapshots, []float64{0, 800}),
			"FR oil":     series(t, snapshots, []float64{0, 0}), // idle: must be dropped
		},
		StorageDispatch: map[string]*timeseries.Series{
			"FR hydro": series(t, snapshots, []float64{300, 0}),
		},
		StorageCharge: map[string]*timeseries.Series{
			"FR hydro": series(t, snapshots, []float64{0, 100}),
		},
		StateOfCharge: map[string]*timeseries.Series{
			"FR hydro": series(t, snapshots, []float64{5000, 5100}),
		},
		Flow: map[string]*timeseries.Series{
			"DE-FR": series(t, snapshots, []float64{400, -200}),
		},
		Shedding: map[string]*timeseries.Series{
			"DE": series(t, snapshots, []float64{0, 0}),
			"FR": series(t, snapshots, []float64{0, 50}),
		},
	}
	return n, res
}

func TestDispatchTable(t *testing.T) {
	n, res := solvedNetwork(t)
	rows := DispatchTable(n, res)

	find := func(bus, typ string, hour int) (Row, bool) {
		for _, r := range rows {
			if r.Bus == bus && r.Type == typ && r.Snapshot.Equal(n.Snapshots[hour]) {
				return r, true
			}
		}
		return Row{}, false
	}

	if r, ok := find("DE", "coal", 0); !ok || r.Production != 1000 {
		t.Errorf("Expected coal 1000 at hour 0, got %+v (found %v)", r, ok)
	}
	// storage nets dispatch against charging
	if r, ok := find("FR", "hydro", 1); !ok || r.Production != -100 {
		t.Errorf("Expected hydro -100 at hour 1, got %+v (found %v)", r, ok)
	}
	// link flow lands on the receiving bus
	if r, ok := find("FR", "DE-FR", 0); !ok || r.Production != 400 {
		t.Errorf("Expected link 400 at FR, got %+v (found %v)", r, ok)
	}
	// shedding appears only where positive
	if _, ok := find("DE", "shed", 0); ok {
		t.Error("Unexpected shed row for DE")
	}
	if r, ok := find("FR", "shed", 1); !ok || r.Production != 50 {
		t.Errorf("Expected shed 50 at FR, got %+v (found %v)", r, ok)
	}
}

func TestCollapse(t *testing.T) {
	n, res := solvedNetwork(t)
	rows := Collapse(DispatchTable(n, res))

	byType := make(map[string]float64)
	for _, r := range rows {
		byType[r.Type] += r.Production
	}

	// coal and lignite merge into one group
	if got := byType["coal/lignite"]; got != 1000+1200+500+500 {
		t.Errorf("Expected coal/lignite 3200, got %g", got)
	}
	if _, ok := byType["coal"]; ok {
		t.Error("Raw coal type must not survive the collapse")
	}
	// solar lands in RES
	if got := byType["RES"]; got != 800 {
		t.Errorf("Expected RES 800, got %g", got)
	}
	// idle oil fleet is dropped entirely
	if _, ok := byType["Other"]; ok {
		t.Error("Expected idle oil fleet dropped")
	}

	// deterministic ordering by snapshot, bus, type
	for i := 1; i < len(rows); i++ {
		a, b := rows[i-1], rows[i]
		if b.Snapshot.Before(a.Snapshot) {
			t.Fatalf("Rows not sorted by snapshot at %d", i)
		}
	}
}

func TestCollapseDropsBalancedGroups(t *testing.T) {
	snapshots := testSnapshots(2)
	rows := []Row{
		{Snapshot: snapshots[0], Bus: "DE", Type: "coal", Production: 1000},
		{Snapshot: snapshots[1], Bus: "DE", Type: "coal", Production: 1000},
		// large hourly values that net to zero over the horizon
		{Snapshot: snapshots[0], Bus: "DE", Type: "hydro", Production: 800},
		{Snapshot: snapshots[1], Bus: "DE", Type: "hydro", Production: -800},
	}

	out := Collapse(rows)
	for _, r := range out {
		if r.Type == "hydro" {
			t.Fatalf("Balanced hydro group must be dropped, got %+v", r)
		}
	}
	if len(out) != 2 {
		t.Fatalf("Expected only the 2 coal/lignite rows, got %d", len(out))
	}
}

func TestSummarize(t *testing.T) {
	n, res := solvedNetwork(t)
	rows := Collapse(DispatchTable(n, res))
	s := Summarize(n, res, rows)

	if s.Objective != 54321 {
		t.Errorf("Expected objective 54321, got %g", s.Objective)
	}
	if s.ShedEnergy != 50 {
		t.Errorf("Expected shed energy 50, got %g", s.ShedEnergy)
	}
	if s.Snapshots != 2 || len(s.Buses) != 2 {
		t.Errorf("Unexpected summary: %+v", s)
	}
	if !strings.Contains(s.String(), "shed 50.0 MWh") {
		t.Errorf("Unexpected summary string: %s", s.String())
	}
}

func TestWriteCSV(t *testing.T) {
	n, res := solvedNetwork(t)
	rows := Collapse(DispatchTable(n, res))

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatalf("WriteCSV() failed: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "snapshot,bus,type,prod\n") {
		t.Errorf("Unexpected header: %s", out)
	}
	if !strings.Contains(out, "2018-01-01T00:00:00Z,DE,coal/lignite,1500.000") {
		t.Errorf("Expected merged coal/lignite row:\n%s", out)
	}
}

func TestWriteWideCSV(t *testing.T) {
	n, res := solvedNetwork(t)
	rows := Collapse(DispatchTable(n, res))

	var buf bytes.Buffer
	if err := WriteWideCSV(&buf, rows, "DE"); err != nil {
		t.Fatalf("WriteWideCSV() failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[0], "coal/lignite") {
		t.Errorf("Expected type column in header: %s", lines[0])
	}

	if err := WriteWideCSV(&buf, rows, "XX"); err == nil {
		t.Error("Expected error for unknown bus")
	}
}

func TestWriteJSON(t *testing.T) {
	n, res := solvedNetwork(t)
	rows := Collapse(DispatchTable(n, res))

	var buf bytes.Buffer
	if err := WriteJSON(&buf, rows); err != nil {
		t.Fatalf("WriteJSON() failed: %v", err)
	}
	var decoded []Row
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if len(decoded) != len(rows) {
		t.Errorf("Expected %d rows, got %d", len(rows), len(decoded))
	}
}
