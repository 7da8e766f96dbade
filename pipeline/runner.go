package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/matteodefelice/pypsa-entsoe/cds"
	"github.com/matteodefelice/pypsa-entsoe/dispatch"
	"github.com/matteodefelice/pypsa-entsoe/energymet"
	"github.com/matteodefelice/pypsa-entsoe/entsoe"
	"github.com/matteodefelice/pypsa-entsoe/psa"
	"github.com/matteodefelice/pypsa-entsoe/report"
	"github.com/matteodefelice/pypsa-entsoe/timeseries"
)

// ENTSO-E production type names carrying the hydro reservoir data.
const (
	reservoirGeneration = "Hydro Water Reservoir"
)

// Runner executes the full pipeline: fetch market and climate data, build
// the network, solve the dispatch and write the outputs.
type Runner struct {
	cfg    *Config
	log    zerolog.Logger
	entsoe *entsoe.Client
	cds    *cds.Client
	solver *dispatch.Solver

	mapping  psa.CarrierMapping
	genTpl   map[string]psa.GeneratorTemplate
	storeTpl map[string]psa.StoreTemplate
	demCoefs map[string]float64

	metrics *Metrics
	store   *Store
}

// RunResult is one completed pipeline run.
type RunResult struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    report.Summary
	Rows       []report.Row
}

// NewRunner wires the clients and model tables from the configuration.
func NewRunner(cfg *Config, log zerolog.Logger) (*Runner, error) {
	r := &Runner{
		cfg:    cfg,
		log:    log,
		entsoe: entsoe.NewClient(cfg.ENTSOE.Token),
		cds:    cds.NewClient(cfg.CDS.Token, cfg.DataDir),
		solver: &dispatch.Solver{
			Binary:  cfg.Solver.Binary,
			Kind:    cfg.Solver.Kind,
			Timeout: cfg.Solver.Timeout,
			WorkDir: cfg.Solver.WorkDir,
		},
	}
	if cfg.ENTSOE.BaseURL != "" {
		r.entsoe.SetBaseURL(cfg.ENTSOE.BaseURL)
	}
	if cfg.CDS.BaseURL != "" {
		r.cds.SetBaseURL(cfg.CDS.BaseURL)
	}

	var err error
	if r.mapping, err = loadMapping(cfg.Model.MappingFile); err != nil {
		return nil, err
	}
	if r.genTpl, err = loadGeneratorTemplates(cfg.Model.GeneratorTemplateFile); err != nil {
		return nil, err
	}
	if r.storeTpl, err = loadStoreTemplates(cfg.Model.StoreTemplateFile); err != nil {
		return nil, err
	}
	if cfg.Demand.Source == "regression" {
		if r.demCoefs, err = loadCoefficients(cfg.Demand.CoefficientsFile); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// SetMetrics attaches a Prometheus recorder; nil disables recording.
func (r *Runner) SetMetrics(m *Metrics) { r.metrics = m }

// SetStore attaches PostgreSQL persistence; nil disables it.
func (r *Runner) SetStore(s *Store) { r.store = s }

func loadMapping(path string) (psa.CarrierMapping, error) {
	if path == "" {
		return psa.DefaultCarrierMapping(), nil
	}
	return psa.LoadCarrierMapping(path)
}

func loadGeneratorTemplates(path string) (map[string]psa.GeneratorTemplate, error) {
	if path == "" {
		return psa.DefaultGeneratorTemplates(), nil
	}
	return psa.LoadGeneratorTemplates(path)
}

func loadStoreTemplates(path string) (map[string]psa.StoreTemplate, error) {
	if path == "" {
		return psa.DefaultStoreTemplates(), nil
	}
	return psa.LoadStoreTemplates(path)
}

func loadCoefficients(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read demand coefficients: %w", err)
	}
	var coefs map[string]float64
	if err := json.Unmarshal(data, &coefs); err != nil {
		return nil, fmt.Errorf("pipeline: parse demand coefficients %s: %w", path, err)
	}
	if len(coefs) == 0 {
		return nil, fmt.Errorf("pipeline: demand coefficients %s are empty", path)
	}
	return coefs, nil
}

// Run executes one complete pipeline pass.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	startedAt := time.Now().UTC()
	result, err := r.run(ctx, startedAt)
	elapsed := time.Since(startedAt)
	if err != nil {
		r.metrics.RecordRun("error", elapsed)
		return nil, err
	}
	r.metrics.RecordRun("ok", elapsed)
	r.metrics.RecordSolution(result.Summary.Objective, result.Summary.ShedEnergy)
	return result, nil
}

func (r *Runner) run(ctx context.Context, startedAt time.Time) (*RunResult, error) {
	cfg := r.cfg
	start, end, err := cfg.Horizon()
	if err != nil {
		return nil, err
	}
	snapshots, err := cfg.Snapshots()
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Time("start", start).Time("end", end).
		Strs("zones", cfg.Zones).
		Int("snapshots", len(snapshots)).
		Msg("starting pipeline run")

	climate, err := r.fetchClimate(ctx)
	if err != nil {
		r.metrics.RecordFetchError("cds")
		return nil, err
	}

	n := &psa.Network{Snapshots: snapshots}
	for _, zone := range cfg.Zones {
		if err := r.buildZone(ctx, n, zone, start, end, climate); err != nil {
			return nil, err
		}
	}
	for _, l := range cfg.Links {
		n.Links = append(n.Links, psa.Link{
			Name:        fmt.Sprintf("%s-%s", l.From, l.To),
			Bus0:        l.From,
			Bus1:        l.To,
			PNom:        l.Capacity,
			PNomReverse: l.CapacityReverse,
			Efficiency:  1,
		})
	}

	r.log.Info().
		Int("generators", len(n.Generators)).
		Int("storage_units", len(n.StorageUnits)).
		Int("links", len(n.Links)).
		Msg("network assembled, solving dispatch")

	res, err := r.solver.Solve(ctx, n)
	if err != nil {
		return nil, err
	}

	rows := report.Collapse(report.DispatchTable(n, res))
	summary := report.Summarize(n, res, rows)
	r.log.Info().
		Float64("objective", summary.Objective).
		Float64("shed_mwh", summary.ShedEnergy).
		Msg("dispatch solved")

	if err := r.writeOutputs(n.Buses, rows); err != nil {
		return nil, err
	}

	result := &RunResult{
		ID:         uuid.NewString(),
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Summary:    summary,
		Rows:       rows,
	}
	if r.store != nil {
		if err := r.store.SaveRun(ctx, result.ID, result.StartedAt, result.FinishedAt, summary, rows); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// climateData holds the per-country climate frames used by every zone.
type climateData struct {
	temperature  *timeseries.Frame
	irradiance   *timeseries.Frame
	windOnshore  *timeseries.Frame
	windOffshore *timeseries.Frame
	hydroRoR     *timeseries.Frame
}

// fetchClimate retrieves the energy-derived reanalysis tables. Three
// retrievals: the meteorological variables, the onshore power capacity
// factors and the offshore ones (a maritime aggregation).
func (r *Runner) fetchClimate(ctx context.Context) (*climateData, error) {
	met, err := r.retrieveFrames(ctx, cds.Request{
		Variables:           []string{cds.VariableTemperature, cds.VariableIrradiance},
		SpatialAggregation:  cds.AggregationCountry,
		TemporalAggregation: "hourly",
	})
	if err != nil {
		return nil, err
	}
	onshore, err := r.retrieveFrames(ctx, cds.Request{
		Variables:           []string{cds.VariableWindOnshore, cds.VariableHydroRoR},
		SpatialAggregation:  cds.AggregationCountry,
		EnergyProductType:   cds.ProductCapacityFactor,
		TemporalAggregation: "hourly",
	})
	if err != nil {
		return nil, err
	}
	offshore, err := r.retrieveFrames(ctx, cds.Request{
		Variables:           []string{cds.VariableWindOffshore},
		SpatialAggregation:  cds.AggregationMaritimeCountry,
		EnergyProductType:   cds.ProductCapacityFactor,
		TemporalAggregation: "hourly",
	})
	if err != nil {
		return nil, err
	}

	data := &climateData{}
	if data.temperature, err = findFrame(met, "ta-", "_ta_", "temperature"); err != nil {
		return nil, err
	}
	if data.irradiance, err = findFrame(met, "ghi", "ssrd", "radiation"); err != nil {
		return nil, err
	}
	if data.windOnshore, err = findFrame(onshore, "won", "onshore"); err != nil {
		return nil, err
	}
	if data.hydroRoR, err = findFrame(onshore, "hro", "rivers"); err != nil {
		return nil, err
	}
	if data.windOffshore, err = findFrame(offshore, "wof", "offshore"); err != nil {
		return nil, err
	}
	return data, nil
}

func (r *Runner) retrieveFrames(ctx context.Context, req cds.Request) (map[string]*timeseries.Frame, error) {
	dir, err := r.cds.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}
	return cds.LoadFrames(dir)
}

// findFrame locates a frame whose file name contains one of the markers.
// The dataset encodes variables as short codes in the file names.
func findFrame(frames map[string]*timeseries.Frame, markers ...string) (*timeseries.Frame, error) {
	for name, f := range frames {
		for _, m := range markers {
			if strings.Contains(name, m) {
				return f, nil
			}
		}
	}
	return nil, fmt.Errorf("pipeline: no climate file matching %v", markers)
}

// buildZone fetches the zone's market data and appends its components to
// the network.
func (r *Runner) buildZone(ctx context.Context, n *psa.Network, zone string, start, end time.Time, climate *climateData) error {
	log := r.log.With().Str("zone", zone).Logger()

	capacity, err := r.entsoe.QueryInstalledCapacity(ctx, zone, r.cfg.CapacityReferenceYear())
	if err != nil {
		r.metrics.RecordFetchError("entsoe")
		return fmt.Errorf("pipeline: installed capacity for %s: %w", zone, err)
	}
	generation, err := r.entsoe.QueryGeneration(ctx, zone, start, end, "")
	if err != nil {
		r.metrics.RecordFetchError("entsoe")
		return fmt.Errorf("pipeline: generation for %s: %w", zone, err)
	}
	load, err := r.entsoe.QueryLoad(ctx, zone, start, end)
	if err != nil {
		r.metrics.RecordFetchError("entsoe")
		return fmt.Errorf("pipeline: load for %s: %w", zone, err)
	}

	gens, err := psa.GeneratorsFromCapacity(zone, capacity, r.mapping, r.genTpl, psa.GeneratorOptions{
		Generation:    generation,
		EstimatePMin:  r.cfg.Model.EstimatePMin,
		EstimateRamps: r.cfg.Model.EstimateRamps,
	})
	if err != nil {
		return err
	}
	for i := range gens {
		avail, err := r.availability(&gens[i], zone, climate)
		if err != nil {
			return err
		}
		if avail != nil {
			gens[i].PMaxPU = avail.Reindex(n.Snapshots).ForwardFill()
		}
	}

	storages, err := psa.StoragesFromCapacity(zone, capacity, r.mapping, r.storeTpl)
	if err != nil {
		return err
	}
	for i := range storages {
		if storages[i].Carrier != "hydro" {
			continue
		}
		inflow, err := r.reservoirInflow(ctx, zone, start, end, generation[reservoirGeneration], n.Snapshots)
		if err != nil {
			return err
		}
		storages[i].Inflow = inflow
	}

	demand, err := r.demand(zone, load, climate, n.Snapshots)
	if err != nil {
		return err
	}

	n.AddBus(zone)
	n.Generators = append(n.Generators, gens...)
	n.StorageUnits = append(n.StorageUnits, storages...)
	n.Loads = append(n.Loads, psa.Load{
		Name:   fmt.Sprintf("%s load", zone),
		Bus:    zone,
		Series: demand,
	})

	log.Info().
		Int("generators", len(gens)).
		Int("storage_units", len(storages)).
		Msg("zone built")
	return nil
}

// availability derives the hourly p_max_pu series of variable renewables
// from the climate data. Dispatchable carriers stay fully available.
func (r *Runner) availability(g *psa.Generator, zone string, climate *climateData) (*timeseries.Series, error) {
	switch g.Carrier {
	case "solar":
		tmp, ok := climate.temperature.Column(zone)
		if !ok {
			return nil, fmt.Errorf("pipeline: no temperature column for %s", zone)
		}
		ssr, ok2 := climate.irradiance.Column(zone)
		if !ok2 {
			return nil, fmt.Errorf("pipeline: no irradiance column for %s", zone)
		}
		opts := energymet.SolarOptions{}
		if c, ok := zoneCentroids[zone]; ok && r.cfg.Model.ClampSolarNight {
			opts.ClampNight = true
			opts.Latitude = c[0]
			opts.Longitude = c[1]
		}
		return energymet.SolarCapacityFactor(tmp, ssr, opts)
	case "onwind":
		return frameColumn(climate.windOnshore, zone, "onshore wind")
	case "offwind":
		return frameColumn(climate.windOffshore, zone, "offshore wind")
	case "ror":
		// daily factors, held constant over the day by the reindex
		return frameColumn(climate.hydroRoR, zone, "run-of-river")
	default:
		return nil, nil
	}
}

func frameColumn(f *timeseries.Frame, zone, what string) (*timeseries.Series, error) {
	s, ok := f.Column(zone)
	if !ok {
		return nil, fmt.Errorf("pipeline: no %s column for %s", what, zone)
	}
	return s, nil
}

// reservoirInflow reconstructs the weekly natural inflow from observed
// reservoir generation and filling levels, spread onto the snapshots.
func (r *Runner) reservoirInflow(ctx context.Context, zone string, start, end time.Time, gen *timeseries.Series, snapshots []time.Time) (*timeseries.Series, error) {
	if gen == nil || gen.Len() == 0 {
		return nil, nil
	}
	// levels one week past the horizon close the last inflow interval
	levels, err := r.entsoe.QueryHydroStorage(ctx, zone, start, end.Add(7*24*time.Hour))
	if err != nil {
		r.metrics.RecordFetchError("entsoe")
		return nil, fmt.Errorf("pipeline: hydro storage for %s: %w", zone, err)
	}
	if levels.Len() < 2 {
		return nil, nil
	}
	weekly, err := energymet.ReservoirInflow(gen, levels)
	if err != nil {
		return nil, fmt.Errorf("pipeline: inflow for %s: %w", zone, err)
	}
	return energymet.SpreadWeeklyToHourly(weekly, snapshots)
}

// demand returns the hourly load of the zone, either straight from ENTSO-E
// or from the temperature regression scaled to the observed extremes.
func (r *Runner) demand(zone string, load *timeseries.Series, climate *climateData, snapshots []time.Time) (*timeseries.Series, error) {
	if r.cfg.Demand.Source != "regression" {
		return load.Reindex(snapshots).ForwardFill(), nil
	}

	tmp, ok := climate.temperature.Column(zone)
	if !ok {
		return nil, fmt.Errorf("pipeline: no temperature column for %s", zone)
	}
	ssr, ok2 := climate.irradiance.Column(zone)
	if !ok2 {
		return nil, fmt.Errorf("pipeline: no irradiance column for %s", zone)
	}
	tmp = tmp.Reindex(snapshots)
	ssr = ssr.Reindex(snapshots)

	minLoad := load.Min()
	maxLoad, err := load.Quantile(1)
	if err != nil || math.IsNaN(minLoad) {
		return nil, fmt.Errorf("pipeline: no observed load to scale regression for %s", zone)
	}
	est, err := energymet.EstimateDemand(tmp, ssr, r.demCoefs, energymet.DemandOptions{
		MinLoad: minLoad,
		MaxLoad: maxLoad,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: demand regression for %s: %w", zone, err)
	}
	return est.ForwardFill(), nil
}

// Fetch retrieves the climate and market data of the horizon without
// building or solving the model; it warms the on-disk CDS cache and verifies
// API access.
func (r *Runner) Fetch(ctx context.Context) error {
	start, end, err := r.cfg.Horizon()
	if err != nil {
		return err
	}

	climate, err := r.fetchClimate(ctx)
	if err != nil {
		r.metrics.RecordFetchError("cds")
		return err
	}
	r.log.Info().
		Int("temperature_hours", climate.temperature.Len()).
		Int("irradiance_hours", climate.irradiance.Len()).
		Msg("climate data retrieved")

	for _, zone := range r.cfg.Zones {
		load, err := r.entsoe.QueryLoad(ctx, zone, start, end)
		if err != nil {
			r.metrics.RecordFetchError("entsoe")
			return fmt.Errorf("pipeline: load for %s: %w", zone, err)
		}
		capacity, err := r.entsoe.QueryInstalledCapacity(ctx, zone, r.cfg.CapacityReferenceYear())
		if err != nil {
			r.metrics.RecordFetchError("entsoe")
			return fmt.Errorf("pipeline: installed capacity for %s: %w", zone, err)
		}
		r.log.Info().
			Str("zone", zone).
			Int("load_hours", load.Len()).
			Int("production_types", len(capacity)).
			Msg("market data retrieved")
	}
	return nil
}

// Report rewrites the output files from the most recent persisted run.
func (r *Runner) Report(ctx context.Context) error {
	if r.store == nil {
		return fmt.Errorf("pipeline: report mode needs postgres.conn")
	}
	id, summary, err := r.store.LatestRun(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: load latest run: %w", err)
	}
	rows, err := r.store.RunRows(ctx, id)
	if err != nil {
		return err
	}
	r.log.Info().Str("run_id", id).Msg(summary.String())
	return r.writeOutputs(summary.Buses, rows)
}

// writeOutputs writes the collapsed dispatch table as CSV and JSON plus a
// wide per-bus CSV.
func (r *Runner) writeOutputs(buses []string, rows []report.Row) error {
	dir := r.cfg.OutputDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pipeline: create output dir: %w", err)
	}

	if err := writeFile(filepath.Join(dir, "dispatch.csv"), func(f *os.File) error {
		return report.WriteCSV(f, rows)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, "dispatch.json"), func(f *os.File) error {
		return report.WriteJSON(f, rows)
	}); err != nil {
		return err
	}
	for _, bus := range buses {
		path := filepath.Join(dir, fmt.Sprintf("dispatch_%s.csv", bus))
		if err := writeFile(path, func(f *os.File) error {
			return report.WriteWideCSV(f, rows, bus)
		}); err != nil {
			return err
		}
	}
	r.log.Info().Str("dir", dir).Msg("outputs written")
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pipeline: create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("pipeline: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("pipeline: close %s: %w", path, err)
	}
	return nil
}
