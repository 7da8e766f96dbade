package pipeline

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// LinkConfig describes one cross-border interconnector with its net
// transfer capacities in MW.
type LinkConfig struct {
	From            string  `yaml:"from" validate:"required,len=2"`
	To              string  `yaml:"to" validate:"required,len=2"`
	Capacity        float64 `yaml:"capacity" validate:"gte=0"`
	CapacityReverse float64 `yaml:"capacity_reverse" validate:"gte=0"`
}

// Config is the YAML run configuration. Secrets can be left out of the file
// and provided through ENTSOE_TOKEN, CDS_TOKEN and POSTGRES_CONN.
type Config struct {
	// Zones are the ISO-2 bidding zones to model, one bus each.
	Zones []string `yaml:"zones" validate:"required,min=1,dive,len=2"`
	// Start and End bound the dispatch horizon, format 2006-01-02. End is
	// exclusive.
	Start string `yaml:"start" validate:"required,datetime=2006-01-02"`
	End   string `yaml:"end" validate:"required,datetime=2006-01-02"`
	// CapacityYear selects the installed-capacity year; zero uses the
	// year of Start.
	CapacityYear int `yaml:"capacity_year" validate:"gte=0"`

	DataDir   string `yaml:"data_dir" default:".data"`
	OutputDir string `yaml:"output_dir" default:"output"`

	ENTSOE struct {
		Token   string `yaml:"token"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"entsoe"`

	CDS struct {
		Token   string `yaml:"token"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"cds"`

	Model struct {
		// MappingFile overrides the built-in carrier mapping
		// (mapping.json contract).
		MappingFile string `yaml:"mapping_file"`
		// GeneratorTemplateFile and StoreTemplateFile override the
		// built-in per-carrier parameters.
		GeneratorTemplateFile string `yaml:"generator_template_file"`
		StoreTemplateFile     string `yaml:"store_template_file"`
		// EstimatePMin and EstimateRamps derive committable minimums
		// and ramp limits from observed generation.
		EstimatePMin  bool `yaml:"estimate_p_min" default:"true"`
		EstimateRamps bool `yaml:"estimate_ramps" default:"true"`
		// ClampSolarNight zeroes PV output below the horizon.
		ClampSolarNight bool `yaml:"clamp_solar_night"`
	} `yaml:"model"`

	Demand struct {
		// Source is "entsoe" (observed load) or "regression"
		// (temperature/irradiance model scaled to observed extremes).
		Source string `yaml:"source" default:"entsoe" validate:"oneof=entsoe regression"`
		// CoefficientsFile holds the regression coefficients as JSON,
		// required for the regression source.
		CoefficientsFile string `yaml:"coefficients_file"`
	} `yaml:"demand"`

	Links []LinkConfig `yaml:"links" validate:"dive"`

	Solver struct {
		Binary  string        `yaml:"binary"`
		Kind    string        `yaml:"kind" default:"highs" validate:"oneof=highs cbc"`
		Timeout time.Duration `yaml:"timeout" default:"15m"`
		WorkDir string        `yaml:"work_dir"`
	} `yaml:"solver"`

	Postgres struct {
		Conn string `yaml:"conn"`
	} `yaml:"postgres"`

	Server struct {
		// Port 0 disables the HTTP server.
		Port int `yaml:"port" validate:"gte=0,lte=65535"`
		// RefreshInterval re-runs the pipeline in serve mode.
		RefreshInterval time.Duration `yaml:"refresh_interval" default:"24h"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	} `yaml:"log"`
}

// LoadConfig reads, defaults, env-overrides and validates a YAML config
// file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("pipeline: parse config: %w", err)
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("pipeline: apply config defaults: %w", err)
	}
	cfg.applyEnv()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("pipeline: invalid config: %w", err)
	}
	if cfg.Demand.Source == "regression" && cfg.Demand.CoefficientsFile == "" {
		return nil, fmt.Errorf("pipeline: demand source regression needs demand.coefficients_file")
	}

	if _, _, err := cfg.Horizon(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides secrets from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("ENTSOE_TOKEN"); v != "" {
		c.ENTSOE.Token = v
	}
	if v := os.Getenv("CDS_TOKEN"); v != "" {
		c.CDS.Token = v
	}
	if v := os.Getenv("POSTGRES_CONN"); v != "" {
		c.Postgres.Conn = v
	}
}

// Horizon returns the parsed dispatch horizon in UTC.
func (c *Config) Horizon() (start, end time.Time, err error) {
	start, err = time.ParseInLocation("2006-01-02", c.Start, time.UTC)
	if err != nil {
		return start, end, fmt.Errorf("pipeline: parse start: %w", err)
	}
	end, err = time.ParseInLocation("2006-01-02", c.End, time.UTC)
	if err != nil {
		return start, end, fmt.Errorf("pipeline: parse end: %w", err)
	}
	if !end.After(start) {
		return start, end, fmt.Errorf("pipeline: end %s not after start %s", c.End, c.Start)
	}
	return start, end, nil
}

// Snapshots expands the horizon into hourly model snapshots.
func (c *Config) Snapshots() ([]time.Time, error) {
	start, end, err := c.Horizon()
	if err != nil {
		return nil, err
	}
	var out []time.Time
	for t := start; t.Before(end); t = t.Add(time.Hour) {
		out = append(out, t)
	}
	return out, nil
}

// CapacityReferenceYear resolves the installed-capacity year.
func (c *Config) CapacityReferenceYear() int {
	if c.CapacityYear > 0 {
		return c.CapacityYear
	}
	start, _, err := c.Horizon()
	if err != nil {
		return 0
	}
	return start.Year()
}
