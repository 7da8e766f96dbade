package cds

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://cds.climate.copernicus.eu/api/v2"
	defaultDataset = "sis-energy-derived-reanalysis"
)

// Variables of the energy-derived reanalysis dataset used by the pipeline.
const (
	VariableTemperature  = "2m_air_temperature"
	VariableIrradiance   = "surface_downwelling_shortwave_radiation"
	VariableWindOnshore  = "wind_power_generation_onshore"
	VariableWindOffshore = "wind_power_generation_offshore"
	VariableHydroRoR     = "hydro_power_generation_rivers"
)

// Spatial aggregations offered by the dataset.
const (
	AggregationCountry         = "country_level"
	AggregationMaritimeCountry = "maritime_country_level"
)

// ProductCapacityFactor selects capacity-factor ratios for the power
// variables.
const ProductCapacityFactor = "capacity_factor_ratio"

// Request describes one dataset retrieval.
type Request struct {
	Variables           []string `json:"variable"`
	SpatialAggregation  string   `json:"spatial_aggregation"`
	EnergyProductType   string   `json:"energy_product_type,omitempty"`
	TemporalAggregation string   `json:"temporal_aggregation"`
	Format              string   `json:"format"`
}

// Client talks to the CDS retrieve API. The key has the "uid:secret" form
// issued by the service and is sent as HTTP basic auth.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	dataset      string
	key          string
	dataDir      string
	userAgent    string
	pollInterval time.Duration
}

// NewClient creates a CDS client caching retrievals under dataDir.
func NewClient(key, dataDir string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		baseURL:      defaultBaseURL,
		dataset:      defaultDataset,
		key:          key,
		dataDir:      dataDir,
		userAgent:    "pypsa-entsoe/1.0",
		pollInterval: 5 * time.Second,
	}
}

// SetBaseURL overrides the API endpoint (useful for testing).
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// SetPollInterval overrides the task polling interval.
func (c *Client) SetPollInterval(d time.Duration) {
	c.pollInterval = d
}

// task is the state document returned while a retrieval is processed.
type task struct {
	State     string `json:"state"`
	RequestID string `json:"request_id"`
	Location  string `json:"location"`
	Error     struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
	} `json:"error"`
}

// Retrieve submits the request, waits for the produced archive and unpacks
// it. It returns the directory holding the extracted CSV files. A previously
// completed retrieval with the same request is reused from the cache.
func (c *Client) Retrieve(ctx context.Context, req Request) (string, error) {
	if req.Format == "" {
		req.Format = "zip"
	}
	if len(req.Variables) == 0 {
		return "", fmt.Errorf("cds: request has no variables")
	}

	dir := filepath.Join(c.dataDir, "cds", requestHash(req))
	if retrievalComplete(dir) {
		return dir, nil
	}

	t, err := c.submit(ctx, req)
	if err != nil {
		return "", err
	}

	t, err = c.waitForCompletion(ctx, t)
	if err != nil {
		return "", err
	}

	archive, err := c.download(ctx, t.Location)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cds: create cache dir: %w", err)
	}
	if err := Unpack(archive, dir); err != nil {
		return "", err
	}
	if err := markComplete(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// submit posts the retrieval request and returns the created task.
func (c *Client) submit(ctx context.Context, req Request) (*task, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("cds: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/resources/%s", c.baseURL, c.dataset)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cds: create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cds: submit request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(msg)}
	}

	var t task
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, fmt.Errorf("cds: decode task: %w", err)
	}
	return &t, nil
}

// waitForCompletion polls the task until it completes or fails.
func (c *Client) waitForCompletion(ctx context.Context, t *task) (*task, error) {
	for {
		switch t.State {
		case "completed":
			if t.Location == "" {
				return nil, fmt.Errorf("cds: task %s completed without a result location", t.RequestID)
			}
			return t, nil
		case "failed":
			return nil, &TaskError{RequestID: t.RequestID, Message: t.Error.Message, Reason: t.Error.Reason}
		case "queued", "running":
			// poll again below
		default:
			return nil, fmt.Errorf("cds: task %s in unknown state %q", t.RequestID, t.State)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		var err error
		t, err = c.pollTask(ctx, t.RequestID)
		if err != nil {
			return nil, err
		}
	}
}

func (c *Client) pollTask(ctx context.Context, requestID string) (*task, error) {
	url := fmt.Sprintf("%s/tasks/%s", c.baseURL, requestID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("cds: create poll request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cds: poll task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(msg)}
	}

	var t task
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, fmt.Errorf("cds: decode task: %w", err)
	}
	return &t, nil
}

// download fetches the produced archive. Relative locations are resolved
// against the API base URL.
func (c *Client) download(ctx context.Context, location string) ([]byte, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		location = c.baseURL + "/" + strings.TrimPrefix(location, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("cds: create download request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cds: download archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(msg)}
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	if uid, secret, ok := strings.Cut(c.key, ":"); ok {
		req.SetBasicAuth(uid, secret)
	}
}

// requestHash returns a stable cache key for a request.
func requestHash(req Request) string {
	data, _ := json.Marshal(req)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:8])
}

const completeMarker = ".complete"

func retrievalComplete(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, completeMarker))
	return err == nil
}

func markComplete(dir string) error {
	if err := os.WriteFile(filepath.Join(dir, completeMarker), []byte(time.Now().UTC().Format(time.RFC3339)), 0o644); err != nil {
		return fmt.Errorf("cds: write completion marker: %w", err)
	}
	return nil
}
