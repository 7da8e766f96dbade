// Package entsoe implements a client for the ENTSO-E Transparency Platform
// Web API. It downloads and decodes generation/load market documents and
// exposes the queries the pipeline needs: actual load, actual generation per
// production type, installed capacity and weekly hydro reservoir filling.
package entsoe

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/matteodefelice/pypsa-entsoe/timeseries"
)

const defaultBaseURL = "https://web-api.tp.entsoe.eu/api"

// The API rejects documents spanning more than one year, so longer intervals
// are fetched in yearly chunks.
const maxChunk = 365 * 24 * time.Hour

// Client is an HTTP client for the Transparency Platform Web API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	securityToken string
	userAgent     string
}

// NewClient creates a client authenticated with the given security token.
func NewClient(securityToken string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL:       defaultBaseURL,
		securityToken: securityToken,
		userAgent:     "pypsa-entsoe/1.0",
	}
}

// SetBaseURL overrides the API endpoint (useful for testing).
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// SetUserAgent sets a custom User-Agent for API requests.
func (c *Client) SetUserAgent(userAgent string) {
	c.userAgent = userAgent
}

// QueryLoad returns the actual total load for a zone over [start, end),
// reduced to hourly resolution.
func (c *Client) QueryLoad(ctx context.Context, zone string, start, end time.Time) (*timeseries.Series, error) {
	eic, err := ZoneEIC(zone)
	if err != nil {
		return nil, err
	}

	var parts []*timeseries.Series
	err = c.chunked(start, end, func(s, e time.Time) error {
		params := url.Values{}
		params.Set("documentType", "A65")
		params.Set("processType", "A16")
		params.Set("outBiddingZone_Domain", eic)
		doc, err := c.query(ctx, params, s, e)
		if err != nil {
			return err
		}
		parts = append(parts, doc.QuantitySeries())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query load for %s: %w", zone, err)
	}
	return concatSeries(parts).Hourly(), nil
}

// QueryGeneration returns the actual generation per production type for a
// zone over [start, end), hourly, keyed by production type name. A non-empty
// psrType restricts the query to one production type code (e.g. B12).
func (c *Client) QueryGeneration(ctx context.Context, zone string, start, end time.Time, psrType string) (map[string]*timeseries.Series, error) {
	eic, err := ZoneEIC(zone)
	if err != nil {
		return nil, err
	}

	merged := make(map[string][]*timeseries.Series)
	err = c.chunked(start, end, func(s, e time.Time) error {
		params := url.Values{}
		params.Set("documentType", "A75")
		params.Set("processType", "A16")
		params.Set("in_Domain", eic)
		if psrType != "" {
			params.Set("psrType", psrType)
		}
		doc, err := c.query(ctx, params, s, e)
		if err != nil {
			return err
		}
		// Generation-direction series only; the consumption direction of
		// storage units is reported separately and not part of dispatchable
		// output.
		for psr, series := range doc.SeriesByPSRType(false) {
			merged[psr] = append(merged[psr], series)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query generation for %s: %w", zone, err)
	}

	out := make(map[string]*timeseries.Series, len(merged))
	for psr, parts := range merged {
		out[PSRName(psr)] = concatSeries(parts).Hourly()
	}
	return out, nil
}

// QueryInstalledCapacity returns the installed capacity in MW per production
// type name for a zone and reference year.
func (c *Client) QueryInstalledCapacity(ctx context.Context, zone string, year int) (map[string]float64, error) {
	eic, err := ZoneEIC(zone)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("documentType", "A68")
	params.Set("processType", "A33")
	params.Set("in_Domain", eic)
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year+1, 1, 1, 0, 0, 0, 0, time.UTC)

	doc, err := c.query(ctx, params, start, end)
	if err != nil {
		return nil, fmt.Errorf("query installed capacity for %s/%d: %w", zone, year, err)
	}

	capacity := make(map[string]float64)
	for _, ts := range doc.TimeSeries {
		for _, period := range ts.Periods {
			for _, point := range period.Points {
				capacity[PSRName(ts.MktPSRType.PsrType)] = point.Quantity
			}
		}
	}
	return capacity, nil
}

// QueryHydroStorage returns the weekly filling rate of water reservoirs and
// hydro storage plants (MWh) for a zone over [start, end).
func (c *Client) QueryHydroStorage(ctx context.Context, zone string, start, end time.Time) (*timeseries.Series, error) {
	eic, err := ZoneEIC(zone)
	if err != nil {
		return nil, err
	}

	var parts []*timeseries.Series
	err = c.chunked(start, end, func(s, e time.Time) error {
		params := url.Values{}
		params.Set("documentType", "A72")
		params.Set("processType", "A16")
		params.Set("in_Domain", eic)
		doc, err := c.query(ctx, params, s, e)
		if err != nil {
			return err
		}
		parts = append(parts, doc.QuantitySeries())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query hydro storage for %s: %w", zone, err)
	}
	return concatSeries(parts), nil
}

// chunked invokes fn over consecutive sub-intervals no longer than the API's
// one-year document limit.
func (c *Client) chunked(start, end time.Time, fn func(s, e time.Time) error) error {
	for s := start; s.Before(end); {
		e := s.Add(maxChunk)
		if e.After(end) {
			e = end
		}
		if err := fn(s, e); err != nil {
			return err
		}
		s = e
	}
	return nil
}

// query performs one API request and decodes the response document.
func (c *Client) query(ctx context.Context, params url.Values, start, end time.Time) (*GLMarketDocument, error) {
	params.Set("securityToken", c.securityToken)
	params.Set("periodStart", periodParam(start))
	params.Set("periodEnd", periodParam(end))

	reqURL := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// "No matching data" comes back as an Acknowledgement document, with
	// either 200 or 400 depending on the failure mode.
	if ack := decodeAcknowledgement(body); ack != nil {
		return nil, &NoMatchingDataError{Code: ack.Reason.Code, Text: ack.Reason.Text}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP request failed with status %d: %s", resp.StatusCode, resp.Status)
	}

	doc, err := DecodeGLMarketDocument(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to decode XML response: %w", err)
	}
	return doc, nil
}

func decodeAcknowledgement(body []byte) *AcknowledgementDocument {
	var ack AcknowledgementDocument
	if err := xml.Unmarshal(body, &ack); err != nil {
		return nil
	}
	return &ack
}

// periodParam formats a time to the API's period format YYYYMMDDHHmm.
func periodParam(t time.Time) string {
	return t.UTC().Format("200601021504")
}
