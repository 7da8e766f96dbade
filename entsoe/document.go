package entsoe

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/matteodefelice/pypsa-entsoe/timeseries"
)

// GLMarketDocument represents the root element of a generation/load market
// document returned by the Transparency Platform.
type GLMarketDocument struct {
	XMLName            xml.Name         `xml:"GL_MarketDocument"`
	MRID               string           `xml:"mRID"`
	RevisionNumber     int              `xml:"revisionNumber"`
	Type               string           `xml:"type"`
	ProcessType        string           `xml:"process.processType"`
	CreatedDateTime    string           `xml:"createdDateTime"`
	PeriodTimeInterval TimeInterval     `xml:"time_Period.timeInterval"`
	TimeSeries         []DocumentSeries `xml:"TimeSeries"`
}

// DocumentSeries is one TimeSeries block of a market document.
type DocumentSeries struct {
	MRID                string     `xml:"mRID"`
	BusinessType        string     `xml:"businessType"`
	ObjectAggregation   string     `xml:"objectAggregation"`
	InBiddingZoneMRID   DomainMRID `xml:"inBiddingZone_Domain.mRID"`
	OutBiddingZoneMRID  DomainMRID `xml:"outBiddingZone_Domain.mRID"`
	QuantityMeasureUnit string     `xml:"quantity_Measure_Unit.name"`
	CurveType           string     `xml:"curveType"`
	MktPSRType          PSRType    `xml:"MktPSRType"`
	Periods             []Period   `xml:"Period"`
}

// DomainMRID is a bidding-zone reference with its coding scheme.
type DomainMRID struct {
	CodingScheme string `xml:"codingScheme,attr"`
	Value        string `xml:",chardata"`
}

// PSRType identifies the production type of a generation series.
type PSRType struct {
	PsrType string `xml:"psrType"`
}

// TimeInterval represents a start/end pair in the document's time formats.
type TimeInterval struct {
	Start time.Time `xml:"start"`
	End   time.Time `xml:"end"`
}

// UnmarshalXML implements custom XML unmarshaling for TimeInterval.
func (ti *TimeInterval) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var aux struct {
		Start string `xml:"start"`
		End   string `xml:"end"`
	}
	if err := d.DecodeElement(&aux, &start); err != nil {
		return err
	}

	var err error
	ti.Start, err = parseTimeString(aux.Start)
	if err != nil {
		return fmt.Errorf("error parsing start time: %w", err)
	}
	ti.End, err = parseTimeString(aux.End)
	if err != nil {
		return fmt.Errorf("error parsing end time: %w", err)
	}
	return nil
}

// parseTimeString parses time strings in the formats used by ENTSO-E XML.
func parseTimeString(timeStr string) (time.Time, error) {
	// RFC3339 with seconds first
	if t, err := time.Parse(time.RFC3339, timeStr); err == nil {
		return t, nil
	}
	// Simplified format without seconds (2018-01-01T23:00Z)
	if t, err := time.Parse("2006-01-02T15:04Z", timeStr); err == nil {
		return t, nil
	}
	// With timezone offset but no seconds
	if t, err := time.Parse("2006-01-02T15:04Z07:00", timeStr); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unable to parse time string: %s", timeStr)
}

// Period represents one period with its interval, resolution and points.
type Period struct {
	TimeInterval TimeInterval
	Resolution   time.Duration
	Points       []Point
}

// UnmarshalXML implements custom XML unmarshaling for Period.
func (p *Period) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var aux struct {
		TimeInterval TimeInterval `xml:"timeInterval"`
		Resolution   string       `xml:"resolution"`
		Points       []Point      `xml:"Point"`
	}
	if err := d.DecodeElement(&aux, &start); err != nil {
		return err
	}

	p.TimeInterval = aux.TimeInterval
	p.Points = aux.Points

	var err error
	p.Resolution, err = parseResolution(aux.Resolution)
	if err != nil {
		return fmt.Errorf("error parsing resolution: %w", err)
	}
	return nil
}

// parseResolution parses the ISO 8601 durations the Transparency Platform
// actually publishes as period resolutions.
func parseResolution(res string) (time.Duration, error) {
	switch res {
	case "PT15M":
		return 15 * time.Minute, nil
	case "PT30M":
		return 30 * time.Minute, nil
	case "PT60M", "PT1H":
		return time.Hour, nil
	case "P1D":
		return 24 * time.Hour, nil
	case "P7D":
		return 7 * 24 * time.Hour, nil
	case "P1Y":
		// Yearly documents (installed capacity) carry a single point; the
		// exact span is irrelevant beyond being non-zero.
		return 365 * 24 * time.Hour, nil
	}

	// Fall back to a generic PT..H/M parse for unusual resolutions.
	if strings.HasPrefix(res, "PT") {
		body := res[2:]
		if strings.HasSuffix(body, "M") {
			if n, err := strconv.Atoi(strings.TrimSuffix(body, "M")); err == nil {
				return time.Duration(n) * time.Minute, nil
			}
		}
		if strings.HasSuffix(body, "H") {
			if n, err := strconv.Atoi(strings.TrimSuffix(body, "H")); err == nil {
				return time.Duration(n) * time.Hour, nil
			}
		}
	}
	return 0, fmt.Errorf("unsupported resolution: %s", res)
}

// Point is a quantity at a 1-based position within a period.
type Point struct {
	Position int     `xml:"position"`
	Quantity float64 `xml:"quantity"`
}

// TimeForPosition returns the interval start of the given 1-based position.
func (p *Period) TimeForPosition(position int) time.Time {
	return p.TimeInterval.Start.Add(time.Duration(position-1) * p.Resolution)
}

// Series flattens a period into a timestamped series. With curve type A03 the
// platform omits points whose value repeats the previous position, so gaps
// between positions are forward-filled; for other curve types omitted
// positions become NaN.
func (p *Period) Series(curveType string) *timeseries.Series {
	n := int(p.TimeInterval.End.Sub(p.TimeInterval.Start) / p.Resolution)
	if n <= 0 {
		return timeseries.Empty()
	}

	values := make([]float64, n)
	for i := range values {
		values[i] = math.NaN()
	}
	for _, pt := range p.Points {
		if pt.Position >= 1 && pt.Position <= n {
			values[pt.Position-1] = pt.Quantity
		}
	}
	if curveType == "A03" {
		last := math.NaN()
		for i, v := range values {
			if math.IsNaN(v) {
				values[i] = last
			} else {
				last = v
			}
		}
	}

	times := make([]time.Time, n)
	for i := range times {
		times[i] = p.TimeForPosition(i + 1)
	}
	s, _ := timeseries.New(times, values)
	return s
}

// SeriesByPSRType collects the document's quantity series grouped by
// production type. Series without an MktPSRType land under the empty key.
// When consumption is true, only series with an outBiddingZone domain
// (consumption direction) are kept, otherwise only generation-direction
// series are kept.
func (doc *GLMarketDocument) SeriesByPSRType(consumption bool) map[string]*timeseries.Series {
	grouped := make(map[string][]*timeseries.Series)
	for _, ts := range doc.TimeSeries {
		isConsumption := ts.OutBiddingZoneMRID.Value != "" && ts.InBiddingZoneMRID.Value == ""
		if isConsumption != consumption {
			continue
		}
		for _, period := range ts.Periods {
			grouped[ts.MktPSRType.PsrType] = append(grouped[ts.MktPSRType.PsrType], period.Series(ts.CurveType))
		}
	}

	out := make(map[string]*timeseries.Series, len(grouped))
	for psr, parts := range grouped {
		out[psr] = concatSeries(parts)
	}
	return out
}

// QuantitySeries concatenates every period of every series in the document
// into one series, regardless of direction or production type.
func (doc *GLMarketDocument) QuantitySeries() *timeseries.Series {
	var parts []*timeseries.Series
	for _, ts := range doc.TimeSeries {
		for _, period := range ts.Periods {
			parts = append(parts, period.Series(ts.CurveType))
		}
	}
	return concatSeries(parts)
}

func concatSeries(parts []*timeseries.Series) *timeseries.Series {
	var times []time.Time
	var values []float64
	for _, part := range parts {
		times = append(times, part.Times()...)
		values = append(values, part.Values()...)
	}
	s, _ := timeseries.New(times, values)
	return s
}

// DecodeGLMarketDocument decodes a GL_MarketDocument from XML.
func DecodeGLMarketDocument(r io.Reader) (*GLMarketDocument, error) {
	var doc GLMarketDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("error parsing XML: %w", err)
	}
	return &doc, nil
}

// AcknowledgementDocument is the platform's reply when a query matches no
// data or is malformed.
type AcknowledgementDocument struct {
	XMLName xml.Name `xml:"Acknowledgement_MarketDocument"`
	Reason  struct {
		Code string `xml:"code"`
		Text string `xml:"text"`
	} `xml:"Reason"`
}

// NoMatchingDataError reports a query for which the platform holds no data.
type NoMatchingDataError struct {
	Code string
	Text string
}

func (e *NoMatchingDataError) Error() string {
	return fmt.Sprintf("entsoe: no matching data (code %s): %s", e.Code, e.Text)
}
