// Package cds provides a Go client for the Copernicus Climate Data Store
// "sis-energy-derived-reanalysis" dataset, the source of the country-level
// meteorological and capacity-factor time series used by the pipeline.
//
// A retrieval is asynchronous: the client submits a request, polls the
// resulting task until it completes, downloads the zip archive it produced
// and unpacks the country-level CSV files into the local data directory.
// Completed retrievals are cached on disk keyed by a hash of the request, so
// re-running a pipeline does not hit the service again.
//
// Basic usage:
//
//	client := cds.NewClient("uid:api-key", "/var/lib/pypsa-entsoe")
//
//	dir, err := client.Retrieve(ctx, cds.Request{
//		Variables:           []string{cds.VariableTemperature, cds.VariableIrradiance},
//		SpatialAggregation:  cds.AggregationCountry,
//		TemporalAggregation: "hourly",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	frames, err := cds.LoadFrames(dir)
//
// For dataset documentation see
// https://cds.climate.copernicus.eu/datasets/sis-energy-derived-reanalysis
package cds
