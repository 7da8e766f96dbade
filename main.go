// Command pypsa-entsoe builds a national-resolution European power-system
// model from ENTSO-E transparency and Copernicus climate data and solves its
// hourly dispatch with an external LP solver.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matteodefelice/pypsa-entsoe/pipeline"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file path")
		serve      = flag.Bool("serve", false, "Run the web server and re-run the pipeline periodically")
		fetch      = flag.Bool("fetch", false, "Fetch market and climate data only, without solving")
		rep        = flag.Bool("report", false, "Rewrite the output files from the latest persisted run")
		help       = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	cfg, err := pipeline.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading configuration:", err)
		os.Exit(1)
	}

	log, err := pipeline.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error creating logger:", err)
		os.Exit(1)
	}

	runner, err := pipeline.NewRunner(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("setup failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := pipeline.OpenStore(ctx, cfg.Postgres.Conn)
	if err != nil {
		log.Fatal().Err(err).Msg("database setup failed")
	}
	defer store.Close()
	runner.SetStore(store)

	switch {
	case *fetch:
		if err := runner.Fetch(ctx); err != nil {
			log.Fatal().Err(err).Msg("data fetch failed")
		}
		return
	case *rep:
		if err := runner.Report(ctx); err != nil {
			log.Fatal().Err(err).Msg("report failed")
		}
		return
	case !*serve:
		result, err := runner.Run(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("pipeline run failed")
		}
		log.Info().Str("run_id", result.ID).Msg(result.Summary.String())
		return
	}

	runner.SetMetrics(pipeline.NewMetrics())

	server := pipeline.NewWebServer(runner, log)
	if server == nil {
		log.Fatal().Msg("serve mode needs server.port in the configuration")
	}
	if err := server.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("web server failed to start")
	}
	log.Info().Int("port", cfg.Server.Port).Msg("web server started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("shutdown signal received")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("web server shutdown failed")
	}
}

func showHelp() {
	fmt.Println("pypsa-entsoe - European power-system dispatch from open data")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Fetches load, generation and installed capacity from the ENTSO-E")
	fmt.Println("  transparency platform and climate-driven capacity factors from the")
	fmt.Println("  Copernicus Climate Data Store, assembles a one-bus-per-country")
	fmt.Println("  network and solves the hourly economic dispatch with HiGHS or CBC.")
	fmt.Println()
	fmt.Println("  Results are written as CSV and JSON tables, optionally persisted to")
	fmt.Println("  PostgreSQL and exposed over an HTTP status API with Prometheus")
	fmt.Println("  metrics and websocket updates.")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  pypsa-entsoe [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # One-off run")
	fmt.Println("  pypsa-entsoe --config=config.yaml")
	fmt.Println()
	fmt.Println("  # Warm the data cache without solving")
	fmt.Println("  pypsa-entsoe --config=config.yaml --fetch")
	fmt.Println()
	fmt.Println("  # Periodic runs with the status API on the configured port")
	fmt.Println("  pypsa-entsoe --config=config.yaml --serve")
	fmt.Println()
	fmt.Println("ENVIRONMENT:")
	fmt.Println("  ENTSOE_TOKEN   ENTSO-E transparency API token")
	fmt.Println("  CDS_TOKEN      Climate Data Store API key (uid:secret)")
	fmt.Println("  POSTGRES_CONN  PostgreSQL connection string")
}
