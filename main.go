package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"strava-motherduck-sync/internal/config"
	"strava-motherduck-sync/internal/export"
	"strava-motherduck-sync/internal/metrics"
	"strava-motherduck-sync/internal/state"
	"strava-motherduck-sync/internal/strava"
	"strava-motherduck-sync/internal/warehouse"
)

func main() {
	year := flag.Int("year", 0, "Which year of activities to download from Strava (default: last 7 days)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Set up logger
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(context.Background(), cfg, logger, *year); err != nil {
		logger.Error("sync failed", "error", err)
		os.Exit(1)
	}
}

// run executes the whole pipeline: fetch activities into a CSV, then set up
// the warehouse and merge every local CSV into it. The warehouse steps run
// even when no new data was fetched.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, year int) error {
	// The ledger is informational; its failures are logged, never fatal.
	ledger, err := state.Open(cfg.StatePath)
	if err != nil {
		logger.Warn("run ledger unavailable", "error", err)
		ledger = nil
	} else {
		defer ledger.Close()
		if last, lerr := ledger.LatestRun(); lerr == nil && last != nil {
			logger.Info("previous run",
				"started_at", time.Unix(last.StartedAt, 0).UTC().Format(time.RFC3339),
				"window_kind", last.WindowKind)
		}
	}

	var window strava.Window
	windowKind := "last_7_days"
	if year != 0 {
		logger.Info("Downloading activities for year", "year", year)
		window = strava.YearWindow(year)
		windowKind = "year"
	} else {
		logger.Info("No year specified, downloading activities from last 7 days only")
		window = strava.LastNDaysWindow(7, time.Now().UTC())
	}

	var runID int64
	if ledger != nil {
		if runID, err = ledger.StartRun(windowKind, window.After, window.Before); err != nil {
			logger.Warn("failed to record run start", "error", err)
			runID = 0
		}
	}

	fetched, csvFile, merged, syncErr := sync(ctx, cfg, logger, year, window)

	if ledger != nil && runID != 0 {
		var lerr error
		if syncErr != nil {
			lerr = ledger.FailRun(runID, syncErr.Error())
		} else {
			lerr = ledger.FinishRun(runID, fetched, csvFile, merged)
		}
		if lerr != nil {
			logger.Warn("failed to record run outcome", "error", lerr)
		}
	}

	if syncErr != nil {
		return syncErr
	}

	if cfg.PushgatewayURL != "" {
		if perr := metrics.Push(cfg.PushgatewayURL); perr != nil {
			logger.Warn("failed to push metrics", "error", perr)
		}
	}

	logger.Info("sync complete", "activities", fetched, "csv_file", csvFile, "files_merged", merged)
	return nil
}

// sync performs the four pipeline steps in order. Every error propagates
// immediately; there are no retries and no partial recovery.
func sync(ctx context.Context, cfg *config.Config, logger *slog.Logger, year int, window strava.Window) (int64, string, int64, error) {
	client := strava.NewClient(cfg, logger)

	token, err := client.ExchangeRefreshToken(ctx)
	if err != nil {
		metrics.TokenExchangesTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return 0, "", 0, fmt.Errorf("failed to exchange refresh token: %w", err)
	}
	metrics.TokenExchangesTotal.WithLabelValues(metrics.ResultSuccess).Inc()

	records, err := client.FetchActivities(ctx, token, window)
	if err != nil {
		return 0, "", 0, fmt.Errorf("failed to fetch activities: %w", err)
	}

	table := export.Project(records, logger)
	logger.Info("Downloaded activities", "count", len(table.Rows))

	csvFile := export.FileName(year)
	if err := export.WriteCSV(table, filepath.Join(cfg.CSVDir, csvFile)); err != nil {
		return 0, "", 0, fmt.Errorf("failed to write CSV: %w", err)
	}

	wh, err := warehouse.Open(ctx, cfg, logger)
	if err != nil {
		return 0, "", 0, fmt.Errorf("failed to open warehouse: %w", err)
	}
	defer wh.Close()

	if err := wh.Init(ctx); err != nil {
		return 0, "", 0, fmt.Errorf("failed to initialize warehouse: %w", err)
	}

	merged, err := wh.LoadCSVFiles(ctx, cfg.CSVDir)
	if err != nil {
		return 0, "", 0, fmt.Errorf("failed to load CSV files: %w", err)
	}

	return int64(len(records)), csvFile, int64(merged), nil
}
