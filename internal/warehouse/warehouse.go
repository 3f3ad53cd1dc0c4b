package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB driver (handles md: MotherDuck DSNs)

	"strava-motherduck-sync/internal/config"
	"strava-motherduck-sync/internal/metrics"
)

// Warehouse wraps the DuckDB connection to the analytical database
type Warehouse struct {
	conn       *sql.DB
	database   string
	motherDuck bool
	logger     *slog.Logger
}

// Open connects to the warehouse. MotherDuck DSNs (md: prefix) get the
// access token appended; a plain path opens a local DuckDB file, which is
// what the tests use.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Warehouse, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := cfg.WarehouseDSN
	motherDuck := strings.HasPrefix(dsn, "md:")
	if motherDuck && cfg.MotherDuckToken != "" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "motherduck_token=" + cfg.MotherDuckToken
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse: %w", err)
	}

	// USE and temp tables are per-connection state; keep a single connection
	// so the create-merge-drop sequence sees the same session.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping warehouse: %w", err)
	}

	return &Warehouse{
		conn:       conn,
		database:   cfg.WarehouseDatabase,
		motherDuck: motherDuck,
		logger:     logger,
	}, nil
}

// Close closes the warehouse connection
func (w *Warehouse) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// Init idempotently sets up the warehouse schema: the database (MotherDuck
// only; a local DuckDB file is already its own database), the base table,
// and the derived view. The view is replaced on every run.
func (w *Warehouse) Init(ctx context.Context) error {
	if w.motherDuck {
		createDB := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s;", w.database)
		if err := w.exec(ctx, metrics.OpCreateDatabase, createDB); err != nil {
			return fmt.Errorf("failed to create database %s: %w", w.database, err)
		}
		if err := w.exec(ctx, metrics.OpCreateDatabase, fmt.Sprintf("USE %s;", w.database)); err != nil {
			return fmt.Errorf("failed to select database %s: %w", w.database, err)
		}
	}

	if err := w.exec(ctx, metrics.OpCreateTable, createTableSQL); err != nil {
		return fmt.Errorf("failed to create base table: %w", err)
	}

	if err := w.exec(ctx, metrics.OpCreateView, createViewSQL); err != nil {
		return fmt.Errorf("failed to create view: %w", err)
	}

	w.logger.Info("warehouse schema initialized", "database", w.database)
	return nil
}

// LoadCSVFiles merges every CSV file in dir (non-recursive, sorted
// lexicographically so batch outcomes are reproducible) into the base
// table. The first failing file aborts the remaining batch. Returns the
// number of files merged.
func (w *Warehouse) LoadCSVFiles(ctx context.Context, dir string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return 0, fmt.Errorf("failed to list CSV files: %w", err)
	}
	sort.Strings(files)

	merged := 0
	for _, file := range files {
		// A run with no activities writes a zero-byte CSV; read_csv_auto
		// cannot stage it, so it is skipped rather than poisoning the batch.
		if info, serr := os.Stat(file); serr == nil && info.Size() == 0 {
			w.logger.Warn("skipping empty CSV file", "file", file)
			continue
		}

		if err := w.mergeFile(ctx, file); err != nil {
			return merged, fmt.Errorf("failed to merge %s: %w", file, err)
		}
		merged++
		metrics.FilesMergedTotal.Inc()
		w.logger.Info("uploaded CSV file to warehouse", "file", file)
	}

	return merged, nil
}

// mergeFile stages one CSV file and upserts it into the base table
func (w *Warehouse) mergeFile(ctx context.Context, file string) error {
	// read_csv_auto takes a string literal, so quotes in the path must be doubled
	escaped := strings.ReplaceAll(file, "'", "''")
	stage := fmt.Sprintf("CREATE TEMP TABLE activities_staging AS SELECT * FROM read_csv_auto('%s');", escaped)

	if err := w.exec(ctx, metrics.OpLoadStaging, stage); err != nil {
		return fmt.Errorf("failed to stage CSV: %w", err)
	}

	if err := w.exec(ctx, metrics.OpMerge, mergeSQL); err != nil {
		return fmt.Errorf("failed to merge staging table: %w", err)
	}

	if err := w.exec(ctx, metrics.OpDropStaging, dropStagingSQL); err != nil {
		return fmt.Errorf("failed to drop staging table: %w", err)
	}

	return nil
}

// exec runs one statement and records its outcome
func (w *Warehouse) exec(ctx context.Context, op, query string) error {
	_, err := w.conn.ExecContext(ctx, query)
	if err != nil {
		metrics.WarehouseStatementsTotal.WithLabelValues(op, metrics.ResultFailure).Inc()
		return err
	}
	metrics.WarehouseStatementsTotal.WithLabelValues(op, metrics.ResultSuccess).Inc()
	return nil
}

// Conn returns the underlying connection for direct queries (used in tests)
func (w *Warehouse) Conn() *sql.DB {
	return w.conn
}
