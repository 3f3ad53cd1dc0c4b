package export

import (
	"encoding/csv"
	"fmt"
	"os"

	"strava-motherduck-sync/internal/metrics"
)

// FileName returns the CSV file name for a run: activities_<year>.csv when
// a year was requested, else activities_last_7_days.csv.
func FileName(year int) string {
	if year != 0 {
		return fmt.Sprintf("activities_%d.csv", year)
	}
	return "activities_last_7_days.csv"
}

// WriteCSV serializes the table to path as UTF-8, comma-delimited CSV with
// a header row, overwriting any existing file of the same name.
func WriteCSV(table *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file %s: %w", path, err)
	}

	w := csv.NewWriter(f)

	if len(table.Columns) > 0 {
		if err := w.Write(table.Columns); err != nil {
			f.Close()
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	for _, row := range table.Rows {
		if err := w.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush CSV file %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close CSV file %s: %w", path, err)
	}

	metrics.CSVRowsWrittenTotal.Add(float64(len(table.Rows)))
	return nil
}
