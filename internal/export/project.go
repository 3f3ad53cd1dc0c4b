package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"strava-motherduck-sync/internal/strava"
)

// ExpectedColumns is the ordered allow-list of columns retained from the
// source records. Everything else is discarded at projection time.
var ExpectedColumns = []string{
	"id",
	"name",
	"start_date_local",
	"type",
	"distance",
	"moving_time",
}

// Table is a projected, ordered set of rows ready for CSV serialization
type Table struct {
	Columns []string
	Rows    [][]string
}

// Project narrows records to the expected columns. A column is kept when at
// least one record carries the key; every expected column that is absent
// from the whole input logs a warning instead of silently disappearing.
// Projecting an already-projected table yields the same table.
func Project(records []strava.Record, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}

	present := make(map[string]bool)
	for _, r := range records {
		for _, col := range ExpectedColumns {
			if _, ok := r[col]; ok {
				present[col] = true
			}
		}
	}

	var columns []string
	for _, col := range ExpectedColumns {
		if present[col] {
			columns = append(columns, col)
		} else {
			logger.Warn("expected column missing from source records", "column", col)
		}
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = formatCell(r[col])
		}
		rows = append(rows, row)
	}

	return &Table{Columns: columns, Rows: rows}
}

// formatCell stringifies one value. Numbers decoded as json.Number keep
// their exact source literal.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
