package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Label value constants to prevent typos
const (
	// Results
	ResultSuccess = "success"
	ResultFailure = "failure"

	// Warehouse operations
	OpCreateDatabase = "create_database"
	OpCreateTable    = "create_table"
	OpCreateView     = "create_view"
	OpLoadStaging    = "load_staging"
	OpMerge          = "merge"
	OpDropStaging    = "drop_staging"

	// Job name reported to the Pushgateway
	JobName = "strava_motherduck_sync"
)

var (
	// TokenExchangesTotal counts refresh-token exchanges by result
	TokenExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strava_token_exchanges_total",
			Help: "Total number of Strava token exchanges",
		},
		[]string{"result"},
	)

	// ActivityPagesTotal counts activity list pages requested
	ActivityPagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strava_activity_pages_total",
			Help: "Total number of activity pages requested from Strava",
		},
	)

	// ActivitiesFetchedTotal counts activities fetched
	ActivitiesFetchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strava_activities_fetched_total",
			Help: "Total number of activities fetched from Strava",
		},
	)

	// CSVRowsWrittenTotal counts rows written to CSV files
	CSVRowsWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "csv_rows_written_total",
			Help: "Total number of data rows written to CSV files",
		},
	)

	// WarehouseStatementsTotal counts warehouse statements by operation and result
	WarehouseStatementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehouse_statements_total",
			Help: "Total number of warehouse SQL statements executed",
		},
		[]string{"operation", "result"},
	)

	// FilesMergedTotal counts CSV files merged into the warehouse
	FilesMergedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "warehouse_files_merged_total",
			Help: "Total number of CSV files merged into the warehouse",
		},
	)
)

// Push sends all registered metrics to a Pushgateway. A one-shot job has
// nothing to scrape, so the run pushes its counters on the way out.
func Push(gatewayURL string) error {
	return push.New(gatewayURL, JobName).
		Gatherer(prometheus.DefaultGatherer).
		Push()
}
