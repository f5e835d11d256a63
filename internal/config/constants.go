package config

import "time"

// Application constants
const (
	AppName   = "tourismcli"
	EnvPrefix = "TOURISM"

	// Pipeline defaults
	DefaultMaxGapRun     = 2
	DefaultHeaderScanMax = 12

	// Output files (relative to the output directory)
	ObservationsCSV      = "observations.csv"
	ObservationsXLSX     = "observations.xlsx"
	ObservationsSnappy   = "observations.csv.sz"
	ObservationsParquet  = "observations.parquet"
	ValidationReportJSON = "validation_report.json"
	DataDictionaryJSON   = "data_dictionary.json"

	// Output formats
	FormatCSV     = "csv"
	FormatXLSX    = "xlsx"
	FormatSnappy  = "snappy"
	FormatParquet = "parquet"

	// Server
	DefaultPort            = 8080
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRateLimit       = 5 // pipeline runs per second
	DefaultBurstSize       = 10

	// API
	APIBasePath    = "/api/v1"
	MetricsPath    = "/metrics"
	HealthEndpoint = "/health"
)

// DefaultSentinels are the source tokens meaning "not reported".
var DefaultSentinels = []string{"", "..", "N/A", "n/a", ":", "[c]", "[x]", "[z]", "[u]"}
