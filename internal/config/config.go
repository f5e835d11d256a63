package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Source    SourceConfig    `yaml:"source" envconfig:"SOURCE"`
	Cleaning  CleaningConfig  `yaml:"cleaning" envconfig:"CLEANING"`
	GapFill   GapFillConfig   `yaml:"gap_fill" envconfig:"GAP_FILL"`
	Output    OutputConfig    `yaml:"output" envconfig:"OUTPUT"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
}

// SourceConfig describes the workbook and how its sheets map to dimensions
type SourceConfig struct {
	Path    string         `yaml:"path"`
	Version string         `yaml:"version"`
	Sheets  []SheetMapping `yaml:"sheets" ignored:"true" validate:"required,min=1,dive"`
}

// SheetMapping binds one worksheet to the dimension it breaks down by.
// Metric and Unit override what the header would otherwise say.
type SheetMapping struct {
	Sheet      string `yaml:"sheet" validate:"required"`
	Dimension  string `yaml:"dimension" validate:"required,oneof=geography purpose transport uk_region country"`
	Metric     string `yaml:"metric,omitempty" validate:"omitempty,oneof=visits expenditure_gbp_mn nights"`
	Unit       string `yaml:"unit,omitempty"`
	HeaderRows int    `yaml:"header_rows,omitempty" validate:"min=0,max=20"`
}

// CleaningConfig carries the tables the cleaner consults
type CleaningConfig struct {
	Synonyms      map[string]string `yaml:"synonyms" ignored:"true"`
	Sentinels     []string          `yaml:"sentinels"`
	HeaderScanMax int               `yaml:"header_scan_max" split_words:"true" validate:"min=1,max=100"`
	Units         UnitFactors       `yaml:"units" envconfig:"UNITS"`
}

// UnitFactors converts source units to canonical ones. Counts become
// absolute numbers; money becomes GBP millions.
type UnitFactors struct {
	Thousands       float64 `yaml:"thousands" validate:"gt=0"`
	Millions        float64 `yaml:"millions" validate:"gt=0"`
	Pounds          float64 `yaml:"pounds" validate:"gt=0"`
	PoundsThousands float64 `yaml:"pounds_thousands" split_words:"true" validate:"gt=0"`
	PoundsMillions  float64 `yaml:"pounds_millions" split_words:"true" validate:"gt=0"`
	PoundsBillions  float64 `yaml:"pounds_billions" split_words:"true" validate:"gt=0"`
}

// GapFillConfig controls the opt-in short gap filler
type GapFillConfig struct {
	Enabled bool `yaml:"enabled"`
	MaxRun  int  `yaml:"max_run" split_words:"true" validate:"min=1,max=8"`
}

// OutputConfig controls where and how results are persisted
type OutputConfig struct {
	Dir       string   `yaml:"dir" validate:"required"`
	Formats   []string `yaml:"formats" validate:"required,min=1,dive,oneof=csv xlsx snappy parquet"`
	BOMPrefix bool     `yaml:"bom_prefix" split_words:"true"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" validate:"oneof=json text"`
	Output   string `yaml:"output" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" split_words:"true"`
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name" split_words:"true" validate:"required"`
	Metrics      bool   `yaml:"metrics"`
	StdoutTraces bool   `yaml:"stdout_traces" split_words:"true"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" split_words:"true" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" split_words:"true" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" split_words:"true"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" split_words:"true"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps" validate:"gte=0"`
	Burst   int     `yaml:"burst" validate:"gte=0"`
}

// Load builds the configuration from defaults, then the YAML file at path
// (or a discovered tourism.yaml when path is empty), then TOURISM_*
// environment variables, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = discoverConfigFile()
	}
	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays the YAML document onto c; absent keys keep their defaults
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sourcePath, outputDir := c.Source.Path, c.Output.Dir
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	// Relative paths set by the file are relative to the file itself.
	base := filepath.Dir(path)
	if c.Source.Path != sourcePath && c.Source.Path != "" && !filepath.IsAbs(c.Source.Path) {
		c.Source.Path = filepath.Join(base, c.Source.Path)
	}
	if c.Output.Dir != outputDir && c.Output.Dir != "" && !filepath.IsAbs(c.Output.Dir) {
		c.Output.Dir = filepath.Join(base, c.Output.Dir)
	}
	return nil
}

// Validate checks struct constraints and cross-field rules
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%s", strings.Join(msgs, "; "))
		}
		return err
	}

	seen := make(map[string]bool, len(c.Source.Sheets))
	for _, m := range c.Source.Sheets {
		key := strings.ToLower(strings.TrimSpace(m.Sheet))
		if seen[key] {
			return fmt.Errorf("sheet %q mapped more than once", m.Sheet)
		}
		seen[key] = true
	}

	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path is required when output is %q", c.Logging.Output)
	}
	return nil
}

// YAML renders the effective configuration
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// SourceVersion returns the configured release label, falling back to the workbook name
func (c *Config) SourceVersion(path string) string {
	if c.Source.Version != "" {
		return c.Source.Version
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// discoverConfigFile returns the first config file found in the usual locations
func discoverConfigFile() string {
	locations := []string{
		"tourism.yaml",
		"configs/tourism.yaml",
		"../configs/tourism.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns default configuration for the overseas visitors release
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Sheets: DefaultSheets(),
		},
		Cleaning: CleaningConfig{
			Synonyms:      DefaultSynonyms(),
			Sentinels:     append([]string(nil), DefaultSentinels...),
			HeaderScanMax: DefaultHeaderScanMax,
			Units: UnitFactors{
				Thousands:       1_000,
				Millions:        1_000_000,
				Pounds:          1e-6,
				PoundsThousands: 1e-3,
				PoundsMillions:  1,
				PoundsBillions:  1_000,
			},
		},
		GapFill: GapFillConfig{
			Enabled: false,
			MaxRun:  DefaultMaxGapRun,
		},
		Output: OutputConfig{
			Dir:     "data/processed",
			Formats: []string{FormatCSV},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/tourismcli.log",
		},
		Telemetry: TelemetryConfig{
			ServiceName: AppName,
			Metrics:     true,
		},
		Server: ServerConfig{
			Port:            DefaultPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
	}
}

// DefaultSheets maps the breakdown sheets of the annual release workbook
func DefaultSheets() []SheetMapping {
	return []SheetMapping{
		{Sheet: "Geography", Dimension: "geography"},
		{Sheet: "Purpose", Dimension: "purpose"},
		{Sheet: "Transport", Dimension: "transport"},
		{Sheet: "UK region", Dimension: "uk_region"},
		{Sheet: "Country", Dimension: "country"},
	}
}

// DefaultSynonyms maps source labels onto canonical category and metric names
func DefaultSynonyms() map[string]string {
	return map[string]string{
		// purpose
		"VFR":                          "Visiting friends and relatives",
		"Visiting Friends & Relatives": "Visiting friends and relatives",
		"Visiting friends/relatives":   "Visiting friends and relatives",
		"Holidays":                     "Holiday",
		"Other":                        "Miscellaneous",
		"Misc":                         "Miscellaneous",
		"Study":                        "Miscellaneous",
		// transport
		"Rail":           "Tunnel",
		"Channel Tunnel": "Tunnel",
		"Ferry":          "Sea",
		"Plane":          "Air",
		// geography
		"N America":              "North America",
		"Rest of the World":      "Other Countries",
		"Rest of World":          "Other Countries",
		"Other countries":        "Other Countries",
		"European Union":         "Europe",
		"EU":                     "Europe",
		"Yorkshire & Humber":     "Yorkshire and The Humber",
		"Yorkshire & The Humber": "Yorkshire and The Humber",
		"East":                   "East of England",
		// totals
		"All":          "Total",
		"All visits":   "Total",
		"Total visits": "Total",
		"Grand total":  "Total",
		// metrics
		"Number of visits": "visits",
		"Visits":           "visits",
		"Spending":         "expenditure_gbp_mn",
		"Spend":            "expenditure_gbp_mn",
		"Expenditure":      "expenditure_gbp_mn",
		"Nights":           "nights",
		"Nights stayed":    "nights",
		"Number of nights": "nights",
	}
}
