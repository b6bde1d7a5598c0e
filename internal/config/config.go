package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"marginreco/internal/classify"
	apperrors "marginreco/internal/errors"
	"marginreco/internal/ledger"
)

// Config represents the complete application configuration
type Config struct {
	Logging        LoggingConfig        `yaml:"logging" envconfig:"LOGGING"`
	Ingest         IngestConfig         `yaml:"ingest" envconfig:"INGEST"`
	Classification ClassificationConfig `yaml:"classification" envconfig:"CLASSIFICATION"`
	Reconcile      ReconcileConfig      `yaml:"reconcile" envconfig:"RECONCILE"`
	Output         OutputConfig         `yaml:"output" envconfig:"OUTPUT"`
	Server         ServerConfig         `yaml:"server" envconfig:"SERVER"`
	Telemetry      TelemetryConfig      `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console stderr file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_if=Output file,required_if=Output both"`
}

// IngestConfig controls how ledgers are read
type IngestConfig struct {
	// HeaderRows is the number of rows above the primary ledger header
	HeaderRows int `yaml:"header_rows" envconfig:"HEADER_ROWS" validate:"min=0"`
	// SecondaryHeaderRows is the number of rows above the discount ledger header
	SecondaryHeaderRows int `yaml:"secondary_header_rows" envconfig:"SECONDARY_HEADER_ROWS" validate:"min=0"`
	// DropColumns are removed from the primary ledger before classification
	DropColumns []string `yaml:"drop_columns" envconfig:"DROP_COLUMNS"`
}

// ClassificationConfig holds the charge column rule table
type ClassificationConfig struct {
	Rules        []classify.Rule `yaml:"rules" ignored:"true" validate:"dive"`
	AllowOverlap bool            `yaml:"allow_overlap" envconfig:"ALLOW_OVERLAP"`
}

// ReconcileConfig configures the reconciliation check
type ReconcileConfig struct {
	LastGroupTotal bool `yaml:"last_group_total" envconfig:"LAST_GROUP_TOTAL"`
}

// OutputConfig names the artifacts
type OutputConfig struct {
	Dir          string `yaml:"dir" envconfig:"DIR"`
	CompleteName string `yaml:"complete_name" envconfig:"COMPLETE_NAME" validate:"required,nefield=TrimmedName"`
	TrimmedName  string `yaml:"trimmed_name" envconfig:"TRIMMED_NAME" validate:"required"`
	// TempDir holds artifacts generated by the HTTP service; empty means the OS default
	TempDir string `yaml:"temp_dir" envconfig:"TEMP_DIR"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	MaxUploadBytes  int64           `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"gt=0"`
	ReportTTL       time.Duration   `yaml:"report_ttl" envconfig:"REPORT_TTL" validate:"gt=0"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gt=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"min=1"`
}

// TelemetryConfig selects the tracing exporter and the metrics textfile
type TelemetryConfig struct {
	TraceExporter string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	// MetricsFile receives the run metrics in Prometheus text format after a CLI run
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "console",
		},
		Ingest: IngestConfig{
			HeaderRows:          DefaultHeaderRows,
			SecondaryHeaderRows: DefaultSecondaryHeaderRows,
			DropColumns:         append([]string(nil), ledger.DefaultDropColumns...),
		},
		Classification: ClassificationConfig{
			Rules: classify.DefaultRules(),
		},
		Output: OutputConfig{
			CompleteName: DefaultCompleteName,
			TrimmedName:  DefaultTrimmedName,
		},
		Server: ServerConfig{
			Port:            DefaultPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxUploadBytes:  DefaultMaxUploadBytes,
			ReportTTL:       DefaultReportTTL,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimitRPS,
				Burst:   DefaultRateLimitBurst,
			},
		},
		Telemetry: TelemetryConfig{
			TraceExporter: "none",
		},
	}
}

// Load layers defaults, .env, the YAML file and MARGINRECO_ environment variables,
// then validates the result. An empty path falls back to marginreco.yaml in the
// working directory when it exists.
func Load(path string) (*Config, error) {
	if err := loadEnvFile(DefaultEnvFile); err != nil {
		return nil, err
	}

	cfg := Default()

	file := path
	if file == "" && exists(DefaultConfigFile) {
		file = DefaultConfigFile
	}
	if file != "" {
		if err := loadFromFile(file, cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFile exports the variables of a dotenv file; existing variables win.
func loadEnvFile(path string) error {
	if !exists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return apperrors.NewConfigError(fmt.Sprintf("failed to load %s", path), err)
	}
	return nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file keep their value.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return apperrors.NewConfigError(fmt.Sprintf("failed to read config file %s", filePath), err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return apperrors.NewConfigError(fmt.Sprintf("failed to parse config file %s", filePath), err)
	}
	return nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if len(c.Classification.Rules) == 0 {
		c.Classification.Rules = classify.DefaultRules()
	}
	if err := validator.New().Struct(c); err != nil {
		return apperrors.NewConfigError("config validation failed", err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
