package config

import "time"

// Application constants
const (
	AppName = "marginreco"

	// EnvPrefix namespaces every environment variable, e.g. MARGINRECO_SERVER_PORT
	EnvPrefix = "MARGINRECO"

	// DefaultConfigFile is looked up in the working directory when no path is given
	DefaultConfigFile = "marginreco.yaml"
	// DefaultEnvFile is loaded into the environment when present
	DefaultEnvFile = ".env"
)

// Ingestion defaults
const (
	DefaultHeaderRows          = 6
	DefaultSecondaryHeaderRows = 0
)

// Artifact defaults
const (
	DefaultCompleteName = "chassis"
	DefaultTrimmedName  = "trim_chassis"
	WorkbookExtension   = ".xlsx"
)

// Server defaults
const (
	DefaultPort            = 8080
	DefaultReadTimeout     = 60 * time.Second
	DefaultWriteTimeout    = 120 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxUploadBytes  = 64 << 20
	DefaultReportTTL       = 30 * time.Minute
	DefaultRateLimitRPS    = 5
	DefaultRateLimitBurst  = 10
)
