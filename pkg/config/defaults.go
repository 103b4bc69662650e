package config

import "time"

// Default values for configuration fields.
const (
	// Storage defaults
	DefaultStorageBackend     = "sqlite"
	DefaultSQLitePath         = "data/policies.db"
	DefaultSQLiteBusyTimeout  = 5 * time.Second
	DefaultMaintenanceEnabled = true
	// DefaultMaintenanceSchedule runs nightly at 03:00.
	DefaultMaintenanceSchedule = "0 3 * * *"

	// Audit defaults
	DefaultAuditBackend    = "log"
	DefaultAuditSQLitePath = "data/audit.db"

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultLoggingRedactPII = true
	DefaultMetricsEnabled   = true

	// Engine defaults
	DefaultMaxDocumentSize = 1 << 20 // 1MB
)

// ApplyDefaults fills in default values for any unset configuration
// fields. Explicitly set values are never overwritten.
func ApplyDefaults(cfg *Config) {
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Storage.Maintenance.Schedule == "" {
		cfg.Storage.Maintenance.Schedule = DefaultMaintenanceSchedule
	}

	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.SQLitePath == "" {
		cfg.Audit.SQLitePath = DefaultAuditSQLitePath
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}

	if cfg.Engine.MaxDocumentSize == 0 {
		cfg.Engine.MaxDocumentSize = DefaultMaxDocumentSize
	}
}

// NewDefaultConfig returns a configuration with every field set to its
// default value.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Storage.Maintenance.Enabled = DefaultMaintenanceEnabled
	cfg.Telemetry.Logging.RedactPII = DefaultLoggingRedactPII
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	ApplyDefaults(cfg)
	return cfg
}
