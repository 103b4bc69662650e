// Package config defines the engine configuration model and loads it
// from YAML files with defaults, environment overrides, and validation.
package config

import "time"

// Config is the root configuration for the policy engine.
type Config struct {
	// Storage configures the policy store backend.
	Storage StorageConfig `yaml:"storage"`

	// Audit configures the audit event sink.
	Audit AuditConfig `yaml:"audit"`

	// Templates configures the policy template source.
	Templates TemplatesConfig `yaml:"templates"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Engine configures validation and versioning behavior.
	Engine EngineConfig `yaml:"engine"`
}

// StorageConfig configures the policy store backend.
type StorageConfig struct {
	// Backend selects the store implementation ("memory" or "sqlite").
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Maintenance configures scheduled store maintenance.
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// SQLiteConfig configures a sqlite database file.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string `yaml:"path"`

	// BusyTimeout is how long a connection waits on a locked database.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// MaintenanceConfig configures scheduled store maintenance.
type MaintenanceConfig struct {
	// Enabled turns scheduled maintenance on.
	Enabled bool `yaml:"enabled"`

	// Schedule is a standard cron expression.
	Schedule string `yaml:"schedule"`
}

// AuditConfig configures the audit sink.
type AuditConfig struct {
	// Backend selects the sink implementation ("log", "sqlite" or "memory").
	Backend string `yaml:"backend"`

	// SQLitePath is the audit database file path for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`
}

// TemplatesConfig configures the policy template source.
type TemplatesConfig struct {
	// Dir is an optional directory of template YAML files. When empty the
	// built-in templates are used.
	Dir string `yaml:"dir"`

	// Watch enables hot reloading of the template directory.
	Watch bool `yaml:"watch"`
}

// TelemetryConfig configures logging and metrics.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the output format ("json" or "text").
	Format string `yaml:"format"`

	// AddSource includes file and line number in logs.
	AddSource bool `yaml:"add_source"`

	// RedactPII scrubs PII-looking values out of log attributes.
	RedactPII bool `yaml:"redact_pii"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns metric collection on.
	Enabled bool `yaml:"enabled"`
}

// EngineConfig configures validation and versioning behavior.
type EngineConfig struct {
	// MaxDocumentSize is the largest accepted policy document in bytes.
	MaxDocumentSize int `yaml:"max_document_size"`

	// ReserveDeletedNames keeps the names of deleted policies reserved
	// so they cannot be reused by new policies.
	ReserveDeletedNames bool `yaml:"reserve_deleted_names"`
}
