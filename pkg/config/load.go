package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values and validates the result. Environment
// variables are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention MASKWISE_SECTION_FIELD (e.g. MASKWISE_STORAGE_BACKEND) and
// always take precedence over file-based configuration.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like LoadConfigWithEnvOverrides but falls back
// to the default configuration when the file does not exist. Environment
// overrides apply in both cases.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := NewDefaultConfig()
		applyEnvOverrides(cfg)
		if err := Validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
		}
		return cfg, nil
	}
	return LoadConfigWithEnvOverrides(path)
}

func applyEnvOverrides(cfg *Config) {
	// Storage overrides
	if val := os.Getenv("MASKWISE_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("MASKWISE_STORAGE_SQLITE_PATH"); val != "" {
		cfg.Storage.SQLite.Path = val
	}
	if val := os.Getenv("MASKWISE_STORAGE_SQLITE_BUSY_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Storage.SQLite.BusyTimeout = d
		}
	}
	if val := os.Getenv("MASKWISE_STORAGE_MAINTENANCE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Storage.Maintenance.Enabled = b
		}
	}
	if val := os.Getenv("MASKWISE_STORAGE_MAINTENANCE_SCHEDULE"); val != "" {
		cfg.Storage.Maintenance.Schedule = val
	}

	// Audit overrides
	if val := os.Getenv("MASKWISE_AUDIT_BACKEND"); val != "" {
		cfg.Audit.Backend = val
	}
	if val := os.Getenv("MASKWISE_AUDIT_SQLITE_PATH"); val != "" {
		cfg.Audit.SQLitePath = val
	}

	// Template overrides
	if val := os.Getenv("MASKWISE_TEMPLATES_DIR"); val != "" {
		cfg.Templates.Dir = val
	}
	if val := os.Getenv("MASKWISE_TEMPLATES_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Templates.Watch = b
		}
	}

	// Telemetry overrides
	if val := os.Getenv("MASKWISE_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("MASKWISE_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("MASKWISE_LOGGING_REDACT_PII"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Logging.RedactPII = b
		}
	}
	if val := os.Getenv("MASKWISE_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}

	// Engine overrides
	if val := os.Getenv("MASKWISE_ENGINE_MAX_DOCUMENT_SIZE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Engine.MaxDocumentSize = i
		}
	}
	if val := os.Getenv("MASKWISE_ENGINE_RESERVE_DELETED_NAMES"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Engine.ReserveDeletedNames = b
		}
	}
}
