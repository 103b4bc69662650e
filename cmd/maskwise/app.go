package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bluewave-labs/maskwise-sub001/pkg/audit"
	"github.com/bluewave-labs/maskwise-sub001/pkg/config"
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/manager"
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/store"
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/template"
	"github.com/bluewave-labs/maskwise-sub001/pkg/telemetry/logging"
	"github.com/bluewave-labs/maskwise-sub001/pkg/telemetry/metrics"
)

// app wires the configured backends into a ready policy manager for the
// lifetime of one command.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	manager *manager.Manager

	cancel  context.CancelFunc
	closers []func() error
}

// newApp loads the configuration and constructs the manager with its
// store, audit sink, and template source.
func newApp() (*app, error) {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, err
	}

	logCfg := logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		RedactPII: cfg.Telemetry.Logging.RedactPII,
		Writer:    os.Stderr,
	}
	if verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	st, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	sink, err := a.openAuditSink(logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	templates, err := a.openTemplateSource(ctx, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.Telemetry.Metrics.Enabled {
		m = metrics.New()
	}

	mgr, err := manager.New(manager.Config{
		Store:               st,
		Audit:               sink,
		Templates:           templates,
		Metrics:             m,
		Logger:              logger,
		ReserveDeletedNames: cfg.Engine.ReserveDeletedNames,
		MaxDocumentSize:     cfg.Engine.MaxDocumentSize,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.manager = mgr
	return a, nil
}

func (a *app) openStore(ctx context.Context) (manager.Store, error) {
	switch a.cfg.Storage.Backend {
	case "memory":
		ms := store.NewMemoryStore()
		if err := template.Seed(ctx, ms); err != nil {
			return nil, err
		}
		return ms, nil

	case "sqlite":
		ss, err := store.NewSQLiteStoreWithConfig(store.SQLiteConfig{
			Path:        a.cfg.Storage.SQLite.Path,
			BusyTimeout: a.cfg.Storage.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, ss.Close)
		if err := template.Seed(ctx, ss); err != nil {
			return nil, err
		}

		if a.cfg.Storage.Maintenance.Enabled {
			maint := store.NewMaintenance(ss, a.cfg.Storage.Maintenance.Schedule)
			if err := maint.Start(ctx); err != nil {
				return nil, err
			}
		}
		return ss, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
}

func (a *app) openAuditSink(logger *slog.Logger) (audit.Sink, error) {
	switch a.cfg.Audit.Backend {
	case "log":
		return audit.NewLogSink(logger), nil
	case "memory":
		return audit.NewMemorySink(), nil
	case "sqlite":
		sink, err := audit.NewSQLiteSink(a.cfg.Audit.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sink.Close)
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown audit backend %q", a.cfg.Audit.Backend)
	}
}

// openTemplateSource returns a file source when a template directory is
// configured, otherwise nil so the manager falls back to the store's
// seeded templates.
func (a *app) openTemplateSource(ctx context.Context, logger *slog.Logger) (manager.TemplateSource, error) {
	if a.cfg.Templates.Dir == "" {
		return nil, nil
	}
	fs, err := template.NewFileSource(a.cfg.Templates.Dir, logger)
	if err != nil {
		return nil, err
	}
	if a.cfg.Templates.Watch {
		go func() {
			if err := fs.Watch(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("template watcher stopped", "error", err)
			}
		}()
	}
	return fs, nil
}

// Close releases every backend opened by newApp.
func (a *app) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
}
