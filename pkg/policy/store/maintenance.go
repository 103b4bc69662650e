package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Maintenance runs periodic housekeeping on a SQLite store: WAL
// checkpoints and query-planner statistics refresh. Policy data is never
// touched; versions are append-only and stay forever.
type Maintenance struct {
	store    *SQLiteStore
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewMaintenance creates a maintenance runner with a cron schedule
// (standard five-field syntax, e.g. "0 3 * * *" for daily at 3 AM).
func NewMaintenance(store *SQLiteStore, schedule string) *Maintenance {
	return &Maintenance{
		store:    store,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "policy.store.maintenance"),
	}
}

// Start begins scheduled maintenance. An empty schedule disables it.
func (m *Maintenance) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.schedule == "" {
		m.logger.Info("maintenance schedule not configured, skipping")
		return nil
	}

	if _, err := cron.ParseStandard(m.schedule); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", m.schedule, err)
	}

	if _, err := m.cron.AddFunc(m.schedule, m.run); err != nil {
		return fmt.Errorf("failed to schedule maintenance: %w", err)
	}

	m.cron.Start()
	m.running = true
	m.logger.Info("store maintenance started", "schedule", m.schedule)

	go func() {
		<-ctx.Done()
		m.Stop()
	}()
	return nil
}

// Stop halts scheduled maintenance and waits for a running job.
func (m *Maintenance) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	<-m.cron.Stop().Done()
	m.running = false
	m.logger.Info("store maintenance stopped")
}

func (m *Maintenance) run() {
	if _, err := m.store.DB().Exec("PRAGMA wal_checkpoint(PASSIVE)"); err != nil {
		m.logger.Warn("WAL checkpoint failed", "error", err)
	}
	if _, err := m.store.DB().Exec("PRAGMA optimize"); err != nil {
		m.logger.Warn("statistics refresh failed", "error", err)
	}
	m.logger.Debug("store maintenance cycle completed")
}
