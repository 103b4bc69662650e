package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink persists audit events in a SQLite database. Events are
// append-only; nothing in this package deletes them.
type SQLiteSink struct {
	db     *sql.DB
	logger *slog.Logger

	mu         sync.Mutex
	insertStmt *sql.Stmt
}

// NewSQLiteSink opens (creating if needed) the audit database at path.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		details TEXT,
		recorded_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_resource ON audit_events(resource_type, resource_id);
	CREATE INDEX IF NOT EXISTS idx_audit_recorded_at ON audit_events(recorded_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	insertStmt, err := db.Prepare(`
		INSERT INTO audit_events (actor_id, action, resource_type, resource_id, details, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare audit insert: %w", err)
	}

	return &SQLiteSink{
		db:         db,
		logger:     slog.Default().With("component", "audit.sqlite"),
		insertStmt: insertStmt,
	}, nil
}

// Record implements Sink.
func (s *SQLiteSink) Record(ctx context.Context, event Event) error {
	var details []byte
	if len(event.Details) > 0 {
		var err error
		details, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.insertStmt.ExecContext(ctx,
		event.ActorID,
		string(event.Action),
		event.ResourceType,
		event.ResourceID,
		string(details),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertStmt != nil {
		s.insertStmt.Close()
	}
	return s.db.Close()
}
