package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	policyerrors "github.com/bluewave-labs/maskwise-sub001/pkg/policy/errors"
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/manager"
)

// SQLiteStore implements manager.Store on a SQLite database. WAL mode
// and a single-writer connection pool serialize concurrent writes; a
// partial unique index on active policy names provides the true
// uniqueness constraint the engine's pre-check relies on; real
// transactions back the unit of work.
type SQLiteStore struct {
	db *sql.DB
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// NewSQLiteStore opens (creating if needed) the policy database at path
// with default settings.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteConfig{Path: path})
}

// NewSQLiteStoreWithConfig opens the policy database with custom
// configuration.
func NewSQLiteStoreWithConfig(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS policies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		config TEXT NOT NULL,
		version TEXT NOT NULL,
		active INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_policies_active_name
		ON policies(name) WHERE active = 1;
	CREATE INDEX IF NOT EXISTS idx_policies_name ON policies(name);

	CREATE TABLE IF NOT EXISTS policy_versions (
		id TEXT PRIMARY KEY,
		policy_id TEXT NOT NULL REFERENCES policies(id),
		version TEXT NOT NULL,
		config TEXT NOT NULL,
		changelog TEXT NOT NULL,
		active INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_versions_policy ON policy_versions(policy_id);

	CREATE TABLE IF NOT EXISTS policy_templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL,
		config TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// WithinTx implements manager.Store with a real database transaction.
func (s *SQLiteStore) WithinTx(ctx context.Context, fn func(tx manager.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (after: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FindActiveByName implements manager.Store.
func (s *SQLiteStore) FindActiveByName(ctx context.Context, name string) (*manager.Policy, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, config, version, active, created_at, updated_at
		FROM policies WHERE name = ? AND active = 1
	`, name)
	return scanPolicy(row)
}

// FindByName implements manager.Store.
func (s *SQLiteStore) FindByName(ctx context.Context, name string) (*manager.Policy, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, config, version, active, created_at, updated_at
		FROM policies WHERE name = ?
		ORDER BY updated_at DESC, active DESC LIMIT 1
	`, name)
	return scanPolicy(row)
}

// FindByID implements manager.Store.
func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*manager.Policy, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, config, version, active, created_at, updated_at
		FROM policies WHERE id = ?
	`, id)
	return scanPolicy(row)
}

// List implements manager.Store.
func (s *SQLiteStore) List(ctx context.Context, opts manager.ListOptions) (*manager.PolicyPage, error) {
	var conds []string
	var args []any
	if opts.ActiveOnly {
		conds = append(conds, "active = 1")
	}
	if opts.Search != "" {
		conds = append(conds, "(name LIKE ? ESCAPE '\\' OR description LIKE ? ESCAPE '\\')")
		pattern := "%" + escapeLike(opts.Search) + "%"
		args = append(args, pattern, pattern)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	page := &manager.PolicyPage{Page: opts.Page, Limit: opts.Limit}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM policies"+where, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count policies: %w", err)
	}

	query := `
		SELECT id, name, description, config, version, active, created_at, updated_at
		FROM policies` + where + `
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, (opts.Page-1)*opts.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPolicyRow(rows)
		if err != nil {
			return nil, err
		}
		page.Policies = append(page.Policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policies: %w", err)
	}
	return page, nil
}

// ListVersions implements manager.Store.
func (s *SQLiteStore) ListVersions(ctx context.Context, policyID string) ([]*manager.PolicyVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, policy_id, version, config, changelog, active, created_at
		FROM policy_versions WHERE policy_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, policyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []*manager.PolicyVersion
	for rows.Next() {
		var (
			v         manager.PolicyVersion
			config    string
			active    int
			createdAt int64
		)
		if err := rows.Scan(&v.ID, &v.PolicyID, &v.Version, &config, &v.Changelog, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		if err := json.Unmarshal([]byte(config), &v.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal version config: %w", err)
		}
		v.Active = active == 1
		v.CreatedAt = time.Unix(createdAt, 0).UTC()
		versions = append(versions, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}
	return versions, nil
}

// ListTemplates implements manager.Store.
func (s *SQLiteStore) ListTemplates(ctx context.Context) ([]*manager.Template, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, description, config
		FROM policy_templates ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*manager.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}
	return templates, nil
}

// FindTemplateByID implements manager.Store.
func (s *SQLiteStore) FindTemplateByID(ctx context.Context, id string) (*manager.Template, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, description, config
		FROM policy_templates WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find template: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanTemplate(rows)
}

// SaveTemplate implements manager.Store.
func (s *SQLiteStore) SaveTemplate(ctx context.Context, tpl *manager.Template) error {
	config, err := json.Marshal(tpl.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal template config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO policy_templates (id, name, category, description, config)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			description = excluded.description,
			config = excluded.config
	`, tpl.ID, tpl.Name, tpl.Category, tpl.Description, string(config))
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}

// Close implements manager.Store.
func (s *SQLiteStore) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// DB exposes the underlying handle for scheduled maintenance.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// sqliteTx is the write surface inside a database transaction.
type sqliteTx struct {
	tx *sql.Tx
}

// CreateWithInitialVersion implements manager.Tx.
func (t *sqliteTx) CreateWithInitialVersion(ctx context.Context, policy *manager.Policy, version *manager.PolicyVersion) error {
	if err := t.insertPolicy(ctx, policy); err != nil {
		return err
	}
	return t.insertVersion(ctx, version)
}

// UpdatePolicyAndVersions implements manager.Tx.
func (t *sqliteTx) UpdatePolicyAndVersions(ctx context.Context, policy *manager.Policy, newVersion *manager.PolicyVersion) error {
	config, err := json.Marshal(policy.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal policy config: %w", err)
	}

	res, err := t.tx.ExecContext(ctx, `
		UPDATE policies SET name = ?, description = ?, config = ?, version = ?, active = ?, updated_at = ?
		WHERE id = ?
	`, policy.Name, policy.Description, string(config), policy.Version,
		boolToInt(policy.Active), policy.UpdatedAt.Unix(), policy.ID)
	if err != nil {
		return mapConstraintError(err, policy.Name)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return &policyerrors.NotFoundError{Resource: "policy", ID: policy.ID}
	}

	if newVersion == nil {
		return nil
	}

	if _, err := t.tx.ExecContext(ctx,
		"UPDATE policy_versions SET active = 0 WHERE policy_id = ? AND active = 1",
		policy.ID); err != nil {
		return fmt.Errorf("failed to deactivate current version: %w", err)
	}
	return t.insertVersion(ctx, newVersion)
}

func (t *sqliteTx) insertPolicy(ctx context.Context, policy *manager.Policy) error {
	config, err := json.Marshal(policy.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal policy config: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO policies (id, name, description, config, version, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, policy.ID, policy.Name, policy.Description, string(config), policy.Version,
		boolToInt(policy.Active), policy.CreatedAt.Unix(), policy.UpdatedAt.Unix())
	if err != nil {
		return mapConstraintError(err, policy.Name)
	}
	return nil
}

func (t *sqliteTx) insertVersion(ctx context.Context, version *manager.PolicyVersion) error {
	config, err := json.Marshal(version.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal version config: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO policy_versions (id, policy_id, version, config, changelog, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, version.ID, version.PolicyID, version.Version, string(config),
		version.Changelog, boolToInt(version.Active), version.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert version: %w", err)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row *sql.Row) (*manager.Policy, error) {
	p, err := scanPolicyRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func scanPolicyRow(row rowScanner) (*manager.Policy, error) {
	var (
		p         manager.Policy
		config    string
		active    int
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &config, &p.Version, &active, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan policy: %w", err)
	}
	if err := json.Unmarshal([]byte(config), &p.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal policy config: %w", err)
	}
	p.Active = active == 1
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &p, nil
}

func scanTemplate(rows *sql.Rows) (*manager.Template, error) {
	var (
		tpl    manager.Template
		config string
	)
	if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Category, &tpl.Description, &config); err != nil {
		return nil, fmt.Errorf("failed to scan template: %w", err)
	}
	if err := json.Unmarshal([]byte(config), &tpl.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template config: %w", err)
	}
	return &tpl, nil
}

// mapConstraintError turns a violation of the active-name unique index
// into the engine's ConflictError.
func mapConstraintError(err error, name string) error {
	var serr *sqlite.Error
	if errors.As(err, &serr) && serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		// idx_policies_active_name is the schema's only UNIQUE index, so
		// this code can only mean an active-name collision.
		return &policyerrors.ConflictError{Name: name}
	}
	return fmt.Errorf("failed to write policy: %w", err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// escapeLike escapes LIKE wildcards in user-supplied search text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
