package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/openlosa/losa/pkg/loan"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
	cfg  Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		path: cfg.Path,
		cfg:  cfg,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	// Open database with SQLite-specific connection parameters
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	// Verify connection and set PRAGMAs
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Create persists a new application snapshot at version 1 together with
// its intake audit entries, in one transaction.
func (s *SQLiteStore) Create(ctx context.Context, app *loan.Application, entries []loan.AuditLogEntry) error {
	snapshot := app.Clone()
	snapshot.Version = 1

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal application: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO applications (id, version, status, snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		snapshot.ID,
		snapshot.Version,
		snapshot.Status,
		string(raw),
		snapshot.CreatedAt.UTC(),
		snapshot.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	if err := s.appendEntriesTx(ctx, tx, snapshot.ID, 0, entries); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	app.Version = 1
	return nil
}

// Load retrieves the current snapshot for an application.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*loan.Application, error) {
	query := `SELECT snapshot FROM applications WHERE id = ?`

	var raw string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load application: %w", err)
	}

	app := &loan.Application{}
	if err := json.Unmarshal([]byte(raw), app); err != nil {
		return nil, fmt.Errorf("failed to unmarshal application: %w", err)
	}
	return app, nil
}

// CommitTransition atomically writes the new snapshot and audit entries,
// guarded by the optimistic version check. The UPDATE's WHERE clause
// carries the expected version; zero rows affected means the snapshot
// moved underneath us and nothing is written.
func (s *SQLiteStore) CommitTransition(ctx context.Context, id string, expectedVersion int64, app *loan.Application, entries []loan.AuditLogEntry) error {
	snapshot := app.Clone()
	snapshot.Version = expectedVersion + 1

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal application: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		UPDATE applications
		SET version = ?, status = ?, snapshot = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`
	result, err := tx.ExecContext(ctx, query,
		snapshot.Version,
		snapshot.Status,
		string(raw),
		snapshot.UpdatedAt.UTC(),
		id,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Distinguish a missing application from a stale version.
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check application existence: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	var lastSeq int64
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM audit_log WHERE application_id = ?`, id).Scan(&lastSeq)
	if err != nil {
		return fmt.Errorf("failed to read audit sequence: %w", err)
	}

	if err := s.appendEntriesTx(ctx, tx, id, lastSeq, entries); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	app.Version = snapshot.Version
	return nil
}

// AuditTrail retrieves the application's audit entries in commit order.
func (s *SQLiteStore) AuditTrail(ctx context.Context, id string) ([]loan.AuditLogEntry, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications WHERE id = ?`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check application existence: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	query := `
		SELECT entry
		FROM audit_log
		WHERE application_id = ?
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	entries := []loan.AuditLogEntry{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		var entry loan.AuditLogEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}

// ListByStatus lists applications in the given status with pagination.
func (s *SQLiteStore) ListByStatus(ctx context.Context, status loan.Status, limit, offset int) ([]*loan.Application, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT snapshot
		FROM applications
		WHERE status = ?
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	apps := []*loan.Application{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		app := &loan.Application{}
		if err := json.Unmarshal([]byte(raw), app); err != nil {
			return nil, fmt.Errorf("failed to unmarshal application: %w", err)
		}
		apps = append(apps, app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating applications: %w", err)
	}

	return apps, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

// appendEntriesTx inserts audit entries inside the commit transaction,
// assigning sequence numbers after lastSeq.
func (s *SQLiteStore) appendEntriesTx(ctx context.Context, tx *sql.Tx, id string, lastSeq int64, entries []loan.AuditLogEntry) error {
	query := `
		INSERT INTO audit_log (application_id, seq, entry_id, stage, actor, action, entry, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	seq := lastSeq
	for _, entry := range entries {
		seq++
		entry.Sequence = seq
		entry.ApplicationID = id
		if entry.RecordedAt.IsZero() {
			entry.RecordedAt = time.Now().UTC()
		}

		raw, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal audit entry: %w", err)
		}

		_, err = tx.ExecContext(ctx, query,
			id,
			seq,
			entry.ID,
			entry.Stage,
			entry.Actor,
			entry.Action,
			string(raw),
			entry.RecordedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}
	}
	return nil
}
