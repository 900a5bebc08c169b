// Package history records every orchestrated extraction run.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spherical/pdf-inspector/internal/config"
	"github.com/spherical/pdf-inspector/internal/domain"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Run status values.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one recorded extraction.
type Run struct {
	ID              uuid.UUID        `json:"id"`
	Document        string           `json:"document"`
	Backend         domain.Backend   `json:"backend"`
	RequestedMode   domain.Mode      `json:"requested_mode"`
	EffectiveMode   domain.Mode      `json:"effective_mode"`
	FallbackApplied bool             `json:"fallback_applied"`
	Status          string           `json:"status"`
	ErrorKind       domain.ErrorKind `json:"error_kind,omitempty"`
	Tables          int              `json:"tables"`
	DurationMS      int64            `json:"duration_ms"`
	CreatedAt       time.Time        `json:"created_at"`
}

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Store persists runs. Both drivers accept the same $n placeholders.
type Store struct {
	db DB
}

// NewStore wraps an open database. Call Migrate before use.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Open connects using the database section of the configuration.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		db, err = sql.Open("postgres", cfg.Postgres.DSN)
		if err == nil {
			db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
			db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
		}
	case "sqlite", "":
		db, err = sql.Open("sqlite3", cfg.SQLite.Path)
		if err == nil {
			db.SetMaxOpenConns(max(cfg.SQLite.MaxOpenConns, 1))
		}
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown database driver %q", cfg.Driver), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS extraction_runs (
	id               TEXT PRIMARY KEY,
	document         TEXT NOT NULL,
	backend          TEXT NOT NULL,
	requested_mode   TEXT NOT NULL,
	effective_mode   TEXT NOT NULL,
	fallback_applied BOOLEAN NOT NULL DEFAULT FALSE,
	status           TEXT NOT NULL,
	error_kind       TEXT NOT NULL DEFAULT '',
	tables_found     INTEGER NOT NULL DEFAULT 0,
	duration_ms      BIGINT NOT NULL DEFAULT 0,
	created_at       TIMESTAMP NOT NULL
)`

const index = `CREATE INDEX IF NOT EXISTS idx_extraction_runs_created_at ON extraction_runs (created_at)`

// Migrate creates the schema if needed.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range []string{schema, index} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate history: %w", err)
		}
	}
	return nil
}

// Record inserts a run, assigning an ID and timestamp when unset.
func (s *Store) Record(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO extraction_runs (id, document, backend, requested_mode, effective_mode,
			fallback_applied, status, error_kind, tables_found, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID.String(), run.Document, string(run.Backend), string(run.RequestedMode), string(run.EffectiveMode),
		run.FallbackApplied, run.Status, string(run.ErrorKind), run.Tables, run.DurationMS, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

const selectRun = `
	SELECT id, document, backend, requested_mode, effective_mode,
		fallback_applied, status, error_kind, tables_found, duration_ms, created_at
	FROM extraction_runs`

// Get retrieves one run.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, selectRun+` WHERE id = $1`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// Recent lists the newest runs first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run                                 Run
		id, backend, reqMode, effMode, kind string
	)
	err := row.Scan(&id, &run.Document, &backend, &reqMode, &effMode,
		&run.FallbackApplied, &run.Status, &kind, &run.Tables, &run.DurationMS, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	run.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	run.Backend = domain.Backend(backend)
	run.RequestedMode = domain.Mode(reqMode)
	run.EffectiveMode = domain.Mode(effMode)
	run.ErrorKind = domain.ErrorKind(kind)
	return &run, nil
}
