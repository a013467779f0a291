package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"genstudio/internal/config"
)

// ErrNotRecorded reports a lookup for a job the ledger never saw.
var ErrNotRecorded = errors.New("generation not recorded")

// Store manages the generation ledger backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// RecordStart inserts a new ledger row for a submitted job.
func (s *Store) RecordStart(ctx context.Context, jobID, operation, template, server string) (*Generation, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO generations (job_id, operation, template, server, state, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		jobID, operation, template, server, "created", timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert generation: %w", err)
	}
	return s.GetByJobID(ctx, jobID)
}

// RecordResult finalizes a job's ledger row with its terminal state.
func (s *Store) RecordResult(ctx context.Context, jobID, state, artifact, message string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE generations SET state = ?, artifact = ?, message = ?, updated_at = ? WHERE job_id = ?`,
		state, nullableString(artifact), nullableString(message), timestamp, jobID,
	)
	if err != nil {
		return fmt.Errorf("update generation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotRecorded, jobID)
	}
	return nil
}

// GetByJobID returns the ledger row for a job id.
func (s *Store) GetByJobID(ctx context.Context, jobID string) (*Generation, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, job_id, operation, template, server, state, artifact, message, created_at, updated_at
         FROM generations WHERE job_id = ?`,
		jobID,
	)
	gen, err := scanGeneration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotRecorded, jobID)
	}
	return gen, err
}

// List returns up to limit rows, newest first. A non-positive limit returns
// everything.
func (s *Store) List(ctx context.Context, limit int) ([]Generation, error) {
	query := `SELECT id, job_id, operation, template, server, state, artifact, message, created_at, updated_at
              FROM generations ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer rows.Close()

	var generations []Generation
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		generations = append(generations, *gen)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generations: %w", err)
	}
	return generations, nil
}

// Clear removes every ledger row.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM generations"); err != nil {
		return fmt.Errorf("clear generations: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row rowScanner) (*Generation, error) {
	var (
		gen       Generation
		artifact  sql.NullString
		message   sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(
		&gen.ID, &gen.JobID, &gen.Operation, &gen.Template, &gen.Server,
		&gen.State, &artifact, &message, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	gen.Artifact = artifact.String
	gen.Message = message.String
	if gen.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if gen.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &gen, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
