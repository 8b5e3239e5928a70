package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sweetpotato0/reasonchain/config"
	errorspkg "github.com/sweetpotato0/reasonchain/errors"
	"github.com/sweetpotato0/reasonchain/history"
)

// PostgresStore implements history.Store using PostgreSQL. A serial column
// provides the submission order.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed trace store
func NewPostgresStore(cfg *config.PostgresConfig) (*PostgresStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("postgres config cannot be nil")
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &PostgresStore{db: db}

	if err := store.createTable(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return store, nil
}

// createTable creates the traces table if it doesn't exist
func (s *PostgresStore) createTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS reasoning_traces (
		seq BIGSERIAL PRIMARY KEY,
		id VARCHAR(64) NOT NULL,
		content TEXT NOT NULL,
		token_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);
	`

	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Append adds a trace to the end of the history.
func (s *PostgresStore) Append(ctx context.Context, trace *history.Trace) error {
	if trace == nil {
		return fmt.Errorf("trace cannot be nil")
	}

	if trace.CreatedAt.IsZero() {
		trace.CreatedAt = time.Now()
	}

	query := `
	INSERT INTO reasoning_traces (id, content, token_count, created_at)
	VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query,
		trace.ID, trace.Content, trace.TokenCount, trace.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert trace: %w", err)
	}
	return nil
}

// Last returns the most recently appended trace.
func (s *PostgresStore) Last(ctx context.Context) (*history.Trace, error) {
	query := `
	SELECT id, content, token_count, created_at
	FROM reasoning_traces
	ORDER BY seq DESC
	LIMIT 1
	`
	var trace history.Trace
	err := s.db.QueryRowContext(ctx, query).Scan(
		&trace.ID, &trace.Content, &trace.TokenCount, &trace.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errorspkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last trace: %w", err)
	}
	return &trace, nil
}

// Len returns the number of traces in the history.
func (s *PostgresStore) Len(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reasoning_traces`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count traces: %w", err)
	}
	return count, nil
}

// List returns all traces in submission order.
func (s *PostgresStore) List(ctx context.Context) ([]*history.Trace, error) {
	query := `
	SELECT id, content, token_count, created_at
	FROM reasoning_traces
	ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}
	defer rows.Close()

	traces := make([]*history.Trace, 0)
	for rows.Next() {
		var trace history.Trace
		if err := rows.Scan(&trace.ID, &trace.Content, &trace.TokenCount, &trace.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trace: %w", err)
		}
		traces = append(traces, &trace)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate traces: %w", err)
	}
	return traces, nil
}

// Clear removes all traces.
func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `TRUNCATE reasoning_traces`); err != nil {
		return fmt.Errorf("failed to clear traces: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
