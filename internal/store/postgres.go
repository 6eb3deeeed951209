package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/MeKo-Tech/bubblegrade/internal/logging"
	"github.com/MeKo-Tech/bubblegrade/internal/scan"
)

// PostgresConfig holds connection settings for the Postgres store.
type PostgresConfig struct {
	URL      string `mapstructure:"url" yaml:"url" json:"url"`
	MaxConns int32  `mapstructure:"max_conns" yaml:"max_conns" json:"max_conns"`
}

// Validate checks the configuration for consistency.
func (c PostgresConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("max_conns must not be negative, got %d", c.MaxConns)
	}
	return nil
}

const scansSchema = `
CREATE TABLE IF NOT EXISTS scans (
	id UUID PRIMARY KEY,
	filename TEXT NOT NULL,
	status TEXT NOT NULL,
	payload JSONB NOT NULL,
	upload_time TIMESTAMPTZ NOT NULL,
	processed_time TIMESTAMPTZ
)`

// Postgres persists scan records in a scans table. The full record is
// stored as a JSONB payload next to the columns queries filter on.
type Postgres struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgres connects a store to the configured database.
func NewPostgres(ctx context.Context, config PostgresConfig) (*Postgres, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}
	poolConfig, err := pgxpool.ParseConfig(config.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Postgres{
		pool: pool,
		log:  logging.WithComponent("store"),
	}, nil
}

// EnsureSchema creates the scans table when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, scansSchema); err != nil {
		return &PersistenceError{Op: "ensure schema", Err: err}
	}
	return nil
}

// Ping verifies database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return &PersistenceError{Op: "ping", Err: err}
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Create inserts a new record.
func (p *Postgres) Create(ctx context.Context, result *scan.Result) error {
	if result == nil {
		return &PersistenceError{Op: "create", Err: fmt.Errorf("nil scan")}
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return &PersistenceError{Op: "create", Err: err}
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO scans (id, filename, status, payload, upload_time, processed_time)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		result.ID, result.Filename, string(result.Status), payload, result.UploadTime, result.ProcessedTime,
	)
	if err != nil {
		return &PersistenceError{Op: "create", Err: err}
	}
	return nil
}

// Get returns the record for id, or ErrNotFound.
func (p *Postgres) Get(ctx context.Context, id uuid.UUID) (*scan.Result, error) {
	var payload []byte
	err := p.pool.QueryRow(ctx, `SELECT payload FROM scans WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get", Err: err}
	}
	var result scan.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, &PersistenceError{Op: "get", Err: err}
	}
	return &result, nil
}

// Update overwrites an existing record, or returns ErrNotFound.
func (p *Postgres) Update(ctx context.Context, result *scan.Result) error {
	if result == nil {
		return &PersistenceError{Op: "update", Err: fmt.Errorf("nil scan")}
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return &PersistenceError{Op: "update", Err: err}
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE scans SET filename = $2, status = $3, payload = $4, processed_time = $5 WHERE id = $1`,
		result.ID, result.Filename, string(result.Status), payload, result.ProcessedTime,
	)
	if err != nil {
		return &PersistenceError{Op: "update", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
