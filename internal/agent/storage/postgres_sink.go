package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"AppStatus/internal/agent/domain"
	"AppStatus/internal/config"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPostgres(ctx context.Context, cfg *config.DatabaseConfig, log *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.GetDNS())
	if err != nil {
		log.Error("Failed to open connection to postgres", "error", err)
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		log.Error("Failed to ping database", "error", err)
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	log.Info("Successfully connected to postgres database")
	return pool, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

const createRecordsTable = `
	CREATE TABLE IF NOT EXISTS application_records (
		id         UUID PRIMARY KEY,
		source     TEXT NOT NULL,
		topic      TEXT NOT NULL,
		emitted_at TIMESTAMPTZ NOT NULL,
		value      JSONB NOT NULL
	)
`

// PostgresSink stores every record as one row of application_records.
type PostgresSink struct {
	db     execer
	source string
}

func NewPostgresSink(db execer, source string) *PostgresSink {
	return &PostgresSink{db: db, source: source}
}

func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createRecordsTable); err != nil {
		return fmt.Errorf("failed to create application_records: %w", err)
	}
	return nil
}

func (s *PostgresSink) Emit(ctx context.Context, record domain.Record) error {
	env := NewEnvelope(s.source, record)

	valueJSON, err := json.Marshal(env.Value)
	if err != nil {
		return fmt.Errorf("failed to marshal record value: %w", err)
	}

	query := `
		INSERT INTO application_records (id, source, topic, emitted_at, value)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = s.db.Exec(ctx, query,
		env.ID,
		env.Source,
		env.Topic,
		env.EmittedAt,
		valueJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s record: %w", env.Topic, err)
	}

	return nil
}
