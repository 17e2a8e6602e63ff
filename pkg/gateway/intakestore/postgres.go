package intakestore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/intake"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool and applies pending migrations through a
// database/sql handle borrowed from it.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	err = migrate(ctx, db, goose.DialectPostgres, "migrations/postgres", logger)
	_ = db.Close()
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Save(ctx context.Context, conv intake.Conversation) (string, error) {
	row, err := newRow(conv)
	if err != nil {
		return "", err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO intakes (id, session_id, created_at, clinic, voice_model, greeting_style, conversation, extracted_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb)
	`, row.id, row.sessionID, row.createdAt, row.clinic, row.voice, row.style,
		string(row.conversation), string(row.extracted))
	if err != nil {
		return "", fmt.Errorf("insert intake: %w", err)
	}
	return row.id, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
