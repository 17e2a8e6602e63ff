// Package intakestore persists completed intakes as JSON files, SQLite rows or
// Postgres rows.
package intakestore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/intake"
)

const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store saves one conversation and returns where it went: a file path for the
// file driver, a row id for the SQL drivers.
type Store interface {
	Save(ctx context.Context, conv intake.Conversation) (string, error)
	Close() error
}

type Config struct {
	Driver string
	// Dir is the output directory of the file driver.
	Dir string
	// DSN is a SQLite path or a Postgres connection URL.
	DSN    string
	Logger *slog.Logger
}

func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverFile:
		return NewFileStore(cfg.Dir), nil
	case DriverSQLite:
		return OpenSQLite(ctx, cfg.DSN, cfg.Logger)
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN, cfg.Logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
