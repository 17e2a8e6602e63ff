package intakestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/intake"
)

type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies pending
// migrations.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrate(ctx, db, goose.DialectSQLite3, "migrations/sqlite", logger); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, conv intake.Conversation) (string, error) {
	row, err := newRow(conv)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO intakes (id, session_id, created_at, clinic, voice_model, greeting_style, conversation, extracted_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, row.id, row.sessionID, row.createdAt.Format(time.RFC3339Nano), row.clinic, row.voice, row.style,
		string(row.conversation), string(row.extracted))
	if err != nil {
		return "", fmt.Errorf("insert intake: %w", err)
	}
	return row.id, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type row struct {
	id           string
	sessionID    string
	createdAt    time.Time
	clinic       string
	voice        string
	style        string
	conversation []byte
	extracted    []byte
}

func newRow(conv intake.Conversation) (row, error) {
	conv = conv.Normalized()
	turns, err := json.Marshal(conv.Turns)
	if err != nil {
		return row{}, fmt.Errorf("encode conversation: %w", err)
	}
	extracted, err := json.Marshal(conv.ExtractedData)
	if err != nil {
		return row{}, fmt.Errorf("encode extracted data: %w", err)
	}
	return row{
		id:           uuid.NewString(),
		sessionID:    conv.SessionID,
		createdAt:    conv.Timestamp,
		clinic:       conv.Clinic,
		voice:        conv.VoiceModel,
		style:        conv.GreetingStyle,
		conversation: turns,
		extracted:    extracted,
	}, nil
}
