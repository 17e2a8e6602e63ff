package intakestore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/intake"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleConversation() intake.Conversation {
	return intake.Conversation{
		SessionID:     "sess-1",
		Timestamp:     time.Date(2025, 11, 13, 22, 30, 45, 123456000, time.UTC),
		Clinic:        "Medical Center - Primary Care",
		VoiceModel:    "Puck",
		GreetingStyle: "warm",
		Turns: []intake.Turn{
			{Role: intake.RoleAssistant, Text: "What brings you in today?"},
			{Role: intake.RolePatient, Text: "A cough for two weeks."},
		},
		ExtractedData: intake.Record{"chief_complaint": "cough"},
	}
}

func TestFileName(t *testing.T) {
	ts := time.Date(2025, 11, 13, 22, 30, 45, 123456000, time.UTC)
	require.Equal(t, "intake_2025-11-13T22-30-45-123456Z_abc.json", FileName(ts, "abc"))
}

func TestFileStore_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "conversations")
	store := NewFileStore(dir)

	path, err := store.Save(context.Background(), sampleConversation())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "intake_2025-11-13T22-30-45-123456Z_sess-1.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "\n  \"session_id\"")

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, "sess-1", got["session_id"])
	require.Equal(t, "Medical Center - Primary Care", got["clinic"])
	require.Equal(t, "Puck", got["voice_model"])
	require.Equal(t, "warm", got["greeting_style"])
	require.Len(t, got["conversation"], 2)
	require.Equal(t, map[string]any{"chief_complaint": "cough"}, got["extracted_data"])
	require.Equal(t, "2025-11-13T22:30:45.123456Z", got["timestamp"])
}

func TestFileStore_EmptyRecordWritesObject(t *testing.T) {
	store := NewFileStore(t.TempDir())
	conv := sampleConversation()
	conv.ExtractedData = nil
	conv.Turns = nil

	path, err := store.Save(context.Background(), conv)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, map[string]any{}, got["extracted_data"])
	require.Equal(t, []any{}, got["conversation"])
}

func TestFileStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileStore(t.TempDir()).Save(ctx, sampleConversation())
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Driver: "", Dir: t.TempDir()})
	require.NoError(t, err)
	require.IsType(t, &FileStore{}, s)

	s, err = Open(ctx, Config{Driver: "SQLite", DSN: filepath.Join(t.TempDir(), "intakes.db"), Logger: discardLogger()})
	require.NoError(t, err)
	require.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Config{Driver: "mongo"})
	require.ErrorContains(t, err, `unknown store driver "mongo"`)

	_, err = Open(ctx, Config{Driver: DriverSQLite})
	require.ErrorContains(t, err, "sqlite path is required")

	_, err = Open(ctx, Config{Driver: DriverPostgres})
	require.ErrorContains(t, err, "postgres dsn is required")
}

func TestSQLiteStore_SaveAndCount(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "intakes.db")

	store, err := OpenSQLite(ctx, path, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	id1, err := store.Save(ctx, sampleConversation())
	require.NoError(t, err)
	id2, err := store.Save(ctx, sampleConversation())
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	n, err := store.count(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	var conversation, extracted string
	err = store.db.QueryRowContext(ctx, `SELECT conversation, extracted_data FROM intakes WHERE id = ?`, id1).Scan(&conversation, &extracted)
	require.NoError(t, err)
	require.JSONEq(t, `[{"role":"assistant","text":"What brings you in today?"},{"role":"patient","text":"A cough for two weeks."}]`, conversation)
	require.JSONEq(t, `{"chief_complaint":"cough"}`, extracted)
}

func TestSQLiteStore_ReopenSkipsAppliedMigrations(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "intakes.db")

	store, err := OpenSQLite(ctx, path, discardLogger())
	require.NoError(t, err)
	_, err = store.Save(ctx, sampleConversation())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = OpenSQLite(ctx, path, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	n, err := store.count(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestPostgresStore_SaveAndCount(t *testing.T) {
	dsn := os.Getenv("INTAKE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("INTAKE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	store, err := OpenPostgres(ctx, dsn, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	conv := sampleConversation()
	conv.SessionID = "pg-" + time.Now().Format("150405.000000000")
	id, err := store.Save(ctx, conv)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	n, err := store.count(ctx, conv.SessionID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func (s *SQLiteStore) count(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM intakes WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

func (s *PostgresStore) count(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM intakes WHERE session_id = $1`, sessionID).Scan(&n)
	return n, err
}
