package intakestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/intake"
)

// FileStore writes one indented JSON document per intake.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	if strings.TrimSpace(dir) == "" {
		dir = "conversations"
	}
	return &FileStore{dir: dir}
}

func (s *FileStore) Save(ctx context.Context, conv intake.Conversation) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	conv = conv.Normalized()

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode intake: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create intake dir: %w", err)
	}
	path := filepath.Join(s.dir, FileName(conv.Timestamp, conv.SessionID))
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write intake: %w", err)
	}
	return path, nil
}

func (s *FileStore) Close() error { return nil }

var fileNameReplacer = strings.NewReplacer(":", "-", ".", "-")

// FileName is intake_<timestamp>_<session>.json with the timestamp made safe
// for file systems that reject ':'.
func FileName(ts time.Time, sessionID string) string {
	stamp := ts.UTC().Format("2006-01-02T15:04:05.000000Z")
	return "intake_" + fileNameReplacer.Replace(stamp) + "_" + sessionID + ".json"
}
