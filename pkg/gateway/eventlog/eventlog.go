// Package eventlog writes an append-only newline-delimited JSON record of one
// live session's lifecycle and control events.
package eventlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Config struct {
	Enabled   bool
	Dir       string
	SessionID string
	Voice     string
	Now       func() time.Time
	Logger    *slog.Logger
}

type metadata struct {
	SessionID string `json:"session_id"`
	StartedAt string `json:"started_at"`
	Voice     string `json:"voice"`
}

type entry struct {
	Timestamp string         `json:"timestamp"`
	Event     string         `json:"event"`
	Data      map[string]any `json:"data"`
}

// Logger is safe for concurrent use. A nil *Logger discards everything.
type Logger struct {
	cfg Config

	mu      sync.Mutex
	path    string
	opened  bool
	failed  bool
	warned  bool
	started time.Time
}

func New(cfg Config) *Logger {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Logger{cfg: cfg}
}

// Path returns the log file path, or "" before the first write.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// Log appends one event. Failures are reported once through slog and never
// returned.
func (l *Logger) Log(event string, data map[string]any) {
	if l == nil || !l.cfg.Enabled {
		return
	}
	if data == nil {
		data = map[string]any{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.opened {
		l.opened = true
		if err := l.create(); err != nil {
			l.failed = true
			l.warn("unable to initialize session log", err)
		}
	}
	if l.failed {
		return
	}

	line, err := json.Marshal(entry{
		Timestamp: formatTime(l.cfg.Now()),
		Event:     event,
		Data:      data,
	})
	if err != nil {
		l.warn("unable to encode session log entry", err)
		return
	}
	if err := appendLine(l.path, line); err != nil {
		l.warn("unable to write session log entry", err)
	}
}

func (l *Logger) create() error {
	if err := os.MkdirAll(l.cfg.Dir, 0o755); err != nil {
		return err
	}
	l.started = l.cfg.Now().UTC()
	name := fmt.Sprintf("session_%s_%s.log", l.started.Format("20060102T150405"), l.cfg.SessionID)
	l.path = filepath.Join(l.cfg.Dir, name)

	line, err := json.Marshal(metadata{
		SessionID: l.cfg.SessionID,
		StartedAt: formatTime(l.started),
		Voice:     l.cfg.Voice,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, append(line, '\n'), 0o644)
}

func (l *Logger) warn(msg string, err error) {
	if l.warned {
		return
	}
	l.warned = true
	l.cfg.Logger.Warn(msg, "session_id", l.cfg.SessionID, "error", err)
}

func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z")
}
