// Package extract turns a finalized conversation into a structured intake
// record through a secondary JSON-only model call.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/intake"
)

// MinTurns is the shortest history worth a remote call.
const MinTurns = 2

type Kind int

const (
	// Empty means no extraction has ever succeeded and this attempt produced nothing.
	Empty Kind = iota
	// Fresh carries a record parsed from this call.
	Fresh
	// Stale carries the last successful record because this call was skipped or failed.
	Stale
)

func (k Kind) String() string {
	switch k {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "empty"
	}
}

type Result struct {
	Kind   Kind
	Record intake.Record
}

// Generator issues one prompt and returns the raw JSON text of the answer.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EventSink receives extraction events for the session log.
type EventSink interface {
	Log(event string, data map[string]any)
}

// Observer receives the outcome and latency of every remote call.
type Observer interface {
	ObserveExtraction(trigger, outcome string, d time.Duration)
}

type Config struct {
	Generator Generator
	Timeout   time.Duration
	Logger    *slog.Logger
	Events    EventSink
	Observer  Observer
	Now       func() time.Time
}

// Client keeps the last successful record and falls back to it on failure.
// Calls are expected to be serialized by the caller; the cache is still
// guarded so readers on other goroutines see a consistent value.
type Client struct {
	gen      Generator
	timeout  time.Duration
	logger   *slog.Logger
	events   EventSink
	observer Observer
	now      func() time.Time

	mu        sync.Mutex
	cached    intake.Record
	succeeded bool
}

func New(cfg Config) (*Client, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Client{
		gen:      cfg.Generator,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
		events:   cfg.Events,
		observer: cfg.Observer,
		now:      cfg.Now,
	}, nil
}

// Extract never returns an error: failures degrade to the cached record.
func (c *Client) Extract(ctx context.Context, trigger string, history []intake.Turn) Result {
	if len(history) < MinTurns {
		c.logger.Debug("extraction skipped", "reason", "insufficient_history", "entries", len(history))
		c.logEvent("extraction_skipped", map[string]any{"reason": "insufficient_history", "entries": len(history)})
		return c.fallback()
	}

	prompt := BuildPrompt(BuildTranscript(history))
	c.logEvent("extraction_started", map[string]any{"entries": len(history)})

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := c.now()
	record, err := c.generate(callCtx, prompt)
	elapsed := c.now().Sub(start)
	if err != nil {
		c.logger.Warn("extraction failed, using cached record", "error", err)
		c.logEvent("extraction_error", map[string]any{"error": err.Error()})
		res := c.fallback()
		c.observe(trigger, res.Kind, elapsed)
		return res
	}

	// An empty object still leaves the fallback armed.
	if !record.IsEmpty() {
		c.mu.Lock()
		c.cached = record
		c.succeeded = true
		c.mu.Unlock()
	}

	c.logger.Info("extraction succeeded", "keys", record.Keys(), "chief_complaint", record.ChiefComplaint())
	c.logEvent("extraction_success", map[string]any{"keys": record.Keys()})
	c.observe(trigger, Fresh, elapsed)
	return Result{Kind: Fresh, Record: record}
}

// HasSucceeded reports whether any call returned a non-empty record.
func (c *Client) HasSucceeded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.succeeded
}

func (c *Client) generate(ctx context.Context, prompt string) (intake.Record, error) {
	raw, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty extraction response")
	}
	var record intake.Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}
	if record == nil {
		return nil, errors.New("extraction response is not a json object")
	}
	return record, nil
}

func (c *Client) fallback() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached == nil {
		return Result{Kind: Empty}
	}
	return Result{Kind: Stale, Record: c.cached}
}

func (c *Client) logEvent(event string, data map[string]any) {
	if c.events != nil {
		c.events.Log(event, data)
	}
}

func (c *Client) observe(trigger string, kind Kind, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveExtraction(trigger, kind.String(), d)
	}
}
