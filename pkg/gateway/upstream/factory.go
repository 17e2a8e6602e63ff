// Package upstream owns the shared Gemini client used by the live session
// connector and the extraction generator.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"
)

var ErrMissingAPIKey = errors.New("gemini api key not configured")

// Factory creates the genai client on first use and reuses it afterwards.
// A failed initialization is not cached so the next call retries.
type Factory struct {
	APIKey     string
	HTTPClient *http.Client
	Logger     *slog.Logger

	mu     sync.Mutex
	client *genai.Client
}

func (f *Factory) Configured() bool {
	return f != nil && strings.TrimSpace(f.APIKey) != ""
}

func (f *Factory) Client(ctx context.Context) (*genai.Client, error) {
	if f == nil {
		return nil, ErrMissingAPIKey
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		return f.client, nil
	}
	if strings.TrimSpace(f.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	cfg := &genai.ClientConfig{
		APIKey:  f.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if f.HTTPClient != nil {
		cfg.HTTPClient = f.HTTPClient
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if f.Logger != nil {
		f.Logger.Debug("gemini client initialized")
	}
	f.client = client
	return client, nil
}
