package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/config"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/intakestore"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/lifecycle"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/live/sessions"
)

const (
	serviceName    = "Medical Intake Backend"
	serviceVersion = "2.0.0"
)

// HealthHandler is the liveness probe.
type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// StatusHandler answers /health for the browser client.
type StatusHandler struct{}

func (h StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"live_api": "connected",
	})
}

// InfoHandler describes the service at /.
type InfoHandler struct {
	Config config.Config
}

func (h InfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundHandler{}.ServeHTTP(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": serviceName,
		"version": serviceVersion,
		"status":  "running",
		"api":     "Gemini Live API",
		"model":   h.Config.LiveModel,
	})
}

type ReadyHandler struct {
	Config       config.Config
	Lifecycle    *lifecycle.Lifecycle
	LiveSessions *sessions.Tracker
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK          bool     `json:"ok"`
		Draining    bool     `json:"draining"`
		DrainingAt  string   `json:"draining_since,omitempty"`
		Sessions    int      `json:"live_sessions"`
		StoreDriver string   `json:"store_driver"`
		SaveEnabled bool     `json:"save_conversations"`
		Issues      []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)
	if h.Config.GeminiAPIKey == "" {
		issues = append(issues, "gemini api key is not configured")
	}
	if h.Config.LiveModel == "" {
		issues = append(issues, "live model is not configured")
	}
	if h.Config.ExtractionModel == "" {
		issues = append(issues, "extraction model is not configured")
	}
	switch h.Config.StoreDriver {
	case intakestore.DriverFile:
	case intakestore.DriverSQLite, intakestore.DriverPostgres:
		if h.Config.StoreDSN == "" {
			issues = append(issues, "store dsn is not configured")
		}
	default:
		issues = append(issues, "invalid store driver")
	}
	if h.Config.LiveWSPingInterval <= 0 || h.Config.LiveWSWriteTimeout <= 0 {
		issues = append(issues, "live websocket timeouts must be > 0")
	}

	draining := h.Lifecycle.IsDraining()
	var drainingAt string
	if draining {
		drainingAt = h.Lifecycle.DrainingSince().Format(time.RFC3339)
	}
	ok := len(issues) == 0 && !draining
	status := http.StatusOK
	switch {
	case draining:
		status = http.StatusServiceUnavailable
	case !ok:
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, readyResp{
		OK:          ok,
		Draining:    draining,
		DrainingAt:  drainingAt,
		Sessions:    h.LiveSessions.Count(),
		StoreDriver: h.Config.StoreDriver,
		SaveEnabled: h.Config.SaveConversations,
		Issues:      issues,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
