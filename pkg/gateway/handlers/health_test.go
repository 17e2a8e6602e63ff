package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/config"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/lifecycle"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/live/sessions"
)

func readyConfig() config.Config {
	return config.Config{
		GeminiAPIKey:       "k",
		LiveModel:          config.DefaultLiveModel,
		ExtractionModel:    config.DefaultExtractionModel,
		StoreDriver:        "file",
		LiveWSPingInterval: time.Second,
		LiveWSWriteTimeout: time.Second,
	}
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestHealthHandler(t *testing.T) {
	rr := serve(HealthHandler{}, http.MethodGet, "/healthz")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok\n" {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestStatusHandler(t *testing.T) {
	rr := serve(StatusHandler{}, http.MethodGet, "/health")
	body := decodeBody(t, rr)
	if body["status"] != "healthy" || body["live_api"] != "connected" {
		t.Fatalf("body=%v", body)
	}
}

func TestInfoHandler(t *testing.T) {
	h := InfoHandler{Config: readyConfig()}

	body := decodeBody(t, serve(h, http.MethodGet, "/"))
	if body["service"] != "Medical Intake Backend" || body["version"] != "2.0.0" || body["status"] != "running" {
		t.Fatalf("body=%v", body)
	}
	if body["model"] != config.DefaultLiveModel {
		t.Fatalf("model=%v", body["model"])
	}

	rr := serve(h, http.MethodGet, "/nope")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestReadyHandler_Ready(t *testing.T) {
	rr := serve(ReadyHandler{Config: readyConfig(), Lifecycle: &lifecycle.Lifecycle{}}, http.MethodGet, "/readyz")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if ok, _ := decodeBody(t, rr)["ok"].(bool); !ok {
		t.Fatalf("expected ok=true")
	}
}

func TestReadyHandler_ConfigIssues(t *testing.T) {
	cfg := readyConfig()
	cfg.StoreDriver = "postgres"
	rr := serve(ReadyHandler{Config: cfg}, http.MethodGet, "/readyz")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "store dsn is not configured") {
		t.Fatalf("body=%q", rr.Body.String())
	}
}

func TestReadyHandler_Draining(t *testing.T) {
	lc := &lifecycle.Lifecycle{}
	lc.SetDraining(true)
	rr := serve(ReadyHandler{Config: readyConfig(), Lifecycle: lc}, http.MethodGet, "/readyz")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["draining"] != true || body["ok"] != false {
		t.Fatalf("body=%v", body)
	}
	if since, _ := body["draining_since"].(string); since == "" {
		t.Fatalf("expected draining_since, body=%v", body)
	}
}

func TestReadyHandler_ReportsLiveSessions(t *testing.T) {
	tracker := sessions.NewTracker()
	release := tracker.Register("s1", sessions.Handle{})
	defer release()
	rr := serve(ReadyHandler{Config: readyConfig(), LiveSessions: tracker}, http.MethodGet, "/readyz")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["live_sessions"] != float64(1) {
		t.Fatalf("live_sessions=%v", body["live_sessions"])
	}
}

func TestNotFoundHandler(t *testing.T) {
	rr := serve(NotFoundHandler{}, http.MethodGet, "/missing")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
	body := decodeBody(t, rr)
	errBody := body["error"].(map[string]any)
	if errBody["type"] != "not_found_error" {
		t.Fatalf("body=%v", body)
	}
}
