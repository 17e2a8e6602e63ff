package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/apierror"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/branding"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/config"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/eventlog"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/extract"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/lifecycle"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/live/protocol"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/live/session"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/live/sessions"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/metrics"
)

// LiveHandler handles /ws intake sessions.
type LiveHandler struct {
	Config       config.Config
	AI           session.AIConnector
	Generator    extract.Generator
	Store        session.Persister
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	Lifecycle    *lifecycle.Lifecycle
	LiveSessions *sessions.Tracker

	// NewSessionID overrides uuid generation in tests.
	NewSessionID func() string
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, &apierror.Error{Type: apierror.TypeInvalidRequest, Message: "method not allowed", Code: "method_not_allowed"})
		return
	}
	if h.Lifecycle.IsDraining() {
		writeError(w, r, http.StatusServiceUnavailable, &apierror.Error{Type: apierror.TypeUnavailable, Message: "server is draining", Code: "draining"})
		return
	}
	if !h.Config.OriginAllowed(r.Header.Get("Origin")) {
		writeError(w, r, http.StatusForbidden, &apierror.Error{Type: apierror.TypePermission, Message: "origin is not allowed", Param: "Origin"})
		return
	}

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	if h.Config.LiveMaxMessageBytes > 0 {
		conn.SetReadLimit(h.Config.LiveMaxMessageBytes)
	}

	transport := session.NewWSTransport(conn, session.TransportConfig{
		PingInterval: h.Config.LiveWSPingInterval,
		WriteTimeout: h.Config.LiveWSWriteTimeout,
	})
	defer transport.Close()

	sessionID := h.newSessionID()
	requestID := requestIDFromContext(r.Context())
	b := h.Config.Branding

	events := eventlog.New(eventlog.Config{
		Enabled:   h.Config.EnableSessionLogs,
		Dir:       h.Config.SessionLogDir,
		SessionID: sessionID,
		Voice:     b.VoiceModel,
		Logger:    logger,
	})

	extractor, err := extract.New(extract.Config{
		Generator: h.Generator,
		Timeout:   h.Config.ExtractionTimeout,
		Logger:    logger.With("session_id", sessionID),
		Events:    events,
		Observer:  h.Metrics,
	})
	if err != nil {
		logger.Error("live session setup failed", "session_id", sessionID, "error", err)
		_ = transport.WriteJSON(protocol.ServerError{Type: "error", Message: "failed to initialize live session"})
		return
	}

	s, err := session.New(session.Dependencies{
		Transport: transport,
		AI:        h.AI,
		Extractor: extractor,
		Store:     h.Store,
		Events:    events,
		Metrics:   h.Metrics,
		Logger:    logger.With("request_id", requestID),
		Config: session.Config{
			SessionID:               sessionID,
			Voice:                   b.VoiceModel,
			SystemInstruction:       branding.SystemInstruction(b),
			Clinic:                  b.Label(),
			GreetingStyle:           b.GreetingStyle,
			SaveConversations:       h.Config.SaveConversations,
			ConnectTimeout:          h.Config.AIConnectTimeout,
			MaxAudioFramesPerSecond: h.Config.LiveMaxAudioFPS,
			MaxAudioBytesPerSecond:  h.Config.LiveMaxAudioBytesPerSecond,
			AudioBurstSeconds:       h.Config.LiveInboundBurstSeconds,
		},
	})
	if err != nil {
		logger.Error("live session setup failed", "session_id", sessionID, "error", err)
		_ = transport.WriteJSON(protocol.ServerError{Type: "error", Message: "failed to initialize live session"})
		return
	}

	unregister := func() {}
	if h.LiveSessions != nil {
		unregister = h.LiveSessions.Register(sessionID, sessions.Handle{
			Cancel: s.Cancel,
			Notify: s.Notify,
		})
	}
	defer unregister()

	start := time.Now()
	h.Metrics.SessionStarted()
	err = s.Run()
	h.Metrics.SessionEnded(sessionStatus(err), time.Since(start))

	if err != nil && !session.IsNormalTermination(err) {
		logger.Warn("live session ended with error", "session_id", sessionID, "request_id", requestID, "error", err)
	}
}

func (h LiveHandler) newSessionID() string {
	if h.NewSessionID != nil {
		return h.NewSessionID()
	}
	return uuid.NewString()
}

// sessionStatus is the live_sessions_total label for a Run result.
func sessionStatus(err error) string {
	switch {
	case err == nil, errors.Is(err, session.ErrEndSession):
		return "completed"
	case errors.Is(err, session.ErrClientDisconnected):
		return "disconnected"
	case session.IsNormalTermination(err):
		return "cancelled"
	default:
		return "error"
	}
}
