package server

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/config"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/extract"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/handlers"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/lifecycle"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/live/session"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/live/sessions"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/metrics"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/mw"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/upstream"
)

// Options carries the process-wide collaborators. Nil AI and Generator use
// Gemini through a shared lazily-created client.
type Options struct {
	Logger       *slog.Logger
	Lifecycle    *lifecycle.Lifecycle
	LiveSessions *sessions.Tracker
	Metrics      *metrics.Metrics
	Store        session.Persister
	AI           session.AIConnector
	Generator    extract.Generator
}

type Server struct {
	cfg  config.Config
	opts Options
	mux  *http.ServeMux
}

func New(cfg config.Config, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.AI == nil || opts.Generator == nil {
		clients := &upstream.Factory{
			APIKey: cfg.GeminiAPIKey,
			HTTPClient: &http.Client{
				Transport: &http.Transport{
					Proxy: http.ProxyFromEnvironment,
					DialContext: (&net.Dialer{
						Timeout: 10 * time.Second,
					}).DialContext,
					ForceAttemptHTTP2:     true,
					MaxIdleConns:          100,
					IdleConnTimeout:       90 * time.Second,
					TLSHandshakeTimeout:   10 * time.Second,
					ExpectContinueTimeout: 1 * time.Second,
				},
			},
			Logger: opts.Logger,
		}
		if opts.AI == nil {
			opts.AI = session.GeminiConnector{Clients: clients, Model: cfg.LiveModel}
		}
		if opts.Generator == nil {
			opts.Generator = upstream.JSONGenerator{Clients: clients, Model: cfg.ExtractionModel}
		}
	}

	s := &Server{
		cfg:  cfg,
		opts: opts,
		mux:  http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) handle(pattern, name string, h http.Handler) {
	s.mux.Handle(pattern, s.opts.Metrics.Instrument(name, h))
}

func (s *Server) routes() {
	s.handle("/", "info", handlers.InfoHandler{Config: s.cfg})
	s.handle("/healthz", "healthz", handlers.HealthHandler{})
	s.handle("/health", "health", handlers.StatusHandler{})
	s.handle("/readyz", "readyz", handlers.ReadyHandler{
		Config:       s.cfg,
		Lifecycle:    s.opts.Lifecycle,
		LiveSessions: s.opts.LiveSessions,
	})

	s.handle("/ws", "live", handlers.LiveHandler{
		Config:       s.cfg,
		AI:           s.opts.AI,
		Generator:    s.opts.Generator,
		Store:        s.opts.Store,
		Metrics:      s.opts.Metrics,
		Logger:       s.opts.Logger,
		Lifecycle:    s.opts.Lifecycle,
		LiveSessions: s.opts.LiveSessions,
	})

	if s.cfg.MetricsEnabled && s.opts.Metrics != nil {
		s.mux.Handle("/metrics", s.opts.Metrics.Handler())
	}
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.opts.Logger, h)
	h = mw.AccessLog(s.opts.Logger, h)
	h = mw.RequestID(h)
	return h
}
