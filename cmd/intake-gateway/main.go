package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sanchay-T/gemini-live-medical-intake/internal/dotenv"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/config"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/intakestore"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/lifecycle"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/live/session"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/live/sessions"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/metrics"
	gatewayserver "github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/server"
)

type gatewayDeps struct {
	loadConfig   func() (config.Config, error)
	openStore    func(context.Context, intakestore.Config) (intakestore.Store, error)
	newGateway   func(config.Config, gatewayserver.Options) *gatewayserver.Server
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultGatewayDeps() gatewayDeps {
	return gatewayDeps{
		loadConfig: config.LoadFromEnv,
		openStore:  intakestore.Open,
		newGateway: gatewayserver.New,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func storeConfig(cfg config.Config, logger *slog.Logger) intakestore.Config {
	return intakestore.Config{
		Driver: cfg.StoreDriver,
		Dir:    cfg.StorageDir,
		DSN:    cfg.StoreDSN,
		Logger: logger,
	}
}

func runGateway(ctx context.Context, logOut io.Writer, deps gatewayDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.openStore == nil {
		return errors.New("missing openStore dependency")
	}
	if deps.newGateway == nil {
		return errors.New("missing newGateway dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logOut == nil {
		logOut = os.Stderr
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: cfg.LogLevel}))

	var persister session.Persister
	if cfg.SaveConversations {
		store, err := deps.openStore(ctx, storeConfig(cfg, logger))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("close store", "error", err)
			}
		}()
		persister = store
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New("intake")
	}
	lc := &lifecycle.Lifecycle{}
	tracker := sessions.NewTracker()

	gw := deps.newGateway(cfg, gatewayserver.Options{
		Logger:       logger,
		Lifecycle:    lc,
		LiveSessions: tracker,
		Metrics:      m,
		Store:        persister,
	})
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting gateway",
		"addr", cfg.Addr,
		"clinic", cfg.Branding.Label(),
		"voice", cfg.Branding.VoiceModel,
		"live_model", cfg.LiveModel,
		"save_conversations", cfg.SaveConversations,
		"store_driver", cfg.StoreDriver,
	)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		_ = httpSrv.Close()
		tracker.CancelAll()
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	lc.SetDraining(true)
	if n := tracker.NotifyAll("draining", "server is shutting down"); n > 0 {
		logger.Info("notified live sessions", "count", n)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !tracker.Wait(waitCtx) {
		ids := tracker.IDs()
		n := tracker.CancelAll()
		logger.Warn("cancelled live sessions after grace period", "count", n, "session_ids", ids)
		// Cancelled sessions still unwind through their own cleanup.
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		tracker.Wait(cleanupCtx)
		cleanupCancel()
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps gatewayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "intake-gateway: %v\n", err)
		return 1
	}

	if err := runGateway(ctx, stderr, deps); err != nil {
		fmt.Fprintf(stderr, "intake-gateway: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultGatewayDeps()))
}
