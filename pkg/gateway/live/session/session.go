// Package session runs one duplex live intake conversation between a client
// transport and the AI backend.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/extract"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/intake"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/live/protocol"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrEndSession is returned by Run when the client asked to end the session.
	ErrEndSession = errors.New("session ended by client")
	// ErrClientDisconnected is returned by Run when the client transport went away.
	ErrClientDisconnected = errors.New("client disconnected")
)

// IsNormalTermination reports whether err ended the session without a fault.
func IsNormalTermination(err error) bool {
	return err == nil ||
		errors.Is(err, ErrEndSession) ||
		errors.Is(err, ErrClientDisconnected) ||
		errors.Is(err, context.Canceled)
}

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	fallbackMinTurns = 10

	triggerCompletion = "completion"
	triggerFallback   = "fallback"
)

type Extractor interface {
	Extract(ctx context.Context, trigger string, history []intake.Turn) extract.Result
	HasSucceeded() bool
}

// Persister stores a completed intake and returns where it was written.
type Persister interface {
	Save(ctx context.Context, conv intake.Conversation) (string, error)
}

type EventSink interface {
	Log(event string, data map[string]any)
}

// Observer receives traffic counters. Implementations must be safe for
// concurrent use.
type Observer interface {
	AddAudioBytes(direction string, n int)
	IncInterrupts()
	IncIntakesCompleted()
	IncPersistErrors()
}

// Config is the immutable per-session configuration.
type Config struct {
	SessionID         string
	Voice             string
	SystemInstruction string
	Clinic            string
	GreetingStyle     string
	SaveConversations bool
	ConnectTimeout    time.Duration
	HistoryLimit      int

	// Client audio admission; zero disables the limit.
	MaxAudioFramesPerSecond int
	MaxAudioBytesPerSecond  int64
	AudioBurstSeconds       int
}

type Dependencies struct {
	Transport Transport
	AI        AIConnector
	Extractor Extractor
	Store     Persister
	Events    EventSink
	Metrics   Observer
	Logger    *slog.Logger
	Config    Config
	Now       func() time.Time
}

type LiveSession struct {
	transport Transport
	connector AIConnector
	extractor Extractor
	store     Persister
	events    EventSink
	metrics   Observer
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	state   atomic.Int32
	history *turnHistory

	// Owned by the relay goroutine.
	limiter      *audioRateLimiter
	droppedAudio int

	aiMu        sync.Mutex
	ai          AIConnection
	cleanupOnce sync.Once

	// Owned by the dispatcher goroutine.
	handledCalls  map[string]struct{}
	fallbackFired bool
}

func New(deps Dependencies) (*LiveSession, error) {
	if deps.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if deps.AI == nil {
		return nil, fmt.Errorf("ai connector is required")
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if strings.TrimSpace(deps.Config.SessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Events == nil {
		deps.Events = nopEvents{}
	}
	if deps.Metrics == nil {
		deps.Metrics = nopObserver{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &LiveSession{
		transport:    deps.Transport,
		connector:    deps.AI,
		extractor:    deps.Extractor,
		store:        deps.Store,
		events:       deps.Events,
		metrics:      deps.Metrics,
		logger:       deps.Logger.With("session_id", deps.Config.SessionID),
		cfg:          deps.Config,
		now:          deps.Now,
		ctx:          ctx,
		cancel:       cancel,
		history:      newTurnHistory(deps.Config.HistoryLimit),
		limiter:      newAudioRateLimiter(deps.Now, deps.Config.MaxAudioFramesPerSecond, deps.Config.MaxAudioBytesPerSecond, deps.Config.AudioBurstSeconds),
		handledCalls: make(map[string]struct{}),
	}, nil
}

func (s *LiveSession) State() State {
	return State(s.state.Load())
}

// History returns a copy of the finalized turns.
func (s *LiveSession) History() []intake.Turn {
	return s.history.snapshot()
}

// Run connects to the AI backend and streams until the client ends the
// session, disconnects, a task fails, or Cancel is called. It returns the
// first termination reason; IsNormalTermination classifies it.
func (s *LiveSession) Run() error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		return fmt.Errorf("session already started")
	}
	defer s.cancel()
	defer s.cleanup()

	s.events.Log("session_started", map[string]any{"voice": s.cfg.Voice})
	s.logger.Info("live session starting", "voice", s.cfg.Voice)

	ai, err := s.connect()
	if err != nil {
		s.state.Store(int32(StateClosing))
		s.finish(err)
		return err
	}
	s.events.Log("ai_connected", nil)

	if err := s.transport.WriteJSON(protocol.ServerStatus{Type: "status", State: protocol.StateReady, Message: "Connected to Gemini"}); err != nil {
		s.state.Store(int32(StateClosing))
		return fmt.Errorf("%w: %w", ErrClientDisconnected, err)
	}
	s.events.Log("status", map[string]any{"state": protocol.StateReady})

	s.state.Store(int32(StateStreaming))
	err = s.stream(ai)
	s.state.Store(int32(StateClosing))
	s.finish(err)
	return err
}

// finish logs the termination reason. Only abnormal failures reach the
// client as an error frame.
func (s *LiveSession) finish(err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrEndSession):
		s.logger.Info("live session ended by client")
	case errors.Is(err, ErrClientDisconnected):
		s.logger.Info("live client disconnected")
	case errors.Is(err, context.Canceled):
		s.events.Log("session_cancelled", nil)
		s.logger.Info("live session cancelled")
	default:
		s.events.Log("session_error", map[string]any{"error": err.Error()})
		s.sendErrorFrame(err)
	}
}

func (s *LiveSession) connect() (AIConnection, error) {
	ctx := s.ctx
	if s.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		defer cancel()
	}
	ai, err := s.connector.Connect(ctx, AIConfig{
		Voice:             s.cfg.Voice,
		SystemInstruction: s.cfg.SystemInstruction,
		Tools: []ToolDeclaration{{
			Name:        intake.CompletionToolName,
			Description: intake.CompletionToolDescription,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("connect ai: %w", err)
	}
	s.aiMu.Lock()
	s.ai = ai
	s.aiMu.Unlock()
	return ai, nil
}

// stream runs the relay, sender, receiver and dispatcher as one group. The
// first task to fail cancels the others; closing the AI connection unblocks a
// pending Receive.
func (s *LiveSession) stream(ai AIConnection) error {
	outbound := make(chan AudioChunk, outboundQueueSize)
	inbound := newInboundQueue()

	g, gctx := errgroup.WithContext(s.ctx)
	stop := context.AfterFunc(gctx, s.closeAI)
	defer stop()

	frames := make(chan inboundFrame)
	go s.readLoop(gctx, frames)

	g.Go(func() error { return s.relay(gctx, frames, outbound, inbound, ai) })
	g.Go(func() error { return s.sendLoop(gctx, outbound, ai) })
	g.Go(func() error { return s.receiveLoop(gctx, inbound, ai) })
	g.Go(func() error { return s.dispatchLoop(gctx, inbound) })
	return g.Wait()
}

// cleanup releases the AI connection. It is safe to call more than once.
func (s *LiveSession) cleanup() {
	s.cleanupOnce.Do(func() {
		s.closeAI()
		s.events.Log("session_cleanup", map[string]any{"turns": s.history.count()})
		s.state.Store(int32(StateClosed))
		s.logger.Info("live session closed", "turns", s.history.count())
	})
}

func (s *LiveSession) closeAI() {
	s.aiMu.Lock()
	ai := s.ai
	s.ai = nil
	s.aiMu.Unlock()
	if ai == nil {
		return
	}
	if err := ai.Close(); err != nil {
		s.logger.Debug("ai connection close failed", "error", err)
	}
}

func (s *LiveSession) sendErrorFrame(err error) {
	if werr := s.transport.WriteJSON(protocol.ServerError{Type: "error", Message: err.Error()}); werr != nil {
		s.logger.Debug("unable to deliver error frame", "error", werr)
	}
}

func (s *LiveSession) Cancel() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
}

// Notify sends a status frame outside the dispatcher, used for drain notices.
func (s *LiveSession) Notify(state, message string) error {
	if s == nil {
		return nil
	}
	return s.transport.WriteJSON(protocol.ServerStatus{Type: "status", State: state, Message: message})
}

type nopEvents struct{}

func (nopEvents) Log(string, map[string]any) {}

type nopObserver struct{}

func (nopObserver) AddAudioBytes(string, int) {}
func (nopObserver) IncInterrupts()            {}
func (nopObserver) IncIntakesCompleted()      {}
func (nopObserver) IncPersistErrors()         {}
