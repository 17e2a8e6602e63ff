package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/extract"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/intake"
	"github.com/gorilla/websocket"
)

type clientFrame struct {
	messageType int
	data        []byte
}

type written struct {
	binary []byte
	json   map[string]any
}

func (w written) kind() string {
	if w.json == nil {
		return "binary"
	}
	typ, _ := w.json["type"].(string)
	return typ
}

type fakeTransport struct {
	in        chan clientFrame
	closed    chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	writes []written
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan clientFrame, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) sendText(s string) {
	f.in <- clientFrame{messageType: websocket.TextMessage, data: []byte(s)}
}

func (f *fakeTransport) sendAudio(b []byte) {
	f.in <- clientFrame{messageType: websocket.BinaryMessage, data: b}
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	select {
	case frame, ok := <-f.in:
		if !ok {
			return 0, nil, fmt.Errorf("%w: %w", ErrClientDisconnected, io.EOF)
		}
		return frame.messageType, frame.data, nil
	case <-f.closed:
		return 0, nil, errors.New("transport closed")
	}
}

func (f *fakeTransport) WriteBinary(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, written{binary: append([]byte(nil), data...)})
	return nil
}

func (f *fakeTransport) WriteJSON(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, written{json: m})
	return nil
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) snapshot() []written {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]written, len(f.writes))
	copy(out, f.writes)
	return out
}

func (f *fakeTransport) kinds() []string {
	var out []string
	for _, w := range f.snapshot() {
		out = append(out, w.kind())
	}
	return out
}

func (f *fakeTransport) count(kind string) int {
	n := 0
	for _, k := range f.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

type fakeAI struct {
	events    chan []AIEvent
	closed    chan struct{}
	closeOnce sync.Once
	sendGate  chan struct{}

	mu       sync.Mutex
	sent     [][]byte
	endTurns int
	sendErr  error
	endErr   error
}

func newFakeAI() *fakeAI {
	return &fakeAI{
		events: make(chan []AIEvent, 64),
		closed: make(chan struct{}),
	}
}

func (a *fakeAI) SendAudio(chunk AudioChunk) error {
	if a.sendGate != nil {
		select {
		case <-a.sendGate:
		case <-a.closed:
			return errors.New("ai closed")
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sendErr != nil {
		return a.sendErr
	}
	a.sent = append(a.sent, append([]byte(nil), chunk.Data...))
	return nil
}

func (a *fakeAI) SignalEndOfTurn() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.endErr != nil {
		return a.endErr
	}
	a.endTurns++
	return nil
}

func (a *fakeAI) Receive() ([]AIEvent, error) {
	select {
	case evs := <-a.events:
		return evs, nil
	case <-a.closed:
		return nil, errors.New("ai connection closed")
	}
}

func (a *fakeAI) Close() error {
	a.closeOnce.Do(func() { close(a.closed) })
	return nil
}

func (a *fakeAI) isClosed() bool {
	select {
	case <-a.closed:
		return true
	default:
		return false
	}
}

func (a *fakeAI) sentChunks() [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([][]byte(nil), a.sent...)
}

func (a *fakeAI) endTurnCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.endTurns
}

type fakeConnector struct {
	conn *fakeAI
	err  error
	// hold, when set, is closed once Connect is entered; Connect then waits
	// for ctx to end.
	hold chan struct{}

	mu  sync.Mutex
	cfg AIConfig
}

func (c *fakeConnector) Connect(ctx context.Context, cfg AIConfig) (AIConnection, error) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	if c.hold != nil {
		close(c.hold)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.conn, nil
}

type fakeExtractor struct {
	mu        sync.Mutex
	results   []extract.Result
	triggers  []string
	histories [][]intake.Turn
	succeeded bool
}

func (e *fakeExtractor) Extract(ctx context.Context, trigger string, history []intake.Turn) extract.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.triggers = append(e.triggers, trigger)
	e.histories = append(e.histories, history)
	var res extract.Result
	if len(e.results) > 0 {
		i := min(len(e.triggers)-1, len(e.results)-1)
		res = e.results[i]
	}
	if res.Kind == extract.Fresh {
		e.succeeded = true
	}
	return res
}

func (e *fakeExtractor) HasSucceeded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.succeeded
}

func (e *fakeExtractor) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.triggers...)
}

type fakeStore struct {
	mu    sync.Mutex
	saved []intake.Conversation
	err   error
}

func (s *fakeStore) Save(ctx context.Context, conv intake.Conversation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, conv)
	return "memory", nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEvents) Log(event string, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEvents) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

type harness struct {
	transport *fakeTransport
	ai        *fakeAI
	connector *fakeConnector
	extractor *fakeExtractor
	store     *fakeStore
	events    *recordingEvents
	session   *LiveSession
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		transport: newFakeTransport(),
		ai:        newFakeAI(),
		extractor: &fakeExtractor{},
		store:     &fakeStore{},
		events:    &recordingEvents{},
	}
	h.connector = &fakeConnector{conn: h.ai}
	s, err := New(Dependencies{
		Transport: h.transport,
		AI:        h.connector,
		Extractor: h.extractor,
		Store:     h.store,
		Events:    h.events,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: Config{
			SessionID:         "s-test",
			Voice:             "Puck",
			SystemInstruction: "be kind",
			Clinic:            "Medical Center - Primary Care",
			GreetingStyle:     "warm",
			SaveConversations: true,
		},
		Now: func() time.Time { return time.Date(2025, 11, 13, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.session = s
	return h
}

func (h *harness) start() <-chan error {
	done := make(chan error, 1)
	go func() { done <- h.session.Run() }()
	return done
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not finish")
		return nil
	}
}
