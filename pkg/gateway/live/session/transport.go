package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is the client side of a live session.
type Transport interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteBinary(data []byte) error
	WriteJSON(v any) error
	Close() error
}

type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

type TransportConfig struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
}

// WSTransport adapts a gorilla connection. Writes are serialized and bounded
// by WriteTimeout; a keepalive ping runs until Close.
type WSTransport struct {
	ws           wsConn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func NewWSTransport(conn *websocket.Conn, cfg TransportConfig) *WSTransport {
	return newWSTransport(conn, cfg)
}

func newWSTransport(ws wsConn, cfg TransportConfig) *WSTransport {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	t := &WSTransport{
		ws:           ws,
		writeTimeout: cfg.WriteTimeout,
		done:         make(chan struct{}),
	}
	go t.keepAlive(cfg.PingInterval)
	return t
}

// ReadMessage maps a normal close or EOF to ErrClientDisconnected.
func (t *WSTransport) ReadMessage() (int, []byte, error) {
	messageType, data, err := t.ws.ReadMessage()
	if err != nil {
		if isClientGone(err) {
			return 0, nil, fmt.Errorf("%w: %w", ErrClientDisconnected, err)
		}
		return 0, nil, err
	}
	return messageType, data, nil
}

func (t *WSTransport) WriteBinary(data []byte) error {
	return t.write(websocket.BinaryMessage, data)
}

func (t *WSTransport) WriteJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.write(websocket.TextMessage, payload)
}

func (t *WSTransport) write(messageType int, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	select {
	case <-t.done:
		return net.ErrClosed
	default:
	}
	if err := t.ws.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return err
	}
	return t.ws.WriteMessage(messageType, data)
}

// Close sends a normal close frame and releases the connection.
func (t *WSTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		t.writeMu.Lock()
		_ = t.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(t.writeTimeout))
		t.writeMu.Unlock()
		t.closeErr = t.ws.Close()
	})
	return t.closeErr
}

func (t *WSTransport) keepAlive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if err := t.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(t.writeTimeout)); err != nil {
				return
			}
		}
	}
}

func isClientGone(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure,
	)
}
