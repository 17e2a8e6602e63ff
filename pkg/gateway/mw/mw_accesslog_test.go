package mw

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type testBaseWriter struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func newTestBaseWriter() *testBaseWriter {
	return &testBaseWriter{header: make(http.Header)}
}

func (w *testBaseWriter) Header() http.Header {
	return w.header
}

func (w *testBaseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.status = code
	w.wroteHeader = true
}

func (w *testBaseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(p)
}

type testFlusherWriter struct {
	*testBaseWriter
	flushed bool
}

func (w *testFlusherWriter) Flush() {
	w.flushed = true
}

type testHijackerWriter struct {
	*testBaseWriter
	hijacked bool
}

func (w *testHijackerWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.hijacked = true
	return nil, nil, nil
}

type testFlusherHijackerWriter struct {
	*testBaseWriter
	flushed  bool
	hijacked bool
}

func (w *testFlusherHijackerWriter) Flush() {
	w.flushed = true
}

func (w *testFlusherHijackerWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.hijacked = true
	return nil, nil, nil
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func parseSingleLogRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log output")
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("unmarshal log: %v", err)
	}
	return rec
}

func TestAccessLog_AdvertisesOnlyUnderlyingInterfaces(t *testing.T) {
	tests := []struct {
		name       string
		writer     http.ResponseWriter
		wantFlush  bool
		wantHijack bool
	}{
		{"plain", newTestBaseWriter(), false, false},
		{"flusher", &testFlusherWriter{testBaseWriter: newTestBaseWriter()}, true, false},
		{"hijacker", &testHijackerWriter{testBaseWriter: newTestBaseWriter()}, false, true},
		{"flusher and hijacker", &testFlusherHijackerWriter{testBaseWriter: newTestBaseWriter()}, true, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := AccessLog(newTestLogger(&bytes.Buffer{}), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				flusher, canFlush := w.(http.Flusher)
				hijacker, canHijack := w.(http.Hijacker)
				if canFlush != tc.wantFlush || canHijack != tc.wantHijack {
					t.Fatalf("flush=%v hijack=%v, want %v %v", canFlush, canHijack, tc.wantFlush, tc.wantHijack)
				}
				if canFlush {
					flusher.Flush()
				}
				if canHijack {
					if _, _, err := hijacker.Hijack(); err != nil {
						t.Fatalf("hijack failed: %v", err)
					}
				}
			}))
			h.ServeHTTP(tc.writer, httptest.NewRequest(http.MethodGet, "/ws", nil))

			switch w := tc.writer.(type) {
			case *testFlusherWriter:
				if !w.flushed {
					t.Fatal("flush was not delegated")
				}
			case *testHijackerWriter:
				if !w.hijacked {
					t.Fatal("hijack was not delegated")
				}
			case *testFlusherHijackerWriter:
				if !w.flushed || !w.hijacked {
					t.Fatalf("flushed=%v hijacked=%v", w.flushed, w.hijacked)
				}
			}
		})
	}
}

func TestAccessLog_StatusLogging_ExplicitWriteHeader(t *testing.T) {
	writer := newTestBaseWriter()
	loggerOut := &bytes.Buffer{}

	h := AccessLog(newTestLogger(loggerOut), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	h.ServeHTTP(writer, httptest.NewRequest(http.MethodGet, "/healthz", nil).WithContext(WithRequestID(context.Background(), "req_test")))

	rec := parseSingleLogRecord(t, loggerOut)
	if got, ok := rec["status"].(float64); !ok || int(got) != http.StatusCreated {
		t.Fatalf("logged status=%v (type %T), want %d", rec["status"], rec["status"], http.StatusCreated)
	}
}

func TestAccessLog_StatusLogging_ImplicitWriteIs200(t *testing.T) {
	writer := newTestBaseWriter()
	loggerOut := &bytes.Buffer{}

	h := AccessLog(newTestLogger(loggerOut), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))

	h.ServeHTTP(writer, httptest.NewRequest(http.MethodGet, "/healthz", nil).WithContext(WithRequestID(context.Background(), "req_test")))

	rec := parseSingleLogRecord(t, loggerOut)
	if got, ok := rec["status"].(float64); !ok || int(got) != http.StatusOK {
		t.Fatalf("logged status=%v (type %T), want %d", rec["status"], rec["status"], http.StatusOK)
	}
	if got, ok := rec["bytes"].(float64); !ok || int(got) != 2 {
		t.Fatalf("logged bytes=%v, want 2", rec["bytes"])
	}
}

func TestAccessLog_HijackLogsSwitchingProtocols(t *testing.T) {
	writer := &testHijackerWriter{testBaseWriter: newTestBaseWriter()}
	loggerOut := &bytes.Buffer{}

	h := AccessLog(newTestLogger(loggerOut), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, _ = w.(http.Hijacker).Hijack()
	}))

	h.ServeHTTP(writer, httptest.NewRequest(http.MethodGet, "/ws", nil).WithContext(WithRequestID(context.Background(), "req_ws")))

	rec := parseSingleLogRecord(t, loggerOut)
	if got, ok := rec["status"].(float64); !ok || int(got) != http.StatusSwitchingProtocols {
		t.Fatalf("logged status=%v, want %d", rec["status"], http.StatusSwitchingProtocols)
	}
	if rec["request_id"] != "req_ws" || rec["path"] != "/ws" {
		t.Fatalf("record=%v", rec)
	}
}
