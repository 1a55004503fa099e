package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func bufferLogger(buf *bytes.Buffer) *Logger {
	return New(Config{
		Component: ComponentHTTP,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestMiddlewareInjectsLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := FromContext(r.Context())
		if got.Component() != ComponentHTTP {
			t.Errorf("component = %q, want %q", got.Component(), ComponentHTTP)
		}
		got.Info("handled")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	Middleware(logger)(inner).ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), "handled") {
		t.Errorf("log output missing handler record: %q", buf.String())
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("handled")
	})
	extract := func(*http.Request) string { return "req_fixed" }
	chain := Middleware(logger)(RequestIDMiddleware(extract)(inner))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	chain.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if !strings.Contains(out, FieldRequestID+"=req_fixed") {
		t.Errorf("log output missing request id: %q", out)
	}
}

func TestFromContextFallback(t *testing.T) {
	logger := FromContext(context.Background())
	if logger.Component() != "unknown" {
		t.Errorf("fallback component = %q, want unknown", logger.Component())
	}
}

func TestStructuredLoggerLogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(bufferLogger(&buf))

	sl.LogError(context.Background(), "Lookup failed", errors.New("no such row"),
		ComponentHTTP, OpRead, NewFields().WithAccount(42))

	out := buf.String()
	for _, want := range []string{"Lookup failed", "no such row", FieldOperation + "=" + OpRead, FieldAccountID + "=42"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %q", want, out)
		}
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{404, "WARN"},
		{500, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(bufferLogger(&buf))
		req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)

		sl.LogHTTPEnd(context.Background(), req, tt.status, 3, "127.0.0.1")

		if !strings.Contains(buf.String(), "level="+tt.level) {
			t.Errorf("status %d: output missing level %s: %q", tt.status, tt.level, buf.String())
		}
	}
}
