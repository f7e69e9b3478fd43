package core

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// --- Recoverer ---

func TestRecoverer_NoPanic(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != `{"ok":true}` {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestRecoverer_PanicWithError(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("nil map write"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	if strings.Contains(rec.Body.String(), "nil map write") {
		t.Error("panic value must not leak to the client")
	}
}

// --- RequestLogger ---

func TestRequestLogger_RedactsHeaders(t *testing.T) {
	buf := &strings.Builder{}
	logger := slog.New(slog.NewJSONHandler(buf, nil))

	h := RequestLogger(logger, []string{"authorization"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/queue", nil)
	req.Header.Set("Authorization", "Bearer wp_app_password")
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if strings.Contains(out, "wp_app_password") {
		t.Error("authorization value should be redacted")
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("expected [REDACTED] marker")
	}
	if !strings.Contains(out, "application/json") {
		t.Error("non-redacted headers should be logged")
	}
	if !strings.Contains(out, `"status":201`) {
		t.Errorf("expected status 201 in log, got %s", out)
	}
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			buf := &strings.Builder{}
			logger := slog.New(slog.NewJSONHandler(buf, nil))
			h := RequestLogger(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

			var entry map[string]any
			if err := json.Unmarshal([]byte(buf.String()), &entry); err != nil {
				t.Fatalf("invalid log line: %v", err)
			}
			if entry["level"] != tt.level {
				t.Errorf("expected level %s, got %v", tt.level, entry["level"])
			}
		})
	}
}

// --- CORS ---

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("wildcard", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://app.example.com")
		NewCORSMiddleware([]string{"*"})(next).ServeHTTP(rec, req)

		if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("expected wildcard origin")
		}
		if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
			t.Error("credentials must not be allowed with a wildcard")
		}
	})

	t.Run("listed origin", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://app.example.com")
		NewCORSMiddleware([]string{"https://app.example.com"})(next).ServeHTTP(rec, req)

		if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
			t.Error("expected echoed origin")
		}
		if rec.Header().Get("Vary") != "Origin" {
			t.Error("expected Vary: Origin")
		}
	})

	t.Run("unlisted origin", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		NewCORSMiddleware([]string{"https://app.example.com"})(next).ServeHTTP(rec, req)

		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("unlisted origin must not be allowed")
		}
	})

	t.Run("preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://app.example.com")
		NewCORSMiddleware([]string{"*"})(next).ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
	})
}

// --- responseCapture / writeJSON ---

func TestResponseCapture_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	rc := &responseCapture{ResponseWriter: rec, statusCode: http.StatusOK}

	rc.WriteHeader(http.StatusAccepted)
	rc.WriteHeader(http.StatusTeapot)

	if rc.statusCode != http.StatusAccepted {
		t.Errorf("expected 202, got %d", rc.statusCode)
	}
	if rc.Unwrap() != rec {
		t.Error("Unwrap should return the wrapped writer")
	}
}

func TestWriteJSON_EscapesFields(t *testing.T) {
	rec := httptest.NewRecorder()
	err := writeJSON(rec, APIErrorResponse{Error: ErrorDetail{
		Code:      "internal_unexpected_error",
		Message:   "line\nwith \"quotes\" and \\slash",
		RequestID: "req\t1",
	}})
	if err != nil {
		t.Fatalf("writeJSON: %v", err)
	}

	var resp APIErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("output is not valid JSON: %v (%s)", err, rec.Body.String())
	}
	if resp.Error.Message != "line\nwith \"quotes\" and \\slash" {
		t.Errorf("message did not round trip: %q", resp.Error.Message)
	}
}
