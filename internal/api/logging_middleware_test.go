package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"finge/pkg/finge"
)

func setupRouterWithLogger(t *testing.T, logger *slog.Logger) (http.Handler, func()) {
	t.Helper()

	tmp := t.TempDir()
	core, err := finge.OpenWithOptions(finge.Options{
		DBPath:    filepath.Join(tmp, "test.db"),
		Logger:    logger,
		Extractor: stubExtractor{answer: "AAPL"},
	})
	if err != nil {
		t.Fatalf("open core: %v", err)
	}

	router := NewRouter(core, RouterOptions{Logger: logger})
	cleanup := func() {
		_ = core.Close()
	}

	return router, cleanup
}

func newBufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNewRouterLogsRequestCompleted(t *testing.T) {
	var buf bytes.Buffer
	router, cleanup := setupRouterWithLogger(t, newBufferLogger(&buf))
	defer cleanup()

	rr := doRequest(router, http.MethodGet, "/api/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	logs := buf.String()
	for _, want := range []string{
		"http request completed",
		"method=GET",
		"path=/api/health",
		"route=/api/health",
		"status=200",
		"request_id=",
		"duration_ms=",
	} {
		if !strings.Contains(logs, want) {
			t.Fatalf("expected %q in logs, got %q", want, logs)
		}
	}
}

func TestNewRouterLogsWarnForBadRequest(t *testing.T) {
	var buf bytes.Buffer
	router, cleanup := setupRouterWithLogger(t, newBufferLogger(&buf))
	defer cleanup()

	rr := doRequest(router, http.MethodGet, "/api/scans/invalid", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	logs := buf.String()
	if !strings.Contains(logs, "level=WARN") {
		t.Fatalf("expected warn level log, got %q", logs)
	}
	if !strings.Contains(logs, "status=400") {
		t.Fatalf("expected status=400 in log, got %q", logs)
	}
	if !strings.Contains(logs, "error_message=\"INVALID_INPUT: invalid id") {
		t.Fatalf("expected error message in log, got %q", logs)
	}
	if !strings.Contains(logs, "error_code=INVALID_INPUT") {
		t.Fatalf("expected error code in log, got %q", logs)
	}
}

func TestNewRouterLogsErrorCode(t *testing.T) {
	var buf bytes.Buffer
	router, cleanup := setupRouterWithLogger(t, newBufferLogger(&buf))
	defer cleanup()

	rr := doRequest(router, http.MethodDelete, "/api/catalog/NOPE", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if !strings.Contains(buf.String(), "error_code=NOT_FOUND") {
		t.Fatalf("expected error code in log, got %q", buf.String())
	}
}

func TestNewRouterRecoversPanicWithStructuredLog(t *testing.T) {
	var buf bytes.Buffer
	router := NewRouter(nil, RouterOptions{Logger: newBufferLogger(&buf)})

	rr := doRequest(router, http.MethodGet, "/api/catalog", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, `"message":"INTERNAL_ERROR: internal server error"`) {
		t.Fatalf("expected structured error response, got %q", body)
	}

	logs := buf.String()
	if !strings.Contains(logs, "panic recovered") {
		t.Fatalf("expected panic recovery log, got %q", logs)
	}
	if !strings.Contains(logs, "level=ERROR") || !strings.Contains(logs, "status=500") {
		t.Fatalf("expected error level request log with status=500, got %q", logs)
	}
}

func TestNewRouterUsesGivenLoggerForRequestLogs(t *testing.T) {
	var buf bytes.Buffer
	router, cleanup := setupRouterWithLogger(t, newBufferLogger(&buf))
	defer cleanup()

	var defaultBuf bytes.Buffer
	oldDefault := slog.Default()
	slog.SetDefault(newBufferLogger(&defaultBuf))
	t.Cleanup(func() {
		slog.SetDefault(oldDefault)
	})

	rr := doRequest(router, http.MethodGet, "/api/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	if !strings.Contains(buf.String(), "http request completed") {
		t.Fatalf("expected logs written through router logger, got %q", buf.String())
	}
	if defaultBuf.Len() != 0 {
		t.Fatalf("expected no log written to slog default, got %q", defaultBuf.String())
	}
}

func TestNewRouterLoggingIncludesUserAgent(t *testing.T) {
	var buf bytes.Buffer
	router, cleanup := setupRouterWithLogger(t, newBufferLogger(&buf))
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("User-Agent", "finge-test-agent")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(buf.String(), "user_agent=finge-test-agent") {
		t.Fatalf("expected user_agent field in request logs, got %q", buf.String())
	}
}
