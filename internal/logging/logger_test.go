package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/neomorfeo/schoolhub/internal/logging"
)

func TestNew_WritesSeverityAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Config{Component: "api", Level: "info", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Warn("careful", zap.String("admin_id", "a-1"))
	_ = logger.Sync()

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decoding log line %q: %v", buf.String(), err)
	}
	if entry["severity"] != "WARNING" {
		t.Errorf("severity = %v, want WARNING", entry["severity"])
	}
	if entry["component"] != "api" {
		t.Errorf("component = %v, want api", entry["component"])
	}
	if entry["admin_id"] != "a-1" {
		t.Errorf("admin_id = %v, want a-1", entry["admin_id"])
	}
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Config{Level: "error", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := logging.New(logging.Config{Level: "loud"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestFromContext(t *testing.T) {
	fallback := zap.NewNop()
	if got := logging.FromContext(context.Background(), fallback); got != fallback {
		t.Error("expected fallback without stored logger")
	}

	stored := zap.NewExample()
	ctx := logging.WithLogger(context.Background(), stored)
	if got := logging.FromContext(ctx, fallback); got != stored {
		t.Error("expected stored logger")
	}
}

func TestRequestLogger_StoresLogger(t *testing.T) {
	var buf bytes.Buffer
	base, err := logging.New(logging.Config{Output: &buf})
	if err != nil {
		t.Fatal(err)
	}

	var sawLogger bool
	h := logging.RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = logging.FromContext(r.Context(), nil) != nil
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if !sawLogger {
		t.Error("handler should see a request-scoped logger")
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"status":418`)) {
		t.Errorf("completion line missing status: %s", buf.String())
	}
}
