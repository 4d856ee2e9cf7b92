package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogOutput swaps the global logger for one writing JSON to a buffer.
func captureLogOutput(t *testing.T, f func()) string {
	t.Helper()
	var buf bytes.Buffer
	old := GetLogger()
	SetLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer SetLogger(old)

	f()
	return buf.String()
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatText, ParseFormat(""))
}

func TestInitLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	old := GetLogger()
	defer SetLogger(old)

	InitLogger(&buf, LevelWarn, FormatJSON)
	Info("hidden")
	Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"key":"value"`)
}

func TestFromContext_AddsRequestID(t *testing.T) {
	out := captureLogOutput(t, func() {
		ctx := WithRequestID(context.Background(), "req-123")
		FromContext(ctx).Info("hello")
	})
	assert.Contains(t, out, `"request_id":"req-123"`)
}

func TestGetRequestID_Missing(t *testing.T) {
	assert.Equal(t, "", GetRequestID(context.Background()))
}

func TestRequestIDMiddleware_GeneratesAndEchoes(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "from-client")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "from-client", seen)
}

func TestCombinedMiddleware_LogsStatus(t *testing.T) {
	h := CombinedMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	out := captureLogOutput(t, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/sentences/1", nil))
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace([]byte(out)), &entry))
	assert.Equal(t, "http_request", entry["msg"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status_code"])
	assert.Equal(t, "/sentences/1", entry["path"])
	assert.NotEmpty(t, entry["request_id"])
}
