package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func jsonLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{Level: slog.LevelDebug, Format: FormatJSON, Output: buf, Component: component})
}

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, ComponentApp).With("k", "v").WithComponent(ComponentRecords)
	l.Info("hello")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, ComponentRecords, lines[0][FieldComponent])
	assert.Equal(t, "v", lines[0]["k"])
	assert.Equal(t, 1, strings.Count(buf.String(), `"component"`))
	assert.Equal(t, ComponentRecords, l.Component())
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat(" JSON "))
	assert.Equal(t, FormatText, ParseFormat(""))
	assert.Equal(t, FormatText, ParseFormat("yaml"))
}

func TestMiddlewareAttachesLogger(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, ComponentHTTP)
	h := Middleware(l)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "req-1", lines[0][FieldRequestID])
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.Equal(t, "", l.Component())
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(jsonLogger(&buf, ComponentApp))
	ctx := context.Background()

	sl.LogRecordCreated(ctx, "1767645000000", "2026-01-05", "win", 12050, 500, "1/2")
	sl.LogError(ctx, "Failed to delete record", errors.New("boom"), ComponentRecords, OpDelete, nil)
	req := httptest.NewRequest(http.MethodPost, "/records?x=1", nil)
	sl.LogHTTPEnd(ctx, req, "req-2", http.StatusUnprocessableEntity, 3, "10.0.0.1")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)

	assert.Equal(t, "Record stored", lines[0]["msg"])
	assert.Equal(t, ComponentRecords, lines[0][FieldComponent])
	assert.Equal(t, float64(12050), lines[0][FieldAmountCents])
	assert.Equal(t, OpCreate, lines[0][FieldOperation])

	assert.Equal(t, "ERROR", lines[1]["level"])
	assert.Equal(t, "boom", lines[1][FieldError])
	assert.Equal(t, OpDelete, lines[1][FieldOperation])

	assert.Equal(t, "WARN", lines[2]["level"])
	assert.Equal(t, ComponentHTTP, lines[2][FieldComponent])
	assert.Equal(t, float64(422), lines[2][FieldStatusCode])
	assert.Equal(t, "req-2", lines[2][FieldRequestID])
	assert.Equal(t, false, lines[2][FieldSuccess])
}
