package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "Failed to parse JSON: %s", buf.String())
	return entry
}

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("petcore", "1.0.0", "json", slog.LevelInfo, &buf)

	logger.Info("pet fed", "character", "pet")

	entry := decode(t, &buf)
	assert.Equal(t, "pet fed", entry["msg"])
	assert.Equal(t, "petcore", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Equal(t, "pet", entry["character"])
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("petcore", "1.0.0", "text", slog.LevelInfo, &buf)

	logger.Info("pet fed")

	assert.Contains(t, buf.String(), "pet fed")
	assert.Contains(t, buf.String(), "service=petcore")
}

func TestSetup_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("petcore", "1.0.0", "json", slog.LevelWarn, &buf)

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestHandler_TraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("petcore", "1.0.0", "json", slog.LevelDebug, &buf)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	logger.InfoContext(ctx, "traced message")

	entry := decode(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestHandler_NoTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("petcore", "1.0.0", "json", slog.LevelDebug, &buf)

	logger.Info("no trace message")

	entry := decode(t, &buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
}

func TestHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("petcore", "1.0.0", "json", slog.LevelDebug, &buf).
		With("component", "queue").
		WithGroup("task")

	logger.Info("done", "action", "feed")

	entry := decode(t, &buf)
	assert.Equal(t, "queue", entry["component"])
	group, ok := entry["task"].(map[string]any)
	require.True(t, ok, "group missing: %v", entry)
	assert.Equal(t, "feed", group["action"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	var buf bytes.Buffer
	logger := SetDefault("petcore", "2.0.0", "json", slog.LevelInfo, &buf)
	assert.Same(t, logger, slog.Default())

	slog.Info("via default")
	assert.Equal(t, "2.0.0", decode(t, &buf)["version"])
}

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("UNKNOWN_ACTION").
		With("action", "dance").
		Errorf("no such action")

	LogError(logger, "task failed", err)

	entry := decode(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "task failed", entry["msg"])
	assert.Equal(t, "UNKNOWN_ACTION", entry["code"])
	ctx, ok := entry["context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "dance", ctx["action"])
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	LogError(logger, "task failed", errors.New("standard error"))

	entry := decode(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Contains(t, entry["error"], "standard error")
	assert.NotContains(t, entry, "code")
}
