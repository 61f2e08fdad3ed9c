package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcb/mcp-context-browser/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("anything"))
}

func TestNewWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.NewLoggingConfig().WithFormat(config.LogFormatJSON)
	logger := NewWithWriter(&buf, cfg)

	logger.Info("indexing started", slog.String("collection", "repo"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "indexing started", record["msg"])
	assert.Equal(t, "repo", record["collection"])
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.NewLoggingConfig().WithLevel("ERROR").WithFormat(config.LogFormatJSON)
	logger := NewWithWriter(&buf, cfg)

	logger.Info("suppressed")
	logger.Error("kept")

	assert.NotContains(t, buf.String(), "suppressed")
	assert.Contains(t, buf.String(), "kept")
}

func TestTerminalHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.NewLoggingConfig())

	logger.Warn("circuit opened", slog.String("provider", "openai"))

	out := buf.String()
	assert.Contains(t, out, "WRN")
	assert.Contains(t, out, "circuit opened")
	assert.Contains(t, out, "provider=")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestTerminalHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.NewLoggingConfig())

	logger.WithGroup("router").Info("provider selected", slog.String("name", "openai"))

	assert.Contains(t, buf.String(), "router.name=")
}

func TestCorrelationID(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "abc-123")
	assert.Equal(t, "abc-123", CorrelationID(ctx))

	generated := WithCorrelationID(context.Background(), "")
	assert.NotEmpty(t, CorrelationID(generated))

	assert.Empty(t, CorrelationID(context.Background()))
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.NewLoggingConfig().WithFormat(config.LogFormatJSON)
	logger := NewWithWriter(&buf, cfg)

	ctx := WithCorrelationID(context.Background(), "abc-123")
	FromContext(ctx, logger).Info("sync completed")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "abc-123", record["correlation_id"])
}
