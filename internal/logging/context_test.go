package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func debugText(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func debugJSON(buf *bytes.Buffer) *slog.Logger {
	inner := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewCorrelationHandler(inner))
}

// --- context values ---

func TestContextKeys(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", ConversionID(ctx))
	assert.Equal(t, "", Source(ctx))
	assert.Equal(t, "", StepID(ctx))

	ctx = WithConversionID(ctx, "conv-1")
	ctx = WithSource(ctx, "cli")
	ctx = WithStepID(ctx, "send_email")

	assert.Equal(t, "conv-1", ConversionID(ctx))
	assert.Equal(t, "cli", Source(ctx))
	assert.Equal(t, "send_email", StepID(ctx))
}

func TestWithIDs_SkipsEmpty(t *testing.T) {
	ctx := WithConversionID(context.Background(), "keep")
	ctx = WithIDs(ctx, "", "mcp", "")

	assert.Equal(t, "keep", ConversionID(ctx))
	assert.Equal(t, "mcp", Source(ctx))
	assert.Equal(t, "", StepID(ctx))
}

// --- LogWith ---

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithIDs(context.Background(), "conv-abc", "cli", "log_2")

	LogWith(ctx, debugText(&buf)).Info("converted")

	out := buf.String()
	assert.Contains(t, out, "conversion_id=conv-abc")
	assert.Contains(t, out, "source=cli")
	assert.Contains(t, out, "step_id=log_2")
	assert.Contains(t, out, "converted")
}

func TestLogWith_EmptyContext(t *testing.T) {
	var buf bytes.Buffer
	LogWith(context.Background(), debugText(&buf)).Info("bare")

	out := buf.String()
	assert.NotContains(t, out, AttrConversionID)
	assert.NotContains(t, out, AttrSource)
	assert.NotContains(t, out, AttrStepID)
	assert.Contains(t, out, "bare")
}

// --- CorrelationHandler ---

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithIDs(context.Background(), "conv-auto", "mcp", "check")

	debugJSON(&buf).InfoContext(ctx, "auto inject")

	out := buf.String()
	assert.Contains(t, out, `"conversion_id":"conv-auto"`)
	assert.Contains(t, out, `"source":"mcp"`)
	assert.Contains(t, out, `"step_id":"check"`)
}

func TestCorrelationHandler_PartialContext(t *testing.T) {
	var buf bytes.Buffer
	debugJSON(&buf).InfoContext(WithSource(context.Background(), "cli"), "partial")

	out := buf.String()
	assert.Contains(t, out, `"source":"cli"`)
	assert.NotContains(t, out, AttrConversionID)
	assert.NotContains(t, out, AttrStepID)
}

func TestCorrelationHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	h := NewCorrelationHandler(inner)

	ctx := WithConversionID(context.Background(), "conv-attr")
	slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "convert")})).InfoContext(ctx, "with attrs")
	assert.Contains(t, buf.String(), `"conversion_id":"conv-attr"`)
	assert.Contains(t, buf.String(), `"component":"convert"`)

	buf.Reset()
	slog.New(h.WithGroup("phase")).InfoContext(ctx, "grouped", "k", "v")
	assert.Contains(t, buf.String(), "conv-attr")
	assert.Contains(t, buf.String(), "grouped")
}

// --- construction ---

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, slog.LevelInfo, "json")
	require.NoError(t, err)

	ctx := WithConversionID(context.Background(), "conv-new")
	logger.DebugContext(ctx, "hidden")
	logger.InfoContext(ctx, "shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"conversion_id":"conv-new"`)

	_, err = New(&buf, slog.LevelInfo, "xml")
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}
