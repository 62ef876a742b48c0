// Package logging carries conversion correlation through context.Context and
// injects it into log/slog records.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type ctxKey int

const (
	conversionIDKey ctxKey = iota
	sourceKey
	stepIDKey
)

// Attribute names written by LogWith and CorrelationHandler.
const (
	AttrConversionID = "conversion_id"
	AttrSource       = "source"
	AttrStepID       = "step_id"
)

var correlated = []struct {
	key  ctxKey
	attr string
}{
	{conversionIDKey, AttrConversionID},
	{sourceKey, AttrSource},
	{stepIDKey, AttrStepID},
}

// WithConversionID returns a context tagged with the id of one conversion
// request.
func WithConversionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, conversionIDKey, id)
}

// WithSource returns a context tagged with the surface that started the
// conversion, such as "cli" or "mcp".
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey, source)
}

// WithStepID returns a context tagged with the step being reported on.
func WithStepID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, stepIDKey, id)
}

// ConversionID returns the conversion id, or "".
func ConversionID(ctx context.Context) string {
	return value(ctx, conversionIDKey)
}

// Source returns the source, or "".
func Source(ctx context.Context) string {
	return value(ctx, sourceKey)
}

// StepID returns the step id, or "".
func StepID(ctx context.Context) string {
	return value(ctx, stepIDKey)
}

func value(ctx context.Context, k ctxKey) string {
	v, _ := ctx.Value(k).(string)
	return v
}

// WithIDs sets every correlation value at once. Empty values are left unset.
func WithIDs(ctx context.Context, conversionID, source, stepID string) context.Context {
	if conversionID != "" {
		ctx = WithConversionID(ctx, conversionID)
	}
	if source != "" {
		ctx = WithSource(ctx, source)
	}
	if stepID != "" {
		ctx = WithStepID(ctx, stepID)
	}
	return ctx
}

// attrs returns the non-empty correlation values of ctx as attributes.
func attrs(ctx context.Context) []slog.Attr {
	var out []slog.Attr
	for _, c := range correlated {
		if v := value(ctx, c.key); v != "" {
			out = append(out, slog.String(c.attr, v))
		}
	}
	return out
}

// LogWith returns logger enriched with the correlation values of ctx.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	for _, a := range attrs(ctx) {
		logger = logger.With(a)
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler and adds the correlation values
// of the record's context to every record, so logger.DebugContext(ctx, ...)
// is enough at call sites.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps inner.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(attrs(ctx)...)
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(as []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(as)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", s)
	}
	return l, nil
}

// New builds a correlated logger writing to w in the given format, "text"
// or "json".
func New(w io.Writer, level slog.Level, format string) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: level}
	var inner slog.Handler
	switch format {
	case "text", "":
		inner = slog.NewTextHandler(w, opts)
	case "json":
		inner = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("logging: unknown format %q (want text or json)", format)
	}
	return slog.New(NewCorrelationHandler(inner)), nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
