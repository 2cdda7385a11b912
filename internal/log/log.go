// Package log sets up the process-wide slog logger and carries
// per-invocation attributes through the context.
package log

import (
	"context"
	"log/slog"
	"os"
)

type attrsKey struct{}

// ContextAttrs returns a context carrying the given attributes on top of
// any it already holds. Every record logged with that context gets them
// appended, typically the invocation id and the command group.
func ContextAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	existing, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, attrsKey{}, merged)
}

// handler decorates another slog.Handler with the attributes carried by
// the record's context.
type handler struct {
	inner slog.Handler
}

func (h handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h handler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(attrsKey{}).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}
	return h.inner.Handle(ctx, r)
}

func (h handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return handler{inner: h.inner.WithAttrs(attrs)}
}

func (h handler) WithGroup(name string) slog.Handler {
	return handler{inner: h.inner.WithGroup(name)}
}

// New builds the root logger. Records go to stderr only: stdout belongs
// to the child process whenever its output is inherited or relayed.
func New(format string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var base slog.Handler
	switch format {
	case "text":
		base = slog.NewTextHandler(os.Stderr, opts)
	default:
		base = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler{inner: base})
}
