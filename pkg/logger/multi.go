package logger

import (
	"context"
	"errors"
	"log/slog"
)

// Multi joins loggers into one that writes every record to each of them.
// The chat command pairs a JSON file sink with pretty stderr output this
// way. A single logger is returned as is.
func Multi(loggers ...*slog.Logger) *slog.Logger {
	if len(loggers) == 1 {
		return loggers[0]
	}

	sinks := make(fanout, 0, len(loggers))
	for _, l := range loggers {
		sinks = append(sinks, l.Handler())
	}
	return slog.New(sinks)
}

// fanout is a slog.Handler over several sinks, each keeping its own level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle gives each sink its own copy of r. A failing sink does not stop
// the others; their errors are joined.
func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(derive func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = derive(h)
	}
	return out
}
