package logger

import (
	"io"
	"log/slog"
)

// Format selects the record layout a logger writes.
type Format int

const (
	// FormatText is slog's key=value layout.
	FormatText Format = iota

	// FormatJSON writes one object per line. It is what --log-file gets,
	// so a session can be replayed with jq.
	FormatJSON

	// FormatPretty is the colorized charm layout for --debug on a terminal.
	FormatPretty
)

// Option configures a logger built by New.
type Option func(*config)

// WithFormat picks the record layout.
func WithFormat(f Format) Option {
	return func(c *config) {
		c.format = f
	}
}

// WithDebug lowers the level to Debug, where per-frame and per-exchange
// records are written.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithWriter sets the destination. New writes to os.Stdout without it.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.out = w
	}
}

// WithSource adds the caller's file:line to every record.
func WithSource(source bool) Option {
	return func(c *config) {
		c.source = source
	}
}
