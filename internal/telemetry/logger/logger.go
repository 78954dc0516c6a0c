// Package logger provides structured logging for TokenGate.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Logger is the application logger interface.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithContext(ctx context.Context) Logger
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Format is the output format (json, text).
	Format string
	// Output is the output writer (defaults to os.Stderr).
	Output io.Writer
	// AddSource adds source file information to log entries.
	AddSource bool
}

// DefaultConfig returns the configuration used until the daemon has
// loaded its own: info-level JSON on stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stderr}
}

// levels maps configuration names to slog levels. Order matters for
// the reverse lookup: the first name wins, so "warn" is reported over
// "warning".
var levels = []struct {
	name  string
	level slog.Level
}{
	{"debug", slog.LevelDebug},
	{"info", slog.LevelInfo},
	{"warn", slog.LevelWarn},
	{"warning", slog.LevelWarn},
	{"error", slog.LevelError},
}

// parseLevel falls back to info so a typo in the configured level
// cannot silence the daemon.
func parseLevel(name string) slog.Level {
	name = strings.ToLower(name)
	for _, l := range levels {
		if l.name == name {
			return l.level
		}
	}
	return slog.LevelInfo
}

func levelName(lvl slog.Level) string {
	for _, l := range levels {
		if l.level == lvl {
			return l.name
		}
	}
	return "info"
}

// globalLevel backs every handler built by New, so SetLevel applies to
// all of them at once.
var globalLevel = new(slog.LevelVar)

// SetLevel adjusts the level of every logger built by New. The config
// watcher uses this to apply level changes without a restart.
func SetLevel(level string) {
	globalLevel.Set(parseLevel(level))
}

// GetLevel reports the current level in configuration form.
func GetLevel() string {
	return levelName(globalLevel.Level())
}

// New builds a Logger writing structured entries to cfg.Output.
// Sensitive attributes are redacted before the handler sees them.
func New(cfg Config) (Logger, error) {
	globalLevel.Set(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     globalLevel,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			return redactSensitive(a)
		},
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text", "console":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	return &slogAdapter{log: slog.New(handler), ctx: context.Background()}, nil
}

// slogAdapter implements Logger over a slog.Logger, carrying the
// context passed to handler calls.
type slogAdapter struct {
	log *slog.Logger
	ctx context.Context
}

func (l *slogAdapter) Debug(msg string, args ...any) { l.log.DebugContext(l.ctx, msg, args...) }
func (l *slogAdapter) Info(msg string, args ...any)  { l.log.InfoContext(l.ctx, msg, args...) }
func (l *slogAdapter) Warn(msg string, args ...any)  { l.log.WarnContext(l.ctx, msg, args...) }
func (l *slogAdapter) Error(msg string, args ...any) { l.log.ErrorContext(l.ctx, msg, args...) }

func (l *slogAdapter) With(args ...any) Logger {
	return &slogAdapter{log: l.log.With(args...), ctx: l.ctx}
}

func (l *slogAdapter) WithContext(ctx context.Context) Logger {
	return &slogAdapter{log: l.log, ctx: ctx}
}

var (
	defaultMu  sync.RWMutex
	defaultLog Logger
)

func init() {
	defaultLog, _ = New(DefaultConfig())
}

// SetDefault replaces the process-wide logger returned by Default.
func SetDefault(l Logger) {
	if l == nil {
		return
	}
	defaultMu.Lock()
	defaultLog = l
	defaultMu.Unlock()
}

// Default returns the process-wide logger. Components not handed a
// logger explicitly fall back to it.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLog
}
