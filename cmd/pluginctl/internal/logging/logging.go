// Package logging adapts zerolog to the pluggable.Logger interface.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/GoCodeAlone/pluggable"
)

// Logger writes pluggable log records through zerolog. Arguments after the
// message are read as key/value pairs.
type Logger struct {
	zlog zerolog.Logger
}

// New creates a logger writing to w. format is "console" or "json".
func New(w io.Writer, level, format string) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	switch format {
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case "json":
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	return &Logger{zlog: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}, nil
}

// ParseLevel converts a level name to a zerolog level. An empty name means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// With returns a logger adding the component field to every record.
func (l *Logger) With(component string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", component).Logger()}
}

// Zerolog returns the underlying zerolog logger.
func (l *Logger) Zerolog() zerolog.Logger { return l.zlog }

func (l *Logger) Info(msg string, args ...any)  { l.zlog.Info().Fields(args).Msg(msg) }
func (l *Logger) Error(msg string, args ...any) { l.zlog.Error().Fields(args).Msg(msg) }
func (l *Logger) Warn(msg string, args ...any)  { l.zlog.Warn().Fields(args).Msg(msg) }
func (l *Logger) Debug(msg string, args ...any) { l.zlog.Debug().Fields(args).Msg(msg) }

var _ pluggable.Logger = (*Logger)(nil)
