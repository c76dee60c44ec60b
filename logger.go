package pluggable

// Logger defines the interface for registry logging.
// The registry uses structured logging with key-value pairs so callers can route
// its output into slog, zerolog, zap or any other structured logger:
//
//	logger.Info("Plugin loaded", "plugin", "auth")
type Logger interface {
	// Info logs an informational message with optional key-value pairs.
	Info(msg string, args ...any)

	// Error logs an error message with optional key-value pairs.
	Error(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, args ...any)

	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, args ...any)
}

// NoopLogger discards everything. It is the default logger of a Registry.
type NoopLogger struct{}

func (NoopLogger) Info(string, ...any)  {}
func (NoopLogger) Error(string, ...any) {}
func (NoopLogger) Warn(string, ...any)  {}
func (NoopLogger) Debug(string, ...any) {}
