package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// -----------------------------------------------------------------------------

// Logger provides named, leveled logging for one component
type Logger struct {
	name   string
	base   zerolog.Logger
	logger zerolog.Logger
}

// -----------------------------------------------------------------------------

// NewLogger creates a console Logger at the given level ("DEBUG", "INFO", ...)
func NewLogger(level string, name string) *Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return NewLoggerWithOutput(level, name, output)
}

// -----------------------------------------------------------------------------

// NewLoggerWithOutput creates a Logger writing to w
func NewLoggerWithOutput(level string, name string, w io.Writer) *Logger {
	base := zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()

	return &Logger{
		name:   name,
		base:   base,
		logger: base.With().Str("component", name).Logger(),
	}
}

// -----------------------------------------------------------------------------

// NewSilentLogger discards everything. Used by tests.
func NewSilentLogger() *Logger {
	return &Logger{name: "silent", base: zerolog.Nop(), logger: zerolog.Nop()}
}

// -----------------------------------------------------------------------------

// Named derives a child logger sharing the level and output
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		name:   name,
		base:   l.base,
		logger: l.base.With().Str("component", name).Logger(),
	}
}

// -----------------------------------------------------------------------------

// Debug logs debugging messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.logger.WithLevel(zerolog.FatalLevel).Msgf(format, args...)
	os.Exit(1)
}

// -----------------------------------------------------------------------------

func parseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
