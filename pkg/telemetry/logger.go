package telemetry

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with ralf-specific fields.
type Logger struct {
	zlog   zerolog.Logger
	config LoggingConfig
}

// loggerContextKey is the context key for logger instances.
type loggerContextKey struct{}

// NewLogger creates a logger writing to cfg.Output. Stderr output goes to w
// instead when w is non-nil.
func NewLogger(cfg LoggingConfig, w io.Writer) (*Logger, error) {
	var writer io.Writer
	switch cfg.Output {
	case "", "stderr":
		writer = os.Stderr
		if w != nil {
			writer = w
		}
	case "stdout":
		writer = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		writer = file
	}

	if cfg.Format != "json" {
		writer = zerolog.ConsoleWriter{
			Out:        writer,
			TimeFormat: time.RFC3339,
			NoColor:    w != nil,
		}
	}

	zlog := zerolog.New(writer).With().Timestamp().Logger().Level(parseLogLevel(cfg.Level))

	return &Logger{
		zlog:   zlog,
		config: cfg,
	}, nil
}

// NopLogger returns a logger that discards everything.
func NopLogger() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Zerolog returns the underlying zerolog logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// NewComponentLogger creates a child logger for a specific component.
func (l *Logger) NewComponentLogger(component string) *Logger {
	return &Logger{
		zlog:   l.zlog.With().Str("component", component).Logger(),
		config: l.config,
	}
}

// WithContext adds the logger to the context.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// FromContext retrieves the logger from the context.
// If no logger is found, it returns a logger that discards everything.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerContextKey{}).(*Logger); ok {
		return l
	}
	return NopLogger()
}

// WithField returns a logger with a single additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		zlog:   l.zlog.With().Interface(key, value).Logger(),
		config: l.config,
	}
}

// WithProfile adds the profile name to the logger.
func (l *Logger) WithProfile(name string) *Logger {
	return &Logger{
		zlog:   l.zlog.With().Str("profile", name).Logger(),
		config: l.config,
	}
}

// WithError adds error information to the logger.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		zlog:   l.zlog.With().Err(err).Logger(),
		config: l.config,
	}
}

// Debug logs a debug-level message.
func (l *Logger) Debug(msg string) {
	l.zlog.Debug().Msg(msg)
}

// Debugf logs a formatted debug-level message.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Info logs an info-level message.
func (l *Logger) Info(msg string) {
	l.zlog.Info().Msg(msg)
}

// Infof logs a formatted info-level message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Warn logs a warning-level message.
func (l *Logger) Warn(msg string) {
	l.zlog.Warn().Msg(msg)
}

// Warnf logs a formatted warning-level message.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// Error logs an error-level message.
func (l *Logger) Error(msg string) {
	l.zlog.Error().Msg(msg)
}

// parseLogLevel converts a string log level to zerolog.Level.
func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
