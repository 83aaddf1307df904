// Package prefer provides default logging implementations.
package prefer

import (
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel defines the various log levels.
// These correspond to slog's levels.
type LogLevel int

// Log level constants, mirroring slog levels for internal mapping.
const (
	LogLevelDebug LogLevel = LogLevel(slog.LevelDebug) // Debug messages
	LogLevelInfo  LogLevel = LogLevel(slog.LevelInfo)  // Informational messages
	LogLevelWarn  LogLevel = LogLevel(slog.LevelWarn)  // Warning messages
	LogLevelError LogLevel = LogLevel(slog.LevelError) // Error messages
)

// ParseLogLevel maps "debug", "info", "warn" and "error" to a LogLevel.
// Unknown names fall back to LogLevelInfo.
func ParseLogLevel(name string) LogLevel {
	switch name {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LeveledLogger is a Logger whose level can be changed at runtime.
type LeveledLogger interface {
	Logger
	SetLevel(level LogLevel)
}

// defaultSlogLogger is an implementation of the Logger interface using the slog package.
type defaultSlogLogger struct {
	slogger  *slog.Logger
	levelVar *slog.LevelVar // To control the log level dynamically
}

// NewDefaultLogger initializes a new slog based logger.
// It defaults to a JSON handler writing to os.Stderr with slog.LevelInfo.
// The log level can be changed dynamically via the SetLevel method.
func NewDefaultLogger() LeveledLogger {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)

	handlerOpts := &slog.HandlerOptions{
		Level: levelVar,
	}
	return &defaultSlogLogger{
		slogger:  slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts)),
		levelVar: levelVar,
	}
}

// Debug logs a debug-level message.
func (l *defaultSlogLogger) Debug(msg string, args ...any) {
	l.slogger.Debug(msg, args...)
}

// Info logs an info-level message.
func (l *defaultSlogLogger) Info(msg string, args ...any) {
	l.slogger.Info(msg, args...)
}

// Warn logs a warning-level message.
func (l *defaultSlogLogger) Warn(msg string, args ...any) {
	l.slogger.Warn(msg, args...)
}

// Error logs an error-level message.
func (l *defaultSlogLogger) Error(msg string, args ...any) {
	l.slogger.Error(msg, args...)
}

// SetLevel changes the logging level of the defaultSlogLogger dynamically.
func (l *defaultSlogLogger) SetLevel(level LogLevel) {
	if l.levelVar != nil {
		l.levelVar.Set(slog.Level(level))
	}
}

// zapLogger adapts a zap.SugaredLogger to the Logger interface.
type zapLogger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

// NewZapLogger builds a human readable console logger on top of zap,
// writing to stdout. It is meant for interactive use of the server binary;
// services should prefer the JSON output of NewDefaultLogger.
func NewZapLogger(level LogLevel) (LeveledLogger, error) {
	atomic := zap.NewAtomicLevelAt(toZapLevel(level))

	config := zap.Config{
		Level:            atomic,
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	logger, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}

	return &zapLogger{sugar: logger.Sugar(), level: atomic}, nil
}

// NewZapLoggerFrom wraps an existing zap logger. SetLevel only has an effect
// when level is the AtomicLevel the core was built with.
func NewZapLoggerFrom(logger *zap.Logger, level zap.AtomicLevel) LeveledLogger {
	return &zapLogger{sugar: logger.Sugar(), level: level}
}

func (l *zapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *zapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *zapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *zapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

func (l *zapLogger) SetLevel(level LogLevel) {
	l.level.SetLevel(toZapLevel(level))
}

func toZapLevel(level LogLevel) zapcore.Level {
	switch {
	case level <= LogLevelDebug:
		return zapcore.DebugLevel
	case level <= LogLevelInfo:
		return zapcore.InfoLevel
	case level <= LogLevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
