package prefer

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelDebug)
	slogHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: levelVar,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Remove time for consistent test output
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})

	logger := &defaultSlogLogger{
		slogger:  slog.New(slogHandler),
		levelVar: levelVar,
	}

	logger.Debug("Debug message", "arg1", 123)
	logger.Info("Info message")
	logger.Warn("Warn message", "key_warn", "val_warn")
	logger.Error("Error message", "key_err", "val_err")

	logOutput := buf.String()

	expected := []string{
		"level=DEBUG msg=\"Debug message\" arg1=123",
		"level=INFO msg=\"Info message\"",
		"level=WARN msg=\"Warn message\" key_warn=val_warn",
		"level=ERROR msg=\"Error message\" key_err=val_err",
	}
	for _, want := range expected {
		if !strings.Contains(logOutput, want) {
			t.Errorf("Message not logged correctly.\nExpected to contain: %s\nGot: %s", want, logOutput)
		}
	}

	buf.Reset()
	logger.SetLevel(LogLevelWarn)
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("Info message logged after raising level to warn: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("Warn message missing after raising level: %s", buf.String())
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LogLevelDebug,
		"info":    LogLevelInfo,
		"warn":    LogLevelWarn,
		"warning": LogLevelWarn,
		"error":   LogLevelError,
		"bogus":   LogLevelInfo,
		"":        LogLevelInfo,
	}
	for name, want := range tests {
		if got := ParseLogLevel(name); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestZapLogger(t *testing.T) {
	level := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	core, logs := observer.New(level)
	logger := NewZapLoggerFrom(zap.New(core), level)

	logger.Debug("debug message", "key", "value")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message", "count", 2)

	if logs.Len() != 4 {
		t.Fatalf("Expected 4 log entries, got %d", logs.Len())
	}
	first := logs.All()[0]
	if first.Message != "debug message" || first.ContextMap()["key"] != "value" {
		t.Errorf("Unexpected first entry: %+v", first)
	}

	logger.SetLevel(LogLevelError)
	logger.Warn("suppressed")
	if logs.FilterMessage("suppressed").Len() != 0 {
		t.Errorf("Warn entry logged after raising level to error")
	}
}
