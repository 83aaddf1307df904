package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLogger keeps one line per call, prefixed with the level.
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) log(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprint(append([]any{level, " ", msg, " "}, args...)...))
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.log("DEBUG", msg, args...) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.log("INFO", msg, args...) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.log("WARN", msg, args...) }
func (l *recordingLogger) Error(msg string, args ...any) { l.log("ERROR", msg, args...) }

func TestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		level  string
		route  string
	}{
		{"ok", "/prefs/Settings:Ratio", http.StatusOK, "INFO", "/prefs/{key}"},
		{"client error", "/prefs/Settings:Nope", http.StatusNotFound, "WARN", "/prefs/{key}"},
		{"server error", "/prefs/boom", http.StatusInternalServerError, "ERROR", "/prefs/{key}"},
		{"health", "/health", http.StatusOK, "DEBUG", "/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &recordingLogger{}
			r := chi.NewRouter()
			r.Use(LoggerMiddleware(logger))
			handler := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(tt.status) }
			r.Get("/prefs/{key}", handler)
			r.Get("/health", handler)

			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Len(t, logger.lines, 1)
			line := logger.lines[0]
			assert.True(t, strings.HasPrefix(line, tt.level+" "), line)
			assert.Contains(t, line, tt.route)
		})
	}
}
