package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/CreativeUnicorns/prefer"
)

// LoggerMiddleware logs one line per request. The level follows the response
// status: 5xx at error, 4xx at warn, health checks and event streams at
// debug, everything else at info. The matched route pattern is logged so
// requests for different prefs group together.
func LoggerMiddleware(logger prefer.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			args := []any{
				"method", r.Method,
				"route", route,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			}
			requestLog(logger, ww.Status(), route)("HTTP request", args...)
		})
	}
}

func requestLog(logger prefer.Logger, status int, route string) func(string, ...any) {
	switch {
	case status >= http.StatusInternalServerError:
		return logger.Error
	case status >= http.StatusBadRequest:
		return logger.Warn
	case strings.HasSuffix(route, "/health"), strings.HasSuffix(route, "/events"):
		return logger.Debug
	default:
		return logger.Info
	}
}
