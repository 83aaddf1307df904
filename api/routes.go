package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.SetHeader("Content-Type", "application/json"))

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", s.handleListGroups)
			r.Get("/{type}", s.handleGetGroup)
			r.Get("/{type}/events", s.handleGroupEvents)
		})

		r.Route("/prefs", func(r chi.Router) {
			r.Get("/{key}", s.handleGetPref)
			r.Put("/{key}", s.handleSetPref)
			r.Delete("/{key}", s.handleResetPref)
		})
	})
}
