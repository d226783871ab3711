package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter mounts the API under /api/v1. Login, health and the
// ticket-authenticated WebSocket are public; everything else needs a
// bearer token.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware, s.loggingMiddleware, s.recoveryMiddleware,
		s.corsMiddleware, s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/auth/login", s.handleLogin)
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/auth/ws-ticket", s.handleWSTicket)
			s.mountEntities(r)
			s.mountScripts(r)
		})
	})
	return r
}

// mountEntities serves the state store, the event bus and services: the
// surfaces shared with scripts.
func (s *Server) mountEntities(r chi.Router) {
	r.Get("/states", s.handleListStates)
	r.Get("/states/{id}", s.handleGetState)
	r.Put("/states/{id}", s.handleSetState)
	r.Post("/events/{type}", s.handleFireEvent)
	r.Get("/services", s.handleListServices)
	r.Post("/services/{domain}/{name}", s.handleCallService)
}

// mountScripts serves introspection and control of the loaded scripts.
func (s *Server) mountScripts(r chi.Router) {
	r.Get("/functions", s.handleListFunctions)
	r.Get("/triggers", s.handleListTriggers)
	r.Get("/tasks", s.handleListTasks)
	r.Post("/reload", s.handleReload)
	r.Post("/eval", s.handleEval)
}

// handleHealth reports liveness with the running task and WebSocket
// client counts.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"tasks":   len(s.rt.Tasks()),
		"clients": s.hub.ClientCount(),
	})
}

// handleListTasks returns the running script tasks, oldest first.
func (s *Server) handleListTasks(w http.ResponseWriter, _ *http.Request) {
	tasks := s.rt.Tasks()
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"count": len(tasks),
	})
}
