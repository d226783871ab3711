package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-script/internal/runtime"
)

// handleListServices returns every registered service.
func (s *Server) handleListServices(w http.ResponseWriter, _ *http.Request) {
	services := s.rt.Services()
	writeJSON(w, http.StatusOK, map[string]any{
		"services": services,
		"count":    len(services),
	})
}

// handleCallService calls domain.name with the JSON object body as data.
// Script services run as background tasks, so a 200 means "started".
func (s *Server) handleCallService(w http.ResponseWriter, r *http.Request) {
	domain, name := chi.URLParam(r, "domain"), chi.URLParam(r, "name")

	data := map[string]any{}
	if err := decodeBody(r, &data); err != nil {
		fail(w, CodeInvalidBody, "service data must be a JSON object")
		return
	}

	err := s.rt.CallService(r.Context(), domain, name, data)
	switch {
	case errors.Is(err, runtime.ErrServiceNotFound):
		fail(w, CodeServiceNotFound, "service %s.%s not found", domain, name)
	case err != nil:
		s.logger.Error("service call failed", "service", domain+"."+name, "error", err)
		fail(w, CodeServiceFailed, "%s", err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]any{"service": domain + "." + name, "called": true})
	}
}
