package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-script/internal/script/eval"
	"github.com/nerrad567/gray-logic-script/internal/state"
)

type setStateRequest struct {
	Value      any            `json:"value"`
	Attributes map[string]any `json:"attributes"`
}

// handleListStates returns every entity, sorted by id.
func (s *Server) handleListStates(w http.ResponseWriter, _ *http.Request) {
	entities := s.store.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"states": entities,
		"count":  len(entities),
	})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.Entity(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, CodeEntityNotFound, "entity %s not found", chi.URLParam(r, "id"))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleSetState writes an entity. The value is stored in its script
// string form, so true becomes "True" exactly as a script assignment would.
func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setStateRequest
	if err := decodeBody(r, &req); err != nil {
		fail(w, CodeInvalidBody, "invalid JSON body")
		return
	}
	if req.Value == nil {
		fail(w, CodeMissingField, "value is required")
		return
	}

	err := s.store.Set(id, eval.Str(eval.FromNative(req.Value)), req.Attributes)
	if errors.Is(err, state.ErrInvalidName) {
		fail(w, CodeInvalidEntity, "entity id %q must look like domain.name", id)
		return
	}
	if err != nil {
		fail(w, CodeInternal, "failed to set state")
		return
	}

	e, err := s.store.Entity(id)
	if err != nil {
		fail(w, CodeInternal, "failed to read state")
		return
	}
	writeJSON(w, http.StatusOK, e)
}
