package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-script/internal/event"
	"github.com/nerrad567/gray-logic-script/internal/state"
)

// Channel names on the WebSocket stream.
const (
	ChannelStateChanged = "state_changed"
	channelEventPrefix  = "event."
)

// handleFireEvent fires an event whose data is the JSON object body.
func (s *Server) handleFireEvent(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "type")

	data := map[string]any{}
	if err := decodeBody(r, &data); err != nil {
		fail(w, CodeInvalidBody, "event data must be a JSON object")
		return
	}

	s.bus.Fire(eventType, data)
	writeJSON(w, http.StatusOK, map[string]any{"event_type": eventType, "fired": true})
}

type stateChangedPayload struct {
	EntityID   string         `json:"entity_id"`
	Value      string         `json:"value"`
	OldValue   any            `json:"old_value"`
	Attributes map[string]any `json:"attributes"`
}

// relayState broadcasts a state change to WebSocket subscribers.
func (s *Server) relayState(c state.Change) {
	s.hub.Broadcast(ChannelStateChanged, stateChangedPayload{
		EntityID:   c.EntityID,
		Value:      c.Value,
		OldValue:   c.Old(),
		Attributes: c.Attributes,
	})
}

// relayEvent broadcasts a fired event to WebSocket subscribers.
func (s *Server) relayEvent(e event.Event) {
	s.hub.Broadcast(channelEventPrefix+e.Type, e)
}
