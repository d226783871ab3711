// Package event is the in-process event bus.
//
// Trigger queues subscribe by event type. Firing an event puts one message
// on every queue subscribed to its type, with the event data merged into
// the call arguments. Optional listeners see every fired event regardless
// of type; the WebSocket hub and the MQTT bridge use them.
package event
