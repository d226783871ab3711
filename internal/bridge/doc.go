// Package bridge connects the state store and event bus to MQTT.
//
// Inbound, a message on <prefix>/state/set/<entity_id> sets that entity
// and a message on <prefix>/event/<type> fires an event whose data is the
// JSON payload. Outbound, every state change is published retained to
// <prefix>/state/<entity_id>, so other systems can follow script-driven
// state without polling.
package bridge
