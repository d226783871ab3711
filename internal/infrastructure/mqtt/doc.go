// Package mqtt connects glscript to an MQTT broker.
//
// The client keeps a route per subscribed topic and restores every route
// after a reconnect. A retained JSON status message on <prefix>/status
// reads "online" while connected; the broker's Last Will flips it to
// "offline" if the process dies.
//
// Topics builds the topic names the state bridge uses:
//
//	<prefix>/state/<entity_id>      retained state, published
//	<prefix>/state/set/<entity_id>  state writes from other systems
//	<prefix>/event/<event_type>     events fired into scripts
//	<prefix>/status                 online/offline
//
// Enable TLS (cfg.Broker.TLS) for any broker reached over a network and
// supply credentials through GLSCRIPT_MQTT_USERNAME/PASSWORD.
package mqtt
