package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configuration leaves topic_prefix
// empty.
const DefaultTopicPrefix = "glscript"

// Topics builds the topic names under one prefix.
//
//	topics := mqtt.NewTopics("home")
//	topics.State("sensor.door")    // "home/state/sensor.door"
//	topics.StateSet("light.porch") // "home/state/set/light.porch"
type Topics struct {
	Prefix string
}

// NewTopics returns the builder for prefix, defaulting to
// DefaultTopicPrefix. Trailing slashes are dropped.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

// State returns the retained topic carrying an entity's current value.
//
// Example: glscript/state/sensor.door
func (t Topics) State(entityID string) string {
	return fmt.Sprintf("%s/state/%s", t.Prefix, entityID)
}

// StateSet returns the topic external systems publish to in order to set
// an entity.
//
// Example: glscript/state/set/light.porch
func (t Topics) StateSet(entityID string) string {
	return fmt.Sprintf("%s/state/set/%s", t.Prefix, entityID)
}

// Event returns the topic that fires an event of the given type.
//
// Example: glscript/event/doorbell
func (t Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", t.Prefix, eventType)
}

// Status returns the retained online/offline status topic.
//
// Example: glscript/status
func (t Topics) Status() string {
	return t.Prefix + "/status"
}

// AllStateSets matches every StateSet topic.
//
// Pattern: glscript/state/set/+
func (t Topics) AllStateSets() string {
	return t.StateSet("+")
}

// AllEvents matches every Event topic.
//
// Pattern: glscript/event/+
func (t Topics) AllEvents() string {
	return t.Event("+")
}

// LastSegment returns the final level of topic, which for the patterns
// above is the entity id or event type.
func LastSegment(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
