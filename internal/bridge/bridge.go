package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-script/internal/event"
	"github.com/nerrad567/gray-logic-script/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-script/internal/script/eval"
	"github.com/nerrad567/gray-logic-script/internal/state"
)

// MQTTClient is the subset of *mqtt.Client the bridge needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds the dependencies of a Bridge.
type Options struct {
	Client MQTTClient
	Topics mqtt.Topics
	Store  *state.Store
	Bus    *event.Bus
	QoS    byte

	// Logger is optional.
	Logger Logger
}

// Bridge relays state and events between MQTT and the script engine.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	client MQTTClient
	topics mqtt.Topics
	store  *state.Store
	bus    *event.Bus
	qos    byte
	logger Logger

	mu       sync.Mutex
	started  bool
	listener sync.Once
}

// New creates a bridge. Call Start to subscribe.
func New(opts Options) (*Bridge, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Store == nil || opts.Bus == nil {
		return nil, fmt.Errorf("store and bus are required")
	}
	if opts.Topics.Prefix == "" {
		opts.Topics = mqtt.NewTopics("")
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bridge{
		client: opts.Client,
		topics: opts.Topics,
		store:  opts.Store,
		bus:    opts.Bus,
		qos:    opts.QoS,
		logger: logger,
	}, nil
}

// Start subscribes to the inbound topics and begins publishing state
// changes. Calling Start twice is a no-op.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}

	if err := b.client.Subscribe(b.topics.AllStateSets(), b.qos, b.handleStateSet); err != nil {
		return fmt.Errorf("subscribing to state sets: %w", err)
	}
	if err := b.client.Subscribe(b.topics.AllEvents(), b.qos, b.handleEvent); err != nil {
		_ = b.client.Unsubscribe(b.topics.AllStateSets())
		return fmt.Errorf("subscribing to events: %w", err)
	}

	b.listener.Do(func() { b.store.AddListener(b) })
	b.started = true
	b.logger.Info("MQTT bridge started", "prefix", b.topics.Prefix)
	return nil
}

// Stop unsubscribes from the inbound topics and stops publishing.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return
	}
	b.started = false
	for _, topic := range []string{b.topics.AllStateSets(), b.topics.AllEvents()} {
		if err := b.client.Unsubscribe(topic); err != nil {
			b.logger.Debug("unsubscribe failed", "topic", topic, "error", err)
		}
	}
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

// stateSetPayload is the JSON form accepted on the state set topic.
type stateSetPayload struct {
	Value      json.RawMessage `json:"value"`
	Attributes map[string]any  `json:"attributes"`
}

// handleStateSet applies a message from <prefix>/state/set/<entity_id>.
// A JSON object with a "value" key sets value and attributes; anything
// else is taken as the raw value.
func (b *Bridge) handleStateSet(topic string, payload []byte) error {
	id := mqtt.LastSegment(topic)
	if id == "" {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	value, attrs, err := decodeStateSet(payload)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidPayload, topic, err)
	}
	if err := b.store.Set(id, value, attrs); err != nil {
		return fmt.Errorf("setting %s: %w", id, err)
	}
	b.logger.Debug("state set from MQTT", "entity_id", id, "value", value)
	return nil
}

func decodeStateSet(payload []byte) (string, map[string]any, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return string(trimmed), nil, nil
	}

	var p stateSetPayload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return "", nil, err
	}
	if p.Value == nil {
		return string(trimmed), nil, nil
	}

	var v any
	if err := json.Unmarshal(p.Value, &v); err != nil {
		return "", nil, err
	}
	return eval.Str(eval.FromNative(v)), p.Attributes, nil
}

// handleEvent fires the event named by the last topic level with the
// payload's JSON object as data. An empty payload fires with no data.
func (b *Bridge) handleEvent(topic string, payload []byte) error {
	eventType := mqtt.LastSegment(topic)
	if eventType == "" {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	data := map[string]any{}
	if trimmed := bytes.TrimSpace(payload); len(trimmed) > 0 {
		if err := json.Unmarshal(trimmed, &data); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidPayload, topic, err)
		}
	}
	b.bus.Fire(eventType, data)
	b.logger.Debug("event fired from MQTT", "event_type", eventType)
	return nil
}

// statePayload is published retained on <prefix>/state/<entity_id>.
type statePayload struct {
	Value       string         `json:"value"`
	OldValue    *string        `json:"old_value"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
}

// StateChanged publishes c. It implements state.Listener.
func (b *Bridge) StateChanged(c state.Change) {
	if !b.running() || !b.client.IsConnected() {
		return
	}
	attrs := c.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	data, err := json.Marshal(statePayload{
		Value:       c.Value,
		OldValue:    c.OldValue,
		Attributes:  attrs,
		LastChanged: c.Time.UTC(),
	})
	if err != nil {
		b.logger.Warn("encoding state for MQTT failed", "entity_id", c.EntityID, "error", err)
		return
	}
	if err := b.client.Publish(b.topics.State(c.EntityID), data, b.qos, true); err != nil {
		b.logger.Warn("publishing state failed", "entity_id", c.EntityID, "error", err)
	}
}
