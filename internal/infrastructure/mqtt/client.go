package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-script/internal/infrastructure/config"
)

var (
	ErrNotConnected     = errors.New("mqtt: client not connected")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")
	ErrInvalidTopic     = errors.New("mqtt: topic cannot be empty")
	ErrInvalidQoS       = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
)

// Logger receives connection changes and handler failures.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MessageHandler handles one received message. It runs on a paho
// goroutine; a returned error is logged and otherwise ignored.
type MessageHandler func(topic string, payload []byte) error

type route struct {
	qos     byte
	handler MessageHandler
}

// Client is a paho client that remembers its subscriptions, restores them
// after a reconnect and keeps a retained status message on
// <prefix>/status.
type Client struct {
	paho   pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics
	logger Logger

	mu        sync.RWMutex
	connected bool
	routes    map[string]route
}

// Connect dials the broker and waits for the first connection. Later
// connection losses are retried in the background.
func Connect(cfg config.MQTTConfig, logger Logger) (*Client, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	c := &Client{
		cfg:    cfg,
		topics: NewTopics(cfg.TopicPrefix),
		logger: logger,
		routes: make(map[string]route),
	}

	opts := clientOptions(cfg)
	opts.SetWill(c.topics.Status(), statusPayload(cfg.Broker.ClientID, "offline", "unexpected_disconnect"), 1, true)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onConnectionLost(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.logger.Warn("MQTT reconnecting", "broker", cfg.Broker.Host)
	})

	c.paho = pahomqtt.NewClient(opts)
	if err := await(c.paho.Connect(), ErrConnectionFailed); err != nil {
		return nil, err
	}

	// The connect handler runs asynchronously.
	c.setConnected(true)
	return c, nil
}

func (c *Client) onConnect() {
	c.setConnected(true)

	c.mu.RLock()
	for topic, r := range c.routes {
		c.paho.Subscribe(topic, r.qos, c.deliver(r.handler))
	}
	n := len(c.routes)
	c.mu.RUnlock()

	c.paho.Publish(c.topics.Status(), c.qos(), true, statusPayload(c.cfg.Broker.ClientID, "online", ""))
	c.logger.Info("MQTT connected", "broker", c.cfg.Broker.Host, "subscriptions", n)
}

func (c *Client) onConnectionLost(err error) {
	c.setConnected(false)
	c.logger.Warn("MQTT connection lost", "error", err)
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *Client) qos() byte {
	if c.cfg.QoS < 0 || c.cfg.QoS > maxQoS {
		return 1
	}
	return byte(c.cfg.QoS)
}

// Topics returns the topic builder for the configured prefix.
func (c *Client) Topics() Topics { return c.topics }

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.paho != nil && c.paho.IsConnected()
}

// HealthCheck reports ErrNotConnected while the broker is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close publishes a graceful offline status and disconnects.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		token := c.paho.Publish(c.topics.Status(), c.qos(), true,
			statusPayload(c.cfg.Broker.ClientID, "offline", "graceful_shutdown"))
		token.WaitTimeout(publishTimeout)
	}
	c.paho.Disconnect(disconnectQuiesce)
	c.setConnected(false)
	return nil
}
