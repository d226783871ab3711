package mqtt

import (
	"fmt"
	"slices"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	maxQoS         = 2
	maxPayloadSize = 1 << 20
)

// Publish sends payload to topic and waits for the broker to acknowledge
// it (QoS 1 and 2).
//
// State topics are published retained so a new subscriber sees the
// current value; events are not.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkTopic(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.paho.Publish(topic, qos, retained, payload), ErrPublishFailed)
}

// Subscribe routes messages matching topic (wildcards allowed) to
// handler. The route is restored after every reconnect until
// Unsubscribe.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := checkTopic(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := await(c.paho.Subscribe(topic, qos, c.deliver(handler)), ErrSubscribeFailed); err != nil {
		return err
	}
	c.mu.Lock()
	c.routes[topic] = route{qos: qos, handler: handler}
	c.mu.Unlock()
	return nil
}

// Unsubscribe drops the route for topic. Messages already in flight may
// still be delivered.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	c.mu.Lock()
	delete(c.routes, topic)
	c.mu.Unlock()

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.paho.Unsubscribe(topic), ErrSubscribeFailed)
}

// Subscriptions lists the topics with a route, sorted.
func (c *Client) Subscriptions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	topics := make([]string, 0, len(c.routes))
	for t := range c.routes {
		topics = append(topics, t)
	}
	slices.Sort(topics)
	return topics
}

func checkTopic(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}

// deliver adapts handler to paho, logging its errors and recovering
// panics so one bad script input cannot take down the client.
func (c *Client) deliver(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Warn("MQTT message rejected", "topic", msg.Topic(), "error", err)
		}
	}
}

// await waits for token and wraps a timeout or failure in sentinel.
func await(token pahomqtt.Token, sentinel error) error {
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("%w: timeout after %v", sentinel, operationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
