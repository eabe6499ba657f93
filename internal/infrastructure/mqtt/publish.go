package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a telemetry message to the specified MQTT topic.
//
// The message is handed to paho's network goroutines and Publish returns
// without waiting for the broker's acknowledgment. Delivery is tracked in
// the background: a missing or failed PUBACK is logged and counted in
// DeliveryFailures. Close waits for outstanding acknowledgments.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "v1/devices/me/telemetry")
//   - payload: The message payload (typically JSON, max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//
// QoS Levels:
//   - 0: At most once (fire and forget)
//   - 1: At least once (guaranteed delivery, may duplicate)
//   - 2: Exactly once (guaranteed, no duplicates, higher overhead)
//
// Returns:
//   - error: nil once queued, or wrapped error describing the rejection
//
// Example:
//
//	err := client.Publish(mqtt.Topics{}.Telemetry(), []byte(`{"temperature":21.5}`), 1)
func (c *Client) Publish(topic string, payload []byte, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, false, payload)

	c.inflight.Add(1)
	go c.awaitDelivery(topic, token)

	return nil
}

// PublishString is a convenience method that publishes a string payload.
//
// This is equivalent to calling Publish with []byte(payload).
func (c *Client) PublishString(topic string, payload string, qos byte) error {
	return c.Publish(topic, []byte(payload), qos)
}

// awaitDelivery waits for the broker acknowledgment of one publish.
func (c *Client) awaitDelivery(topic string, token pahomqtt.Token) {
	defer c.inflight.Done()

	var err error
	if !token.WaitTimeout(defaultPublishTimeout) {
		err = fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	} else if tokenErr := token.Error(); tokenErr != nil {
		err = fmt.Errorf("%w: %w", ErrPublishFailed, tokenErr)
	}
	if err == nil {
		return
	}

	c.deliveryFailures.Add(1)
	if logger := c.getLogger(); logger != nil {
		logger.Warn("MQTT delivery not acknowledged",
			"topic", topic,
			"error", err,
		)
	}
}
