package kafka

import "errors"

// Domain-specific errors for Kafka operations.
var (
	// ErrConnectionFailed is returned when no broker is reachable at startup.
	ErrConnectionFailed = errors.New("kafka: connection failed")

	// ErrPublishFailed is returned when a message cannot be handed to the writer.
	ErrPublishFailed = errors.New("kafka: publish failed")

	// ErrInvalidQoS is returned for QoS levels above 2.
	ErrInvalidQoS = errors.New("kafka: invalid QoS level (must be 0, 1, or 2)")

	// ErrNoBrokers is returned when the broker list is empty.
	ErrNoBrokers = errors.New("kafka: no brokers configured")

	// ErrClosed is returned when publishing after Close.
	ErrClosed = errors.New("kafka: client closed")
)
