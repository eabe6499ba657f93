package kafka

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
)

const (
	// dialTimeout bounds the startup reachability check.
	dialTimeout = 5 * time.Second

	// defaultWriteTimeout applies when the config leaves it unset.
	defaultWriteTimeout = 10 * time.Second

	// batchTimeout keeps single telemetry messages from waiting for a full batch.
	batchTimeout = 10 * time.Millisecond

	// closeTimeout bounds how long Close waits for queued messages.
	closeTimeout = 5 * time.Second

	// HeaderTelemetryTopic carries the gateway's telemetry topic.
	HeaderTelemetryTopic = "telemetry-topic"

	maxQoS = 2
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// messageWriter is the subset of kafka.Writer the client uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Client publishes telemetry messages to one Kafka topic.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	writer messageWriter
	topic  string
	key    []byte

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	deliveryFailures atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// RequiredAcksFor maps an MQTT QoS level onto a Kafka acknowledgement level.
//
//   - 0: no acknowledgement
//   - 1: leader acknowledgement
//   - 2: all in-sync replicas
func RequiredAcksFor(qos byte) kafkago.RequiredAcks {
	switch qos {
	case 0:
		return kafkago.RequireNone
	case 1:
		return kafkago.RequireOne
	default:
		return kafkago.RequireAll
	}
}

// Connect checks that a broker is reachable and builds an async writer.
//
// The acknowledgement level is fixed for the writer's lifetime from qos,
// so a gateway publishing at a constant QoS gets the matching Kafka
// guarantee. key is set on every message (the device name) to keep one
// device's readings on one partition, in order.
//
// Parameters:
//   - ctx: Context for the reachability check
//   - cfg: Kafka configuration from config.yaml
//   - key: Message key, typically the gateway device name
//   - qos: Telemetry QoS level (0-2)
//
// Returns:
//   - *Client: Client ready for Publish
//   - error: ErrConnectionFailed if no broker answers
func Connect(ctx context.Context, cfg config.KafkaConfig, key string, qos byte) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, ErrNoBrokers)
	}
	if qos > maxQoS {
		return nil, ErrInvalidQoS
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, err := kafkago.DialContext(dialCtx, "tcp", cfg.Brokers[0])
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, cfg.Brokers[0], err)
	}
	conn.Close() //nolint:errcheck // reachability probe only

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	c := &Client{topic: cfg.Topic, key: []byte(key)}
	c.writer = &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: RequiredAcksFor(qos),
		Async:        true,
		BatchTimeout: batchTimeout,
		WriteTimeout: writeTimeout,
		Completion:   c.handleCompletion,
	}
	return c, nil
}

// newWithWriter builds a Client around an existing writer.
func newWithWriter(w messageWriter, topic, key string) *Client {
	return &Client{writer: w, topic: topic, key: []byte(key)}
}

// Publish queues one telemetry message.
//
// topic is the gateway's telemetry topic and is carried in the
// telemetry-topic header; the Kafka topic comes from configuration.
// qos only needs to be valid here, the acknowledgement level was fixed
// at Connect.
//
// Returns:
//   - error: nil once queued, or ErrInvalidQoS, ErrClosed, ErrPublishFailed
func (c *Client) Publish(topic string, payload []byte, qos byte) error {
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if c.closed.Load() {
		return ErrClosed
	}

	msg := kafkago.Message{
		Key:   c.key,
		Value: payload,
		Time:  time.Now(),
		Headers: []kafkago.Header{
			{Key: HeaderTelemetryTopic, Value: []byte(topic)},
		},
	}

	// Async writers return immediately; errors here are config or closed-writer errors.
	if err := c.writer.WriteMessages(context.Background(), msg); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// handleCompletion is the async writer's delivery callback.
func (c *Client) handleCompletion(msgs []kafkago.Message, err error) {
	if err == nil {
		return
	}

	c.deliveryFailures.Add(uint64(len(msgs)))
	if logger := c.getLogger(); logger != nil {
		logger.Warn("Kafka delivery failed",
			"topic", c.topic,
			"messages", len(msgs),
			"error", err,
		)
	}
}

// Close flushes queued messages and closes the writer.
// It is idempotent; later calls return the first call's result.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		done := make(chan error, 1)
		go func() { done <- c.writer.Close() }()

		select {
		case err := <-done:
			c.closeErr = err
		case <-time.After(closeTimeout):
			c.closeErr = fmt.Errorf("kafka: close timed out after %v", closeTimeout)
		}
	})
	return c.closeErr
}

// HealthCheck reports whether the client still accepts messages.
//
// The async writer reconnects on its own, so a live client is healthy
// until Close; delivery problems show up in DeliveryFailures instead.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("kafka health check: %w", err)
	}
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Topic returns the Kafka topic messages are written to.
func (c *Client) Topic() string {
	return c.topic
}

// DeliveryFailures returns how many messages the brokers never accepted.
func (c *Client) DeliveryFailures() uint64 {
	return c.deliveryFailures.Load()
}

// SetLogger sets a logger for delivery failure logging.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}
