package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-gateway/internal/radio"
)

// Defaults applied by New to zero-valued Config fields.
const (
	DefaultTopic          = "v1/devices/me/telemetry"
	DefaultDelay          = 5 * time.Second
	DefaultReceiveTimeout = 5 * time.Second

	maxQoS = 2
)

// RadioReceiver is the radio capability the gateway consumes.
type RadioReceiver interface {
	// Receive waits up to timeout for one raw payload.
	Receive(ctx context.Context, timeout time.Duration) ([]byte, error)

	// Stop powers the radio down.
	Stop()
}

// TelemetryPublisher is the transport capability the gateway consumes.
type TelemetryPublisher interface {
	// Publish hands one message to the transport. It must not wait for
	// end-to-end delivery.
	Publish(topic string, payload []byte, qos byte) error

	// Close disconnects the transport.
	Close() error
}

// Config holds the cycle parameters.
type Config struct {
	Topic          string
	QoS            byte
	Delay          time.Duration
	ReceiveTimeout time.Duration
	Delimiter      string
}

// ConfigFrom converts the YAML gateway section into a Config.
func ConfigFrom(cfg config.GatewayConfig) Config {
	return Config{
		Topic:          cfg.Topic,
		QoS:            byte(cfg.QoS), //nolint:gosec // validated 0-2 by config.Validate
		Delay:          cfg.Delay,
		ReceiveTimeout: cfg.ReceiveTimeout,
		Delimiter:      cfg.Delimiter,
	}
}

// Options configures a Gateway.
type Options struct {
	Receiver  RadioReceiver
	Publisher TelemetryPublisher
	Config    Config
	Logger    *logging.Logger
	Observers []Observer
}

// Stats counts cycle outcomes since start.
type Stats struct {
	Cycles          uint64    `json:"cycles"`
	Published       uint64    `json:"published"`
	NoData          uint64    `json:"no_data"`
	DecodeErrors    uint64    `json:"decode_errors"`
	Malformed       uint64    `json:"malformed"`
	PublishFailures uint64    `json:"publish_failures"`
	LastPublishedAt time.Time `json:"last_published_at,omitzero"`
	LastError       string    `json:"last_error,omitempty"`
}

// Gateway drives the receive, parse, publish and sleep cycle.
//
// A single goroutine runs the loop. Reading, State and Stats may be
// called concurrently from other goroutines (the status API).
type Gateway struct {
	receiver  RadioReceiver
	publisher TelemetryPublisher
	cfg       Config
	logger    *logging.Logger
	observers []Observer

	mu      sync.RWMutex
	state   State
	reading SensorReading
	stats   Stats

	shutdownOnce sync.Once
}

// New creates a Gateway in the Idle state.
//
// Zero Config fields take the package defaults. Receiver and Publisher
// are required.
func New(opts Options) (*Gateway, error) {
	if opts.Receiver == nil {
		return nil, fmt.Errorf("%w: receiver is required", ErrInvalidConfig)
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("%w: publisher is required", ErrInvalidConfig)
	}

	cfg := opts.Config
	if cfg.QoS > maxQoS {
		return nil, fmt.Errorf("%w: qos %d out of range 0-%d", ErrInvalidConfig, cfg.QoS, maxQoS)
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = DefaultReceiveTimeout
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = DefaultDelimiter
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Gateway{
		receiver:  opts.Receiver,
		publisher: opts.Publisher,
		cfg:       cfg,
		logger:    logger.With("component", "gateway"),
		observers: opts.Observers,
		state:     StateIdle,
	}, nil
}

// MarkConnected records that the transport session is established.
// It only has an effect in the Idle state.
func (g *Gateway) MarkConnected() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateIdle {
		g.state = StateConnected
	}
}

// AcquireAndParse receives one payload and parses it.
//
// Returns:
//   - SensorReading: The parsed reading
//   - error: ErrNoData, ErrDecode, ErrMalformedPayload (ErrInsufficientFields),
//     or the context error when ctx was cancelled while waiting
func (g *Gateway) AcquireAndParse(ctx context.Context) (SensorReading, error) {
	payload, err := g.receiver.Receive(ctx, g.cfg.ReceiveTimeout)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return SensorReading{}, err
		}
		if errors.Is(err, radio.ErrTimeout) {
			return SensorReading{}, ErrNoData
		}
		return SensorReading{}, fmt.Errorf("%w: %w", ErrNoData, err)
	}
	if payload == nil {
		return SensorReading{}, ErrNoData
	}

	return ParsePayload(payload, g.cfg.Delimiter)
}

// RunCycle performs one acquire, parse and publish pass.
//
// On success the held reading is replaced and published once. On an
// acquire or parse failure nothing is published and the held reading is
// left untouched. A publish failure still replaces the held reading.
// Every failure is logged here; the error is returned for callers that
// want it, and Run ignores it.
func (g *Gateway) RunCycle(ctx context.Context) error {
	g.setState(StateListening)
	start := time.Now()

	reading, err := g.AcquireAndParse(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		g.logCycleFailure(err)
		g.finishCycle(CycleResult{Started: start, Duration: time.Since(start), Err: err})
		return err
	}

	g.mu.Lock()
	g.reading = reading
	g.state = StatePublishing
	g.mu.Unlock()

	payload, _ := reading.MarshalJSON()
	result := CycleResult{Started: start, Reading: reading, Payload: payload}

	if pubErr := g.publisher.Publish(g.cfg.Topic, payload, g.cfg.QoS); pubErr != nil {
		result.Err = fmt.Errorf("%w: %w", ErrPublishFailed, pubErr)
		result.Duration = time.Since(start)
		g.logger.Error("failed to publish sensor data", "topic", g.cfg.Topic, "error", pubErr)
		g.finishCycle(result)
		return result.Err
	}

	result.Duration = time.Since(start)
	g.logger.Info("sensor data published", append([]any{"topic", g.cfg.Topic}, reading.LogAttrs()...)...)
	g.finishCycle(result)
	return nil
}

// logCycleFailure writes the per-cycle diagnostic for a skipped publish.
func (g *Gateway) logCycleFailure(err error) {
	switch {
	case errors.Is(err, ErrNoData):
		g.logger.Warn("no data received from radio", "error", err)
	case errors.Is(err, ErrDecode):
		g.logger.Warn("discarding undecodable payload", "error", err)
	default:
		g.logger.Warn("discarding malformed payload", "error", err)
	}
}

// finishCycle updates counters and notifies observers.
func (g *Gateway) finishCycle(result CycleResult) {
	result.Outcome = outcomeOf(result.Err)

	g.mu.Lock()
	g.stats.Cycles++
	switch result.Outcome {
	case OutcomePublished:
		g.stats.Published++
		g.stats.LastPublishedAt = result.Started.Add(result.Duration)
	case OutcomeNoData:
		g.stats.NoData++
	case OutcomeDecodeError:
		g.stats.DecodeErrors++
	case OutcomeMalformed:
		g.stats.Malformed++
	case OutcomePublishFailed:
		g.stats.PublishFailures++
	}
	if result.Err != nil {
		g.stats.LastError = result.Err.Error()
	}
	g.mu.Unlock()

	for _, o := range g.observers {
		o.ObserveCycle(result)
	}
}

// Run drives cycles until ctx is cancelled, sleeping the fixed delay
// after every cycle whether or not it published.
//
// Cancellation is checked at the top of each cycle and ends any receive
// or sleep in progress. On the way out the radio is stopped and the
// transport closed, each exactly once. Teardown errors are logged, not
// returned.
//
// Returns:
//   - error: ErrNotConnected if MarkConnected was never called, else nil
func (g *Gateway) Run(ctx context.Context) error {
	if g.State() == StateIdle {
		return ErrNotConnected
	}
	defer g.shutdown()

	g.logger.Info("gateway started",
		"topic", g.cfg.Topic,
		"qos", g.cfg.QoS,
		"delay", g.cfg.Delay,
		"receive_timeout", g.cfg.ReceiveTimeout,
	)

	timer := time.NewTimer(g.cfg.Delay)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		g.RunCycle(ctx) //nolint:errcheck // logged inside RunCycle

		timer.Reset(g.cfg.Delay)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}

// shutdown stops the radio and closes the transport once.
func (g *Gateway) shutdown() {
	g.shutdownOnce.Do(func() {
		g.setState(StateShuttingDown)
		g.logger.Info("sensor data publish stopped")

		g.receiver.Stop()
		if err := g.publisher.Close(); err != nil {
			g.logger.Warn("error closing publisher", "error", err)
		}

		g.setState(StateStopped)
	})
}

func (g *Gateway) setState(s State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = s
}

// Reading returns the last successfully parsed reading.
func (g *Gateway) Reading() SensorReading {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.reading
}

// State returns the current lifecycle state.
func (g *Gateway) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Stats returns a snapshot of the cycle counters.
func (g *Gateway) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.stats
}
