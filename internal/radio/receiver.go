package radio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/logging"
)

// Receiver defaults.
const (
	// DefaultTimeout bounds a Receive call when the caller passes no timeout.
	DefaultTimeout = 5 * time.Second

	// DefaultPollInterval is the pause between two Available() checks.
	DefaultPollInterval = 10 * time.Millisecond

	// DefaultPayloadSize is the nRF24 maximum static payload.
	DefaultPayloadSize = 32

	// maxPayloadSize is the largest payload the nRF24 FIFO holds.
	maxPayloadSize = 32

	// maxPipe is the highest nRF24 data pipe index.
	maxPipe = 5
)

// Config contains the receiver settings applied at Open.
type Config struct {
	// PayloadSize is the fixed payload length in bytes (1-32).
	PayloadSize int

	// Address is the reading pipe address (3-5 bytes).
	Address []byte

	// Pipe is the reading pipe index (0-5).
	Pipe int

	// PowerLevel is the power amplifier level.
	PowerLevel PowerLevel

	// PollInterval is the pause between availability checks.
	PollInterval time.Duration

	// CEPin and CSNPin are reported in Details only; the driver owns the wiring.
	CEPin  int
	CSNPin int
}

// ConfigFrom converts the YAML radio section into a receiver Config.
func ConfigFrom(cfg config.RadioConfig) (Config, error) {
	level, err := ParsePowerLevel(cfg.PowerLevel)
	if err != nil {
		return Config{}, err
	}
	return Config{
		PayloadSize:  cfg.PayloadSize,
		Address:      []byte(cfg.Address),
		Pipe:         cfg.Pipe,
		PowerLevel:   level,
		PollInterval: cfg.PollInterval,
		CEPin:        cfg.CEPin,
		CSNPin:       cfg.CSNPin,
	}, nil
}

// Receiver turns a radio Driver into a single blocking-with-timeout
// receive operation.
//
// Thread Safety:
//   - Receive and Stop may be called from different goroutines; driver
//     access is serialised by an internal mutex.
type Receiver struct {
	driver Driver
	cfg    Config
	logger *logging.Logger

	mu        sync.Mutex
	listening bool
	stopped   bool
	stopOnce  sync.Once
}

// Open initialises the hardware and configures it for reception.
//
// It calls Begin and fails with ErrHardwareInit if the chip does not
// respond, then sets the power level, the payload size and opens the
// reading pipe at the configured address. The hardware is not listening
// until Receive is called.
//
// Parameters:
//   - driver: Hardware driver
//   - cfg: Receiver settings (zero PayloadSize and PollInterval use defaults)
//   - logger: Logger for timeouts and receptions (nil discards)
//
// Returns:
//   - *Receiver: Receiver ready for Receive
//   - error: ErrInvalidConfig or ErrHardwareInit
func Open(driver Driver, cfg Config, logger *logging.Logger) (*Receiver, error) {
	if driver == nil {
		return nil, fmt.Errorf("%w: driver is required", ErrInvalidConfig)
	}
	if cfg.PayloadSize == 0 {
		cfg.PayloadSize = DefaultPayloadSize
	}
	if cfg.PayloadSize < 1 || cfg.PayloadSize > maxPayloadSize {
		return nil, fmt.Errorf("%w: payload size %d out of range 1-%d", ErrInvalidConfig, cfg.PayloadSize, maxPayloadSize)
	}
	if cfg.Pipe < 0 || cfg.Pipe > maxPipe {
		return nil, fmt.Errorf("%w: pipe %d out of range 0-%d", ErrInvalidConfig, cfg.Pipe, maxPipe)
	}
	if len(cfg.Address) == 0 {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidConfig)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = logging.Discard()
	}

	if !driver.Begin() {
		return nil, ErrHardwareInit
	}

	driver.SetPowerLevel(cfg.PowerLevel)
	driver.SetPayloadSize(cfg.PayloadSize)
	driver.OpenReadingPipe(cfg.Pipe, cfg.Address)

	return &Receiver{
		driver: driver,
		cfg:    cfg,
		logger: logger.With("component", "radio"),
	}, nil
}

// Receive waits up to timeout for one payload.
//
// The hardware is put into listening mode, then Available() is polled
// with PollInterval pauses for as long as the elapsed time is below the
// timeout. The first available payload is read at the configured size
// and returned immediately. Listening always stops before returning.
//
// A timeout <= 0 uses DefaultTimeout. Cancelling ctx ends the wait
// between two polls and returns the context error.
//
// Returns:
//   - []byte: Exactly PayloadSize bytes
//   - error: ErrTimeout when nothing arrived, ErrStopped after Stop, or ctx.Err()
func (r *Receiver) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := r.startListening(); err != nil {
		return nil, err
	}
	defer r.stopListening()

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	start := time.Now()
	for time.Since(start) < timeout {
		if data, ok := r.poll(); ok {
			r.logger.Debug("payload received", "bytes", len(data), "elapsed_ms", time.Since(start).Milliseconds())
			return data, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	r.logger.Warn("receiver timed out with no data received", "timeout", timeout)
	return nil, ErrTimeout
}

// poll checks the FIFO once and reads a payload if one is waiting.
func (r *Receiver) poll() ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped || !r.driver.Available() {
		return nil, false
	}
	return normalise(r.driver.Read(r.cfg.PayloadSize), r.cfg.PayloadSize), true
}

// normalise pads or truncates data to exactly size bytes.
func normalise(data []byte, size int) []byte {
	if len(data) == size {
		return data
	}
	out := make([]byte, size)
	copy(out, data)
	return out
}

func (r *Receiver) startListening() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrStopped
	}
	r.driver.StartListening()
	r.listening = true
	return nil
}

func (r *Receiver) stopListening() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.listening {
		return
	}
	r.driver.StopListening()
	r.listening = false
}

// Stop leaves listening mode and powers the hardware down.
// It is idempotent; only the first call touches the hardware.
func (r *Receiver) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if r.listening {
			r.driver.StopListening()
			r.listening = false
		}
		r.driver.PowerDown()
		r.stopped = true
		r.logger.Info("radio powered down")
	})
}

// Listening reports whether the hardware is currently in receive mode.
func (r *Receiver) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listening
}

// PayloadSize returns the fixed payload size in bytes.
func (r *Receiver) PayloadSize() int {
	return r.cfg.PayloadSize
}

// Details returns the radio configuration as key/value pairs for logging.
//
// Example:
//
//	log.Info("radio configured", receiver.Details()...)
func (r *Receiver) Details() []any {
	return []any{
		"ce_pin", r.cfg.CEPin,
		"csn_pin", r.cfg.CSNPin,
		"pipe", r.cfg.Pipe,
		"address", string(r.cfg.Address),
		"payload_size", r.cfg.PayloadSize,
		"power_level", r.cfg.PowerLevel.String(),
		"poll_interval", r.cfg.PollInterval.String(),
	}
}
