package radio

import (
	"fmt"
	"strings"
)

// PowerLevel is the transmitter power amplifier setting.
type PowerLevel int

// Power amplifier levels, lowest to highest.
const (
	PowerMin PowerLevel = iota
	PowerLow
	PowerHigh
	PowerMax
)

// String returns the lower-case config name of the level.
func (p PowerLevel) String() string {
	switch p {
	case PowerMin:
		return "min"
	case PowerLow:
		return "low"
	case PowerHigh:
		return "high"
	case PowerMax:
		return "max"
	default:
		return fmt.Sprintf("PowerLevel(%d)", int(p))
	}
}

// ParsePowerLevel converts a config string into a PowerLevel.
func ParsePowerLevel(s string) (PowerLevel, error) {
	switch strings.ToLower(s) {
	case "min":
		return PowerMin, nil
	case "low":
		return PowerLow, nil
	case "high":
		return PowerHigh, nil
	case "max":
		return PowerMax, nil
	default:
		return 0, fmt.Errorf("%w: unknown power level %q", ErrInvalidConfig, s)
	}
}

// Driver is the hardware boundary of an nRF24-style transceiver.
//
// Implementations are not required to be safe for concurrent use; the
// Receiver serialises every call.
type Driver interface {
	// Begin initialises the chip. It returns false if the hardware does not respond.
	Begin() bool

	// SetPowerLevel sets the power amplifier level.
	SetPowerLevel(level PowerLevel)

	// OpenReadingPipe listens for the given address on a pipe (0-5).
	OpenReadingPipe(pipe int, address []byte)

	// SetPayloadSize fixes the static payload size in bytes.
	SetPayloadSize(size int)

	// PayloadSize returns the configured static payload size.
	PayloadSize() int

	// Available reports whether a payload is waiting in the RX FIFO.
	Available() bool

	// Read pops one payload of the given size from the RX FIFO.
	Read(size int) []byte

	// StartListening switches the chip into receive mode.
	StartListening()

	// StopListening leaves receive mode.
	StopListening()

	// PowerDown puts the chip into its low power state.
	PowerDown()
}
