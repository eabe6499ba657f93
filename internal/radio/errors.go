package radio

import "errors"

// Domain errors for the radio package.
var (
	// ErrHardwareInit is returned when the transceiver does not respond to
	// initialisation. The gateway cannot start without it.
	ErrHardwareInit = errors.New("radio: hardware not responding")

	// ErrTimeout is returned when no payload arrives before the receive
	// timeout elapses. It is an expected, recoverable outcome.
	ErrTimeout = errors.New("radio: receive timed out")

	// ErrStopped is returned when Receive is called after Stop.
	ErrStopped = errors.New("radio: receiver stopped")

	// ErrInvalidConfig is returned for unusable receiver settings.
	ErrInvalidConfig = errors.New("radio: invalid configuration")
)
