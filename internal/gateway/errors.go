package gateway

import "errors"

// Domain errors for the gateway package.
//
// Per-cycle errors (ErrNoData, ErrDecode, ErrMalformedPayload,
// ErrPublishFailed) are recoverable: the cycle is skipped and the loop
// carries on after the fixed delay.
var (
	// ErrNoData is returned when the radio delivered nothing within the
	// receive timeout.
	ErrNoData = errors.New("gateway: no data received")

	// ErrDecode is returned when payload bytes are not valid UTF-8 text.
	ErrDecode = errors.New("gateway: payload is not valid text")

	// ErrMalformedPayload is returned when a payload field is not a finite
	// decimal number, or when too few fields are present.
	ErrMalformedPayload = errors.New("gateway: malformed payload")

	// ErrInsufficientFields is returned when fewer than three fields are
	// present. It also matches ErrMalformedPayload.
	ErrInsufficientFields = insufficientFieldsError{}

	// ErrPublishFailed is returned when the transport rejects a publish.
	ErrPublishFailed = errors.New("gateway: publish failed")

	// ErrNotConnected is returned by Run before MarkConnected.
	ErrNotConnected = errors.New("gateway: transport not connected")

	// ErrInvalidConfig is returned by New for unusable options.
	ErrInvalidConfig = errors.New("gateway: invalid configuration")
)

// insufficientFieldsError is a malformed payload with too few fields.
type insufficientFieldsError struct{}

func (insufficientFieldsError) Error() string {
	return "gateway: insufficient fields in payload"
}

// Is lets errors.Is(err, ErrMalformedPayload) match as well.
func (insufficientFieldsError) Is(target error) bool {
	return target == ErrMalformedPayload
}
