package gateway

import (
	"errors"
	"time"
)

// Outcome classifies how a cycle ended.
type Outcome string

// Cycle outcomes.
const (
	OutcomePublished     Outcome = "published"
	OutcomeNoData        Outcome = "no_data"
	OutcomeDecodeError   Outcome = "decode_error"
	OutcomeMalformed     Outcome = "malformed"
	OutcomePublishFailed Outcome = "publish_failed"
)

// outcomeOf maps a cycle error onto its Outcome.
func outcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomePublished
	case errors.Is(err, ErrPublishFailed):
		return OutcomePublishFailed
	case errors.Is(err, ErrDecode):
		return OutcomeDecodeError
	case errors.Is(err, ErrMalformedPayload):
		return OutcomeMalformed
	default:
		return OutcomeNoData
	}
}

// CycleResult describes one completed cycle.
type CycleResult struct {
	// Started is when the cycle began receiving.
	Started time.Time

	// Duration covers receive, parse and publish.
	Duration time.Duration

	// Outcome classifies the cycle.
	Outcome Outcome

	// Reading is the parsed reading. Zero unless parsing succeeded.
	Reading SensorReading

	// Payload is the JSON that was (or failed to be) published.
	Payload []byte

	// Err is the cycle error, nil when published.
	Err error
}

// Observer is notified after every cycle that was not cut short by
// cancellation. ObserveCycle runs on the loop goroutine and must not block.
type Observer interface {
	ObserveCycle(result CycleResult)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(CycleResult)

// ObserveCycle calls f(result).
func (f ObserverFunc) ObserveCycle(result CycleResult) {
	f(result)
}
