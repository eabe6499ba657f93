// Package sim provides a simulated nRF24 transceiver.
//
// The simulated transmitter sends one telemetry frame per Interval while
// the radio is listening. Frames carry a drifting temperature, a 12-bit
// light level and a water level in the same semicolon-delimited,
// NUL-padded layout the field nodes use. A share of frames can be
// dropped or corrupted to exercise the gateway's failure paths.
package sim

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/radio"
)

// Sensor ranges of the simulated field node.
const (
	baseTemperature = 22.0
	minTemperature  = -10.0
	maxTemperature  = 45.0
	maxLightLevel   = 4095
	maxWaterLevel   = 10

	// noiseLevel is the relative noise applied to each temperature sample.
	noiseLevel = 0.02

	// driftStep bounds the random walk of the temperature between frames.
	driftStep = 0.25
)

// Options configures a simulated radio.
type Options struct {
	// Interval between transmissions. Zero makes a frame available on every poll.
	Interval time.Duration

	// DropRate is the fraction (0..1) of transmissions that never arrive.
	DropRate float64

	// CorruptRate is the fraction (0..1) of delivered frames that are garbled.
	CorruptRate float64

	// FailBegin makes Begin report unresponsive hardware.
	FailBegin bool

	// Rand is the randomness source. Nil seeds one from the clock.
	Rand *rand.Rand

	// Now is the clock. Nil uses time.Now.
	Now func() time.Time
}

// Counters summarises simulated radio traffic.
type Counters struct {
	Sent      uint64
	Dropped   uint64
	Corrupted uint64
	Delivered uint64
}

// Driver is a simulated radio.Driver.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Driver struct {
	opts Options

	mu          sync.Mutex
	rng         *rand.Rand
	begun       bool
	listening   bool
	poweredDown bool
	payloadSize int
	pipe        int
	address     []byte
	power       radio.PowerLevel

	next        time.Time
	pending     []byte
	scripted    [][]byte
	temperature float64
	counters    Counters
}

// New creates a simulated radio.
func New(opts Options) *Driver {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(opts.Now().UnixNano())) //nolint:gosec // simulation only
	}
	return &Driver{
		opts:        opts,
		rng:         rng,
		payloadSize: radio.DefaultPayloadSize,
		temperature: baseTemperature,
	}
}

// Inject queues frames that are delivered, in order, before any
// generated traffic. Useful for replaying captured payloads.
func (d *Driver) Inject(frames ...[]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range frames {
		d.scripted = append(d.scripted, append([]byte(nil), f...))
	}
}

// Counters returns a snapshot of the traffic counters.
func (d *Driver) Counters() Counters {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counters
}

// Begin implements radio.Driver.
func (d *Driver) Begin() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opts.FailBegin {
		return false
	}
	d.begun = true
	d.poweredDown = false
	return true
}

// SetPowerLevel implements radio.Driver.
func (d *Driver) SetPowerLevel(level radio.PowerLevel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.power = level
}

// OpenReadingPipe implements radio.Driver.
func (d *Driver) OpenReadingPipe(pipe int, address []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pipe = pipe
	d.address = append([]byte(nil), address...)
}

// SetPayloadSize implements radio.Driver.
func (d *Driver) SetPayloadSize(size int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloadSize = size
}

// PayloadSize implements radio.Driver.
func (d *Driver) PayloadSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.payloadSize
}

// StartListening implements radio.Driver.
func (d *Driver) StartListening() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.begun || d.poweredDown {
		return
	}
	d.listening = true
	if d.next.IsZero() {
		d.next = d.opts.Now().Add(d.opts.Interval)
	}
}

// StopListening implements radio.Driver.
func (d *Driver) StopListening() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listening = false
}

// PowerDown implements radio.Driver.
func (d *Driver) PowerDown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listening = false
	d.poweredDown = true
	d.pending = nil
}

// Available implements radio.Driver.
//
// Each due transmission is either dropped, in which case the next one is
// scheduled, or latched as the pending frame until Read pops it.
func (d *Driver) Available() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.listening {
		return false
	}
	if d.pending != nil {
		return true
	}
	if len(d.scripted) > 0 {
		d.pending = d.scripted[0]
		d.scripted = d.scripted[1:]
		d.counters.Sent++
		return true
	}

	now := d.opts.Now()
	if now.Before(d.next) {
		return false
	}
	d.next = now.Add(d.opts.Interval)
	d.counters.Sent++

	if d.rng.Float64() < d.opts.DropRate {
		d.counters.Dropped++
		return false
	}

	if d.rng.Float64() < d.opts.CorruptRate {
		d.counters.Corrupted++
		d.pending = d.corruptFrame()
	} else {
		d.pending = d.frame()
	}
	return true
}

// Read implements radio.Driver. It returns the pending frame padded or
// truncated to size, or size zero bytes if nothing is pending.
func (d *Driver) Read(size int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]byte, size)
	if d.pending == nil {
		return out
	}
	copy(out, d.pending)
	d.pending = nil
	d.counters.Delivered++
	return out
}

// frame builds the next well-formed telemetry text.
func (d *Driver) frame() []byte {
	d.temperature = d.nextTemperature()
	light := d.rng.Intn(maxLightLevel + 1)
	water := d.rng.Intn(maxWaterLevel + 1)
	return []byte(fmt.Sprintf("%.2f;%d;%d", d.temperature, light, water))
}

// nextTemperature applies a bounded random walk plus multiplicative noise.
func (d *Driver) nextTemperature() float64 {
	drift := (d.rng.Float64()*2 - 1) * driftStep
	noise := (d.rng.Float64()*2 - 1) * noiseLevel * d.temperature
	t := d.temperature + drift + noise
	return math.Max(minTemperature, math.Min(maxTemperature, t))
}

// corruptFrame returns one of the damaged frame shapes seen on a noisy link.
func (d *Driver) corruptFrame() []byte {
	switch d.rng.Intn(3) {
	case 0:
		// truncated: one field lost
		return []byte(fmt.Sprintf("%.2f;%d", d.temperature, d.rng.Intn(maxLightLevel+1)))
	case 1:
		// garbled: non-numeric field
		return []byte(fmt.Sprintf("%.2f;x%d;%d", d.temperature, d.rng.Intn(maxLightLevel+1), d.rng.Intn(maxWaterLevel+1)))
	default:
		// bit errors: invalid UTF-8
		return []byte{0xff, 0xfe, ';', 0x80, ';', 0xc3}
	}
}

var _ radio.Driver = (*Driver)(nil)
