package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementCycles   = "gateway_cycles"
	measurementDelivery = "gateway_delivery"
)

// WriteCycle records the outcome of one gateway cycle.
//
// Tags are low cardinality (device, outcome); latency is a field so
// dashboards can aggregate it per outcome.
//
// Parameters:
//   - device: Gateway device name
//   - outcome: Cycle outcome (e.g., "published", "no_data", "malformed")
//   - latency: Time spent receiving, parsing and publishing
//   - at: When the cycle started
//
// Example:
//
//	client.WriteCycle("radio-gateway", "no_data", 5*time.Second, start)
func (c *Client) WriteCycle(device, outcome string, latency time.Duration, at time.Time) {
	if !c.IsConnected() {
		return
	}

	published := 0
	if outcome == "published" {
		published = 1
	}

	point := write.NewPoint(
		measurementCycles,
		map[string]string{
			"device":  device,
			"outcome": outcome,
		},
		map[string]interface{}{
			"latency_ms": float64(latency.Microseconds()) / 1000,
			"published":  published,
		},
		at,
	)

	c.points.WritePoint(point)
}

// WriteDeliveryFailures records the transport's cumulative count of
// messages the broker never acknowledged.
func (c *Client) WriteDeliveryFailures(device, transport string, failures uint64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurementDelivery,
		map[string]string{
			"device":    device,
			"transport": transport,
		},
		map[string]interface{}{
			"failures": failures,
		},
		time.Now(),
	)

	c.points.WritePoint(point)
}
