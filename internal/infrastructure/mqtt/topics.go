package mqtt

// ThingsBoard device API topics.
// See https://thingsboard.io/docs/reference/mqtt-api/ for the full list.
const (
	// TopicTelemetry receives time-series telemetry from the device.
	TopicTelemetry = "v1/devices/me/telemetry"

	// TopicAttributes receives client-side attributes from the device.
	TopicAttributes = "v1/devices/me/attributes"
)

// Topics provides builders for the device API topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// Telemetry returns the telemetry upload topic.
//
// Example: v1/devices/me/telemetry
func (Topics) Telemetry() string {
	return TopicTelemetry
}

// Attributes returns the client attribute upload topic.
// The gateway reports its online/offline status here.
//
// Example: v1/devices/me/attributes
func (Topics) Attributes() string {
	return TopicAttributes
}
