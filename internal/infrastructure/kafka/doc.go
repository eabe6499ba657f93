// Package kafka publishes gateway telemetry to a Kafka topic.
//
// It is the alternative to the MQTT transport for sites that feed
// readings into a Kafka pipeline instead of ThingsBoard. Messages carry
// the same JSON document the MQTT client sends; the telemetry topic the
// gateway publishes to travels in a message header since MQTT-style
// topic paths are not valid Kafka topic names.
//
// The writer runs asynchronously. Publish returns once the message is
// queued and delivery errors are reported through the logger and
// DeliveryFailures, matching the MQTT client's fire-and-track model.
package kafka
