// Package mqtt provides the MQTT telemetry transport for the radio gateway.
//
// This package manages:
//   - Connection to the ThingsBoard MQTT endpoint with auto-reconnect
//   - Device authentication with an access token as the MQTT username
//   - Telemetry publishing with QoS guarantees
//   - Gateway online/offline status attributes and Last Will
//   - Connection health monitoring
//
// # Delivery
//
// Publish queues a message and returns; the broker acknowledgment is
// awaited on a background goroutine. The gateway loop therefore never
// blocks on delivery confirmation. Unacknowledged messages are logged
// and counted, never retried.
//
// # Security Considerations
//
//   - Enable TLS (mqtt.broker.tls) when the broker supports it
//   - The access token is the only credential; keep it out of config.yaml
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.Publish(mqtt.Topics{}.Telemetry(), []byte(`{"temperature":23.5}`), 1)
package mqtt
