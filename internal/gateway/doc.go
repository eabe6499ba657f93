// Package gateway implements the acquisition and publish loop.
//
// Each cycle receives one payload from the radio within a bounded
// timeout, parses it into a SensorReading and publishes the reading as
// JSON to the telemetry topic. Failed cycles are logged and skipped; the
// loop always sleeps the fixed delay before the next cycle, so a dead
// radio or a noisy link never turns into a tight retry loop.
//
// The gateway depends only on two capabilities, RadioReceiver and
// TelemetryPublisher, so the radio driver and the transport (MQTT or
// Kafka) are chosen at startup and fakes can be used in tests.
//
// Lifecycle:
//
//	Idle -> Connected -> {Listening <-> Publishing} -> ShuttingDown -> Stopped
//
// Usage:
//
//	gw, err := gateway.New(gateway.Options{
//	    Receiver:  rx,
//	    Publisher: mqttClient,
//	    Config:    gateway.ConfigFrom(cfg.Gateway),
//	    Logger:    log,
//	})
//	if err != nil {
//	    return err
//	}
//	gw.MarkConnected()
//	return gw.Run(ctx) // returns after ctx is cancelled
package gateway
