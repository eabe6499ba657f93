// Package influxdb records gateway health metrics in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, non-blocking batched writes and health checks. Only
// operational data is written: one gateway_cycles point per cycle with
// its outcome and latency. Sensor readings are not stored; the gateway
// keeps no reading history.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteCycle("radio-gateway", "published", 120*time.Millisecond, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Write errors surface asynchronously through SetOnError.
package influxdb
