// Package api provides the local status HTTP server for the gateway.
//
// It exposes read-only endpoints for health probes and operators, and a
// WebSocket stream that relays every published reading:
//
//	GET /api/v1/health   liveness plus transport health
//	GET /api/v1/status   lifecycle state, held reading, cycle counters
//	GET /api/v1/metrics  runtime, WebSocket and transport metrics
//	GET /api/v1/ws       live "reading.published" events
//
// The server follows the same lifecycle pattern as the other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
