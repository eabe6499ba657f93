package api

import (
	"context"
	"net/http"
	"runtime"
	"time"
)

// transportProbeTimeout bounds the transport health probe in /metrics.
const transportProbeTimeout = 2 * time.Second

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	Transport     TransportMetrics `json:"transport"`
	Gateway       GatewayMetrics   `json:"gateway"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// TransportMetrics contains publish transport statistics.
type TransportMetrics struct {
	Kind             string `json:"kind"`
	Connected        bool   `json:"connected"`
	DeliveryFailures uint64 `json:"delivery_failures"`
}

// GatewayMetrics contains cycle counters.
type GatewayMetrics struct {
	State           string `json:"state"`
	Cycles          uint64 `json:"cycles"`
	Published       uint64 `json:"published"`
	NoData          uint64 `json:"no_data"`
	DecodeErrors    uint64 `json:"decode_errors"`
	Malformed       uint64 `json:"malformed"`
	PublishFailures uint64 `json:"publish_failures"`
}

// handleMetrics returns runtime, transport and gateway metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := s.gateway.Stats()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Transport: TransportMetrics{Kind: s.transportKind},
		Gateway: GatewayMetrics{
			State:           s.gateway.State().String(),
			Cycles:          stats.Cycles,
			Published:       stats.Published,
			NoData:          stats.NoData,
			DecodeErrors:    stats.DecodeErrors,
			Malformed:       stats.Malformed,
			PublishFailures: stats.PublishFailures,
		},
	}

	if s.hub != nil {
		metrics.WebSocket.ConnectedClients = s.hub.ClientCount()
	}

	if s.transport != nil {
		ctx, cancel := context.WithTimeout(r.Context(), transportProbeTimeout)
		defer cancel()
		metrics.Transport.Connected = s.transport.HealthCheck(ctx) == nil
		metrics.Transport.DeliveryFailures = s.transport.DeliveryFailures()
	}

	writeJSON(w, http.StatusOK, metrics)
}
