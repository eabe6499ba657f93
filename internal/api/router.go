package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-gateway/internal/gateway"
)

// defaultWSPath is used when the config leaves the WebSocket path empty.
const defaultWSPath = "/api/v1/ws"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/metrics", s.handleMetrics)
	})

	wsPath := s.cfg.WebSocket.Path
	if wsPath == "" {
		wsPath = defaultWSPath
	}
	r.Get(wsPath, s.handleWebSocket)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	return r
}

// handleHealth reports liveness. It answers 503 once the gateway has
// stopped or when the publish transport reports a problem.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.gateway.State()
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
		"state":   state.String(),
	}

	if state == gateway.StateShuttingDown || state == gateway.StateStopped {
		body["status"] = "stopping"
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}

	if s.transport != nil {
		if err := s.transport.HealthCheck(r.Context()); err != nil {
			body["status"] = "degraded"
			body["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}

	writeJSON(w, http.StatusOK, body)
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Device    string                `json:"device"`
	State     string                `json:"state"`
	Reading   gateway.SensorReading `json:"reading"`
	Stats     gateway.Stats         `json:"stats"`
	Timestamp string                `json:"timestamp"`
}

// handleStatus returns the lifecycle state, held reading and counters.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Device:    s.device,
		State:     s.gateway.State().String(),
		Reading:   s.gateway.Reading(),
		Stats:     s.gateway.Stats(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
