package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/gateway"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// StatusProvider is the read-only view of the gateway the server reports.
type StatusProvider interface {
	State() gateway.State
	Reading() gateway.SensorReading
	Stats() gateway.Stats
}

// Transport is the publish transport as seen by health and metrics.
type Transport interface {
	HealthCheck(ctx context.Context) error
	DeliveryFailures() uint64
}

// Deps holds the dependencies required by the status server.
type Deps struct {
	Config        config.StatusConfig
	Logger        *logging.Logger
	Gateway       StatusProvider
	Transport     Transport // optional
	TransportKind string    // "mqtt" or "kafka"
	Device        string
	ExternalHub   *Hub // If set, the server uses this hub instead of creating its own
	Version       string
}

// Server is the status HTTP server.
//
// It manages the HTTP listener, routes, middleware and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg           config.StatusConfig
	logger        *logging.Logger
	gateway       StatusProvider
	transport     Transport
	transportKind string
	device        string
	version       string
	startTime     time.Time

	server      *http.Server
	listener    net.Listener
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
	closeOnce   sync.Once
	closeErr    error
}

// New creates a new status server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("gateway status provider is required")
	}

	s := &Server{
		cfg:           deps.Config,
		logger:        deps.Logger.With("component", "api"),
		gateway:       deps.Gateway,
		transport:     deps.Transport,
		transportKind: deps.TransportKind,
		device:        deps.Device,
		version:       deps.Version,
		startTime:     time.Now(),
	}

	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Start binds the listener and serves HTTP in a background goroutine.
//
// Binding happens before Start returns, so a port already in use is
// reported here rather than logged later.
//
// Parameters:
//   - ctx: Parent context for the hub and background goroutines
//
// Returns:
//   - error: If the listener cannot be bound
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.cfg.WebSocket, s.logger)
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding status server on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	s.logger.Info("status server listening", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Hub returns the WebSocket hub in use.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close gracefully shuts down the status server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}

		ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		s.logger.Info("status server shutting down")
		if err := s.server.Shutdown(ctx); err != nil {
			s.closeErr = fmt.Errorf("shutting down status server: %w", err)
		}
	})
	return s.closeErr
}

// HealthCheck verifies the status server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("status server not started")
	}

	return nil
}
