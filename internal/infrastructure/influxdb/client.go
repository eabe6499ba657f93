package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	// Batching fallbacks; flush interval is configured in seconds.
	fallbackBatchSize     = 100
	fallbackFlushInterval = 10 * time.Second
)

// pointWriter is the slice of api.WriteAPI the recorder needs.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Client records gateway health points in an InfluxDB v2 bucket.
//
// Writes go through the non-blocking batched write API, so a slow or
// unreachable server never stalls a gateway cycle. Failures surface
// through the SetOnError callback.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	client influxdb2.Client
	points pointWriter

	closed    atomic.Bool
	closeOnce sync.Once
	onError   atomic.Pointer[func(error)]
}

// Connect pings the server and prepares the batched write API.
//
// Parameters:
//   - ctx: Bounds the initial ping (capped at 10s)
//   - cfg: InfluxDB section of the gateway config
//
// Returns:
//   - *Client: Recorder ready for WriteCycle
//   - error: ErrDisabled, or ErrConnectionFailed if the server is unreachable
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if ok, err := client.Ping(pingCtx); err != nil || !ok {
		client.Close()
		if err == nil {
			err = fmt.Errorf("server reported unhealthy")
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, err)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	c := newClient(client, writeAPI)

	go func() {
		for err := range writeAPI.Errors() {
			if cb := c.onError.Load(); cb != nil {
				(*cb)(err)
			}
		}
	}()

	return c, nil
}

func newClient(client influxdb2.Client, points pointWriter) *Client {
	return &Client{client: client, points: points}
}

// clientOptions maps the config batching onto client options.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(fallbackBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := fallbackFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}
	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds())) //nolint:gosec // positive by construction
}

// Close flushes buffered points and releases the client. Later calls are no-ops.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.points.Flush()
		if c.client != nil {
			c.client.Close()
		}
	})
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.closed.Load() || c.client == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	ok, err := c.client.Ping(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("influxdb ping: %w", err)
	case !ok:
		return fmt.Errorf("influxdb ping: server reported unhealthy")
	}
	return nil
}

// IsConnected reports whether the client is still open.
func (c *Client) IsConnected() bool {
	return !c.closed.Load()
}

// SetOnError installs the callback for asynchronous write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.onError.Store(&callback)
}

// Flush sends buffered points now. No-op after Close.
func (c *Client) Flush() {
	if c.closed.Load() {
		return
	}
	c.points.Flush()
}
