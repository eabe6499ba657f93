// Radio Telemetry Gateway
//
// This is the main entry point for the gateway. It receives sensor
// payloads from an nRF24-style radio, parses them into temperature, light
// and water readings, and publishes each reading as JSON telemetry to a
// ThingsBoard MQTT broker (or a Kafka topic).
//
// For configuration, see: configs/config.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/api"
	"github.com/nerrad567/gray-logic-gateway/internal/gateway"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/kafka"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-gateway/internal/radio"
	"github.com/nerrad567/gray-logic-gateway/internal/radio/sim"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// publisher is what the gateway publishes through and what the status
// server probes. Both transport clients satisfy it.
type publisher interface {
	gateway.TelemetryPublisher
	api.Transport
}

func main() {
	// Cancel on Ctrl+C or SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting radio telemetry gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version).With("device", cfg.Gateway.DeviceName)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Radio first: without hardware there is nothing to publish
	receiver, err := openRadio(cfg, log)
	if err != nil {
		return fmt.Errorf("opening radio: %w", err)
	}
	log.Info("radio configured", receiver.Details()...)

	pub, err := connectPublisher(ctx, cfg, log)
	if err != nil {
		receiver.Stop()
		return fmt.Errorf("connecting publisher: %w", err)
	}
	// The gateway closes pub and stops the receiver on shutdown

	var observers []gateway.Observer

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			receiver.Stop()
			pub.Close() //nolint:errcheck // startup already failed
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		observers = append(observers, cycleRecorder(influxClient, pub, cfg.Gateway.DeviceName, cfg.Publisher.Kind))
	} else {
		log.Info("InfluxDB disabled")
	}

	// The hub is created before the gateway so it can observe cycles
	hub := api.NewHub(cfg.Status.WebSocket, log)
	observers = append(observers, hub)

	gw, err := gateway.New(gateway.Options{
		Receiver:  receiver,
		Publisher: pub,
		Config:    gateway.ConfigFrom(cfg.Gateway),
		Logger:    log,
		Observers: observers,
	})
	if err != nil {
		receiver.Stop()
		pub.Close() //nolint:errcheck // startup already failed
		return fmt.Errorf("creating gateway: %w", err)
	}
	gw.MarkConnected()

	if cfg.Status.Enabled {
		srv, srvErr := startStatusServer(ctx, cfg, log, gw, pub, hub)
		if srvErr != nil {
			receiver.Stop()
			pub.Close() //nolint:errcheck // startup already failed
			return srvErr
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing status server", "error", closeErr)
			}
		}()
	} else {
		go hub.Run(ctx)
	}

	// Blocks until ctx is cancelled; the gateway shuts itself down
	if err := gw.Run(ctx); err != nil {
		return fmt.Errorf("running gateway: %w", err)
	}

	log.Info("radio telemetry gateway stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GATEWAY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GATEWAY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openRadio builds the configured driver and opens the receiver on it.
func openRadio(cfg *config.Config, log *logging.Logger) (*radio.Receiver, error) {
	radioCfg, err := radio.ConfigFrom(cfg.Radio)
	if err != nil {
		return nil, err
	}

	var driver radio.Driver
	switch cfg.Radio.Driver {
	case config.RadioDriverSim:
		driver = sim.New(sim.Options{
			Interval:    cfg.Radio.Sim.Interval,
			DropRate:    cfg.Radio.Sim.DropRate,
			CorruptRate: cfg.Radio.Sim.CorruptRate,
		})
		log.Info("using simulated radio",
			"interval", cfg.Radio.Sim.Interval,
			"drop_rate", cfg.Radio.Sim.DropRate,
			"corrupt_rate", cfg.Radio.Sim.CorruptRate,
		)
	default:
		return nil, fmt.Errorf("%w: unsupported driver %q", radio.ErrInvalidConfig, cfg.Radio.Driver)
	}

	return radio.Open(driver, radioCfg, log)
}

// connectPublisher connects the configured telemetry transport.
//
// Returns:
//   - publisher: Connected transport
//   - error: If the broker cannot be reached
func connectPublisher(ctx context.Context, cfg *config.Config, log *logging.Logger) (publisher, error) {
	switch cfg.Publisher.Kind {
	case config.PublisherKafka:
		client, err := kafka.Connect(ctx, cfg.Kafka, cfg.Gateway.DeviceName, byte(cfg.Gateway.QoS)) //nolint:gosec // validated 0-2
		if err != nil {
			return nil, err
		}
		client.SetLogger(log)
		log.Info("Kafka connected",
			"brokers", cfg.Kafka.Brokers,
			"topic", client.Topic(),
		)
		return client, nil

	default:
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return nil, err
		}
		client.SetLogger(log)
		client.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		client.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", cfg.BrokerAddress(),
			"client_id", client.ClientID(),
		)
		return client, nil
	}
}

// startStatusServer starts the local status API sharing the gateway's hub.
func startStatusServer(ctx context.Context, cfg *config.Config, log *logging.Logger, gw *gateway.Gateway, pub publisher, hub *api.Hub) (*api.Server, error) {
	srv, err := api.New(api.Deps{
		Config:        cfg.Status,
		Logger:        log,
		Gateway:       gw,
		Transport:     pub,
		TransportKind: cfg.Publisher.Kind,
		Device:        cfg.Gateway.DeviceName,
		ExternalHub:   hub,
		Version:       version,
	})
	if err != nil {
		return nil, fmt.Errorf("creating status server: %w", err)
	}

	go hub.Run(ctx)

	if err := srv.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting status server: %w", err)
	}
	return srv, nil
}

// metricsWriter is the subset of the InfluxDB client used for cycle metrics.
type metricsWriter interface {
	WriteCycle(device, outcome string, latency time.Duration, at time.Time)
	WriteDeliveryFailures(device, transport string, failures uint64)
}

// cycleRecorder writes one health point per finished cycle, plus the
// transport's cumulative delivery failures.
func cycleRecorder(w metricsWriter, pub api.Transport, device, transport string) gateway.ObserverFunc {
	return func(result gateway.CycleResult) {
		w.WriteCycle(device, string(result.Outcome), result.Duration, result.Started)
		w.WriteDeliveryFailures(device, transport, pub.DeliveryFailures())
	}
}
