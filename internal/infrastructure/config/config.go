package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Publisher kinds.
const (
	PublisherMQTT  = "mqtt"
	PublisherKafka = "kafka"
)

// Radio driver kinds.
const (
	RadioDriverSim = "sim"
)

// Config is the root configuration structure for the gateway.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Radio     RadioConfig     `yaml:"radio"`
	Publisher PublisherConfig `yaml:"publisher"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Status    StatusConfig    `yaml:"status"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GatewayConfig controls the acquisition/publish cycle.
type GatewayConfig struct {
	// DeviceName tags log lines and health metrics.
	DeviceName string `yaml:"device_name"`

	// Topic is the telemetry topic every reading is published to.
	Topic string `yaml:"topic"`

	// QoS is the publish quality-of-service level (0, 1 or 2).
	QoS int `yaml:"qos"`

	// Delay is the fixed pause between cycles, published or not.
	Delay time.Duration `yaml:"delay"`

	// ReceiveTimeout bounds each radio receive.
	ReceiveTimeout time.Duration `yaml:"receive_timeout"`

	// Delimiter separates the numeric fields of a raw payload.
	Delimiter string `yaml:"delimiter"`
}

// RadioConfig describes the nRF24 receiver wiring and addressing.
type RadioConfig struct {
	Driver       string        `yaml:"driver"`
	CEPin        int           `yaml:"ce_pin"`
	CSNPin       int           `yaml:"csn_pin"`
	PayloadSize  int           `yaml:"payload_size"`
	Address      string        `yaml:"address"`
	Pipe         int           `yaml:"pipe"`
	PowerLevel   string        `yaml:"power_level"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Sim          SimConfig     `yaml:"sim"`
}

// SimConfig tunes the simulated radio used when no hardware is attached.
type SimConfig struct {
	// Interval is how often the simulated transmitter sends a payload.
	Interval time.Duration `yaml:"interval"`

	// DropRate is the fraction (0..1) of transmissions that never arrive.
	DropRate float64 `yaml:"drop_rate"`

	// CorruptRate is the fraction (0..1) of payloads replaced with garbage.
	CorruptRate float64 `yaml:"corrupt_rate"`
}

// PublisherConfig selects the telemetry transport.
type PublisherConfig struct {
	Kind string `yaml:"kind"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	KeepAlive time.Duration       `yaml:"keepalive"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
//
// ThingsBoard authenticates devices with an access token sent as the
// MQTT username. TokenFile takes precedence over Token when set.
type MQTTAuthConfig struct {
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
	Password  string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// KafkaConfig contains Kafka producer settings.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for gateway health metrics.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// StatusConfig contains the local status HTTP server settings.
type StatusConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket settings for the live reading stream.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//  4. Access token file, if configured
//
// Environment variables follow the pattern: GATEWAY_SECTION_KEY
// For example: GATEWAY_MQTT_HOST, GATEWAY_ACCESS_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.loadAccessToken(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config populated with the documented defaults:
// ThingsBoard demo host on 1883, QoS 1, 5s cadence, 32 byte payloads.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			DeviceName:     "radio-gateway",
			Topic:          "v1/devices/me/telemetry",
			QoS:            1,
			Delay:          5 * time.Second,
			ReceiveTimeout: 5 * time.Second,
			Delimiter:      ";",
		},
		Radio: RadioConfig{
			Driver:       RadioDriverSim,
			CEPin:        22,
			CSNPin:       0,
			PayloadSize:  32,
			Address:      "1Node",
			Pipe:         1,
			PowerLevel:   "low",
			PollInterval: 10 * time.Millisecond,
			Sim: SimConfig{
				Interval: 2 * time.Second,
			},
		},
		Publisher: PublisherConfig{
			Kind: PublisherMQTT,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "demo.thingsboard.io",
				Port: 1883,
			},
			KeepAlive: 60 * time.Second,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Kafka: KafkaConfig{
			Brokers:      []string{"localhost:9092"},
			Topic:        "telemetry.readings",
			WriteTimeout: 10 * time.Second,
		},
		Status: StatusConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				Path:           "/api/v1/ws",
				MaxMessageSize: 4096,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/gateway.log",
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GATEWAY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("GATEWAY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GATEWAY_ACCESS_TOKEN"); v != "" {
		cfg.MQTT.Auth.Token = v
	}
	if v := os.Getenv("GATEWAY_ACCESS_TOKEN_FILE"); v != "" {
		cfg.MQTT.Auth.TokenFile = v
	}

	// Publisher
	if v := os.Getenv("GATEWAY_PUBLISHER_KIND"); v != "" {
		cfg.Publisher.Kind = v
	}

	// Kafka
	if v := os.Getenv("GATEWAY_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}

	// Radio
	if v := os.Getenv("GATEWAY_RADIO_DRIVER"); v != "" {
		cfg.Radio.Driver = v
	}

	// InfluxDB
	if v := os.Getenv("GATEWAY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// loadAccessToken reads the device access token from TokenFile when set.
// The file holds the bare token; surrounding whitespace is ignored.
func (c *Config) loadAccessToken() error {
	if c.MQTT.Auth.TokenFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.MQTT.Auth.TokenFile)
	if err != nil {
		return fmt.Errorf("reading access token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return fmt.Errorf("access token file %s is empty", c.MQTT.Auth.TokenFile)
	}
	c.MQTT.Auth.Token = token
	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Gateway validation
	if c.Gateway.Topic == "" {
		errs = append(errs, "gateway.topic is required")
	}
	if c.Gateway.QoS < 0 || c.Gateway.QoS > 2 {
		errs = append(errs, "gateway.qos must be 0, 1, or 2")
	}
	if c.Gateway.Delay <= 0 {
		errs = append(errs, "gateway.delay must be positive")
	}
	if c.Gateway.ReceiveTimeout <= 0 {
		errs = append(errs, "gateway.receive_timeout must be positive")
	}
	if c.Gateway.Delimiter == "" {
		errs = append(errs, "gateway.delimiter is required")
	}

	// Radio validation
	if c.Radio.Driver != RadioDriverSim {
		errs = append(errs, fmt.Sprintf("radio.driver %q is not supported", c.Radio.Driver))
	}
	if c.Radio.PayloadSize < 1 || c.Radio.PayloadSize > 32 {
		errs = append(errs, "radio.payload_size must be between 1 and 32")
	}
	if l := len(c.Radio.Address); l < 3 || l > 5 {
		errs = append(errs, "radio.address must be 3 to 5 bytes")
	}
	if c.Radio.Pipe < 0 || c.Radio.Pipe > 5 {
		errs = append(errs, "radio.pipe must be between 0 and 5")
	}
	switch strings.ToLower(c.Radio.PowerLevel) {
	case "min", "low", "high", "max":
	default:
		errs = append(errs, "radio.power_level must be min, low, high, or max")
	}
	if c.Radio.Sim.DropRate < 0 || c.Radio.Sim.DropRate > 1 {
		errs = append(errs, "radio.sim.drop_rate must be between 0 and 1")
	}
	if c.Radio.Sim.CorruptRate < 0 || c.Radio.Sim.CorruptRate > 1 {
		errs = append(errs, "radio.sim.corrupt_rate must be between 0 and 1")
	}

	// Publisher validation
	switch c.Publisher.Kind {
	case PublisherMQTT:
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.Auth.Token == "" {
			errs = append(errs, "mqtt.auth.token is required (set GATEWAY_ACCESS_TOKEN or mqtt.auth.token_file)")
		}
	case PublisherKafka:
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, "kafka.brokers is required")
		}
		if c.Kafka.Topic == "" {
			errs = append(errs, "kafka.topic is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("publisher.kind must be %q or %q", PublisherMQTT, PublisherKafka))
	}

	// Status server validation
	if c.Status.Enabled && (c.Status.Port < 1 || c.Status.Port > 65535) {
		errs = append(errs, "status.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BrokerAddress returns host:port of the MQTT broker.
func (c *Config) BrokerAddress() string {
	return fmt.Sprintf("%s:%d", c.MQTT.Broker.Host, c.MQTT.Broker.Port)
}

// GetReadTimeout returns the status server read timeout as a Duration.
func (c *StatusConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the status server write timeout as a Duration.
func (c *StatusConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the status server idle timeout as a Duration.
func (c *StatusConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
