package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/gateway"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-gateway/internal/radio"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GATEWAY_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config failure", err)
	}
}

// TestRun_UnreachableKafka verifies a publisher that cannot connect is fatal.
func TestRun_UnreachableKafka(t *testing.T) {
	configPath := writeTestConfig(t, `
gateway:
  qos: 1
  delay: 100ms
  receive_timeout: 100ms
publisher:
  kind: kafka
kafka:
  brokers: ["127.0.0.1:1"]
  topic: "telemetry.readings"
  write_timeout: 1s
logging:
  level: error
  format: text
  output: stdout
`)
	t.Setenv("GATEWAY_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail when the Kafka broker is unreachable")
	}
	if !strings.Contains(err.Error(), "connecting publisher") {
		t.Errorf("run() error = %v, want publisher failure", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("GATEWAY_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("GATEWAY_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestOpenRadio_Sim(t *testing.T) {
	cfg := config.Default()

	receiver, err := openRadio(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("openRadio() error = %v", err)
	}
	defer receiver.Stop()

	if receiver.PayloadSize() != 32 {
		t.Errorf("PayloadSize() = %d, want 32", receiver.PayloadSize())
	}
}

func TestOpenRadio_UnsupportedDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Radio.Driver = "spi"

	_, err := openRadio(cfg, logging.Discard())
	if !errors.Is(err, radio.ErrInvalidConfig) {
		t.Errorf("openRadio() error = %v, want ErrInvalidConfig", err)
	}
}

type recordedCycle struct {
	device, outcome string
	latency         time.Duration
}

type fakeMetrics struct {
	mu       sync.Mutex
	cycles   []recordedCycle
	failures []uint64
}

func (f *fakeMetrics) WriteCycle(device, outcome string, latency time.Duration, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cycles = append(f.cycles, recordedCycle{device, outcome, latency})
}

func (f *fakeMetrics) WriteDeliveryFailures(_, _ string, failures uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, failures)
}

type fakeTransport struct{ failures uint64 }

func (f *fakeTransport) HealthCheck(context.Context) error { return nil }
func (f *fakeTransport) DeliveryFailures() uint64          { return f.failures }

func TestCycleRecorder(t *testing.T) {
	metrics := &fakeMetrics{}
	record := cycleRecorder(metrics, &fakeTransport{failures: 2}, "radio-gateway", "mqtt")

	record.ObserveCycle(gateway.CycleResult{
		Started:  time.Now(),
		Duration: 40 * time.Millisecond,
		Outcome:  gateway.OutcomeNoData,
	})

	if len(metrics.cycles) != 1 {
		t.Fatalf("cycles written = %d, want 1", len(metrics.cycles))
	}
	got := metrics.cycles[0]
	if got.device != "radio-gateway" || got.outcome != "no_data" || got.latency != 40*time.Millisecond {
		t.Errorf("cycle = %+v", got)
	}
	if len(metrics.failures) != 1 || metrics.failures[0] != 2 {
		t.Errorf("failures = %v, want [2]", metrics.failures)
	}
}
