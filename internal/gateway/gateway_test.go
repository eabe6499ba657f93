package gateway

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-gateway/internal/radio"
)

// ============================================================================
// Fakes
// ============================================================================

type receiveResult struct {
	payload []byte
	err     error
}

// fakeReceiver serves scripted results, then either repeats a payload,
// blocks until cancelled, or times out.
type fakeReceiver struct {
	mu       sync.Mutex
	results  []receiveResult
	repeat   []byte
	block    bool
	calls    int
	stops    int
	timeouts []time.Duration
}

func (f *fakeReceiver) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.timeouts = append(f.timeouts, timeout)
	if len(f.results) > 0 {
		r := f.results[0]
		f.results = f.results[1:]
		f.mu.Unlock()
		return r.payload, r.err
	}
	repeat, block := f.repeat, f.block
	f.mu.Unlock()

	switch {
	case repeat != nil:
		return repeat, nil
	case block:
		<-ctx.Done()
		return nil, ctx.Err()
	default:
		return nil, radio.ErrTimeout
	}
}

func (f *fakeReceiver) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeReceiver) counts() (calls, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.stops
}

type publishedMessage struct {
	topic   string
	payload string
	qos     byte
}

// fakePublisher records publishes and closes.
type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	failNext int
	closes   int
	closeErr error
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return errors.New("broker unavailable")
	}
	f.messages = append(f.messages, publishedMessage{topic: topic, payload: string(payload), qos: qos})
	return nil
}

func (f *fakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return f.closeErr
}

func (f *fakePublisher) published() []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedMessage(nil), f.messages...)
}

func (f *fakePublisher) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// recordingObserver keeps every CycleResult.
type recordingObserver struct {
	mu      sync.Mutex
	results []CycleResult
}

func (r *recordingObserver) ObserveCycle(result CycleResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *recordingObserver) all() []CycleResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CycleResult(nil), r.results...)
}

func ok(payload string) receiveResult {
	return receiveResult{payload: []byte(payload)}
}

func newTestGateway(t *testing.T, rx *fakeReceiver, pub *fakePublisher, observers ...Observer) *Gateway {
	t.Helper()
	gw, err := New(Options{
		Receiver:  rx,
		Publisher: pub,
		Config: Config{
			Topic:          DefaultTopic,
			QoS:            1,
			Delay:          10 * time.Millisecond,
			ReceiveTimeout: 50 * time.Millisecond,
		},
		Observers: observers,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	gw.MarkConnected()
	return gw
}

// ============================================================================
// New
// ============================================================================

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"missing receiver", Options{Publisher: &fakePublisher{}}},
		{"missing publisher", Options{Receiver: &fakeReceiver{}}},
		{"qos out of range", Options{Receiver: &fakeReceiver{}, Publisher: &fakePublisher{}, Config: Config{QoS: 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	gw, err := New(Options{Receiver: &fakeReceiver{}, Publisher: &fakePublisher{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if gw.cfg.Topic != DefaultTopic {
		t.Errorf("Topic = %q, want %q", gw.cfg.Topic, DefaultTopic)
	}
	if gw.cfg.Delay != DefaultDelay {
		t.Errorf("Delay = %v, want %v", gw.cfg.Delay, DefaultDelay)
	}
	if gw.cfg.ReceiveTimeout != DefaultReceiveTimeout {
		t.Errorf("ReceiveTimeout = %v, want %v", gw.cfg.ReceiveTimeout, DefaultReceiveTimeout)
	}
	if gw.cfg.Delimiter != ";" {
		t.Errorf("Delimiter = %q, want %q", gw.cfg.Delimiter, ";")
	}
	if gw.State() != StateIdle {
		t.Errorf("State() = %v, want idle", gw.State())
	}
	if gw.Reading() != (SensorReading{}) {
		t.Errorf("Reading() = %+v, want zero reading", gw.Reading())
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.Default().Gateway)

	if cfg.Topic != "v1/devices/me/telemetry" {
		t.Errorf("Topic = %q", cfg.Topic)
	}
	if cfg.QoS != 1 {
		t.Errorf("QoS = %d, want 1", cfg.QoS)
	}
	if cfg.Delay != 5*time.Second || cfg.ReceiveTimeout != 5*time.Second {
		t.Errorf("Delay/ReceiveTimeout = %v/%v, want 5s/5s", cfg.Delay, cfg.ReceiveTimeout)
	}
}

func TestMarkConnected(t *testing.T) {
	gw, _ := New(Options{Receiver: &fakeReceiver{}, Publisher: &fakePublisher{}})

	gw.MarkConnected()
	if gw.State() != StateConnected {
		t.Errorf("State() = %v, want connected", gw.State())
	}

	gw.setState(StateListening)
	gw.MarkConnected()
	if gw.State() != StateListening {
		t.Errorf("MarkConnected() changed state from listening to %v", gw.State())
	}
}

// ============================================================================
// AcquireAndParse
// ============================================================================

func TestAcquireAndParse(t *testing.T) {
	tests := []struct {
		name    string
		result  receiveResult
		want    SensorReading
		wantErr error
	}{
		{
			name:   "valid payload",
			result: ok("23.5;2731;7\x00\x00\x00"),
			want:   SensorReading{Temperature: 23.5, LightLevel: 2731, WaterLevel: 7},
		},
		{
			name:    "timeout",
			result:  receiveResult{err: radio.ErrTimeout},
			wantErr: ErrNoData,
		},
		{
			name:    "receiver stopped",
			result:  receiveResult{err: radio.ErrStopped},
			wantErr: ErrNoData,
		},
		{
			name:    "nil payload",
			result:  receiveResult{},
			wantErr: ErrNoData,
		},
		{
			name:    "malformed",
			result:  ok("bad;data"),
			wantErr: ErrMalformedPayload,
		},
		{
			name:    "undecodable",
			result:  receiveResult{payload: []byte{0xc3, 0x28, ';', '1'}},
			wantErr: ErrDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rx := &fakeReceiver{results: []receiveResult{tt.result}}
			gw := newTestGateway(t, rx, &fakePublisher{})

			got, err := gw.AcquireAndParse(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("AcquireAndParse() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("AcquireAndParse() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("AcquireAndParse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAcquireAndParse_UsesReceiveTimeout(t *testing.T) {
	rx := &fakeReceiver{}
	gw := newTestGateway(t, rx, &fakePublisher{})

	gw.AcquireAndParse(context.Background()) //nolint:errcheck // only the timeout matters

	if len(rx.timeouts) != 1 || rx.timeouts[0] != 50*time.Millisecond {
		t.Errorf("Receive timeouts = %v, want [50ms]", rx.timeouts)
	}
}

func TestAcquireAndParse_Cancelled(t *testing.T) {
	rx := &fakeReceiver{block: true}
	gw := newTestGateway(t, rx, &fakePublisher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.AcquireAndParse(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("AcquireAndParse() error = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrNoData) {
		t.Error("cancellation reported as ErrNoData")
	}
}

// ============================================================================
// RunCycle
// ============================================================================

func TestRunCycle_PublishesOnSuccess(t *testing.T) {
	rx := &fakeReceiver{results: []receiveResult{ok("23.5;2731;7\x00\x00\x00")}}
	pub := &fakePublisher{}
	obs := &recordingObserver{}
	gw := newTestGateway(t, rx, pub, obs)

	if err := gw.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	msgs := pub.published()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	if msgs[0].topic != "v1/devices/me/telemetry" {
		t.Errorf("topic = %q, want v1/devices/me/telemetry", msgs[0].topic)
	}
	if msgs[0].qos != 1 {
		t.Errorf("qos = %d, want 1", msgs[0].qos)
	}
	want := `{"temperature":23.5,"light_level":2731.0,"water_level":7.0}`
	if msgs[0].payload != want {
		t.Errorf("payload = %s, want %s", msgs[0].payload, want)
	}

	if got := gw.Reading(); got != (SensorReading{Temperature: 23.5, LightLevel: 2731, WaterLevel: 7}) {
		t.Errorf("Reading() = %+v", got)
	}
	if gw.State() != StatePublishing {
		t.Errorf("State() = %v, want publishing", gw.State())
	}

	results := obs.all()
	if len(results) != 1 || results[0].Outcome != OutcomePublished {
		t.Fatalf("observer results = %+v, want one published", results)
	}
	if string(results[0].Payload) != want {
		t.Errorf("observer payload = %s, want %s", results[0].Payload, want)
	}
}

func TestRunCycle_FailureSkipsPublish(t *testing.T) {
	previous := SensorReading{Temperature: 20, LightLevel: 100, WaterLevel: 1}

	tests := []struct {
		name        string
		result      receiveResult
		wantErr     error
		wantOutcome Outcome
	}{
		{"bad data", ok("bad;data"), ErrMalformedPayload, OutcomeMalformed},
		{"too few fields", ok("1;2\x00\x00"), ErrInsufficientFields, OutcomeMalformed},
		{"invalid text", receiveResult{payload: []byte{0xff, ';', '1', ';', '2'}}, ErrDecode, OutcomeDecodeError},
		{"timeout", receiveResult{err: radio.ErrTimeout}, ErrNoData, OutcomeNoData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rx := &fakeReceiver{results: []receiveResult{ok("20;100;1"), tt.result}}
			pub := &fakePublisher{}
			obs := &recordingObserver{}
			gw := newTestGateway(t, rx, pub, obs)

			if err := gw.RunCycle(context.Background()); err != nil {
				t.Fatalf("first RunCycle() error = %v", err)
			}

			err := gw.RunCycle(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("RunCycle() error = %v, want %v", err, tt.wantErr)
			}
			if n := len(pub.published()); n != 1 {
				t.Errorf("published %d messages, want 1 (failed cycle must not publish)", n)
			}
			if got := gw.Reading(); got != previous {
				t.Errorf("Reading() = %+v, want previous %+v", got, previous)
			}
			if gw.State() != StateListening {
				t.Errorf("State() = %v, want listening", gw.State())
			}

			results := obs.all()
			if len(results) != 2 || results[1].Outcome != tt.wantOutcome {
				t.Errorf("observer outcomes = %+v, want second %q", results, tt.wantOutcome)
			}
		})
	}
}

func TestRunCycle_PublishFailure(t *testing.T) {
	rx := &fakeReceiver{results: []receiveResult{ok("18.5;42;9")}}
	pub := &fakePublisher{failNext: 1}
	gw := newTestGateway(t, rx, pub)

	err := gw.RunCycle(context.Background())
	if !errors.Is(err, ErrPublishFailed) {
		t.Fatalf("RunCycle() error = %v, want ErrPublishFailed", err)
	}

	// The reading was acquired, so it is held even though delivery failed
	if got := gw.Reading(); got != (SensorReading{Temperature: 18.5, LightLevel: 42, WaterLevel: 9}) {
		t.Errorf("Reading() = %+v", got)
	}

	stats := gw.Stats()
	if stats.PublishFailures != 1 || stats.Published != 0 {
		t.Errorf("Stats() = %+v, want 1 publish failure", stats)
	}
	if !strings.Contains(stats.LastError, "broker unavailable") {
		t.Errorf("LastError = %q, want broker error", stats.LastError)
	}
}

func TestRunCycle_Alternating(t *testing.T) {
	script := []receiveResult{
		ok("10;100;1"),
		{err: radio.ErrTimeout},
		ok("11;110;2"),
		ok("bad;data"),
		ok("12;120;3"),
		{payload: []byte{0xff}},
		ok("13;130;4"),
		ok("1;2"),
	}
	rx := &fakeReceiver{results: script}
	pub := &fakePublisher{}
	gw := newTestGateway(t, rx, pub)

	successes := 0
	for range script {
		if err := gw.RunCycle(context.Background()); err == nil {
			successes++
		}
	}

	msgs := pub.published()
	if len(msgs) != successes || successes != 4 {
		t.Fatalf("published %d messages for %d successes, want 4", len(msgs), successes)
	}

	want := []string{
		`{"temperature":10.0,"light_level":100.0,"water_level":1.0}`,
		`{"temperature":11.0,"light_level":110.0,"water_level":2.0}`,
		`{"temperature":12.0,"light_level":120.0,"water_level":3.0}`,
		`{"temperature":13.0,"light_level":130.0,"water_level":4.0}`,
	}
	for i, w := range want {
		if msgs[i].payload != w {
			t.Errorf("message %d = %s, want %s", i, msgs[i].payload, w)
		}
	}

	stats := gw.Stats()
	if stats.Cycles != 8 || stats.Published != 4 || stats.NoData != 1 ||
		stats.Malformed != 2 || stats.DecodeErrors != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
	if stats.LastPublishedAt.IsZero() {
		t.Error("LastPublishedAt not set")
	}
}

func TestRunCycle_CancelledNotCounted(t *testing.T) {
	rx := &fakeReceiver{block: true}
	obs := &recordingObserver{}
	gw := newTestGateway(t, rx, &fakePublisher{}, obs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := gw.RunCycle(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("RunCycle() error = %v, want context.Canceled", err)
	}
	if gw.Stats().Cycles != 0 {
		t.Errorf("Cycles = %d, want 0 for a cancelled cycle", gw.Stats().Cycles)
	}
	if len(obs.all()) != 0 {
		t.Error("observer notified for a cancelled cycle")
	}
}

func TestObserverFunc(t *testing.T) {
	var got Outcome
	ObserverFunc(func(r CycleResult) { got = r.Outcome }).ObserveCycle(CycleResult{Outcome: OutcomeNoData})
	if got != OutcomeNoData {
		t.Errorf("ObserverFunc got %q, want %q", got, OutcomeNoData)
	}
}

// ============================================================================
// Run
// ============================================================================

// runAsync starts gw.Run and returns a channel carrying its result.
func runAsync(ctx context.Context, gw *Gateway) <-chan error {
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
}

func TestRun_NotConnected(t *testing.T) {
	gw, _ := New(Options{Receiver: &fakeReceiver{}, Publisher: &fakePublisher{}})

	if err := gw.Run(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Run() error = %v, want ErrNotConnected", err)
	}
}

func TestRun_ShutdownOnce(t *testing.T) {
	var buf bytes.Buffer
	rx := &fakeReceiver{repeat: []byte("21.5;500;5")}
	pub := &fakePublisher{}
	gw, err := New(Options{
		Receiver:  rx,
		Publisher: pub,
		Config:    Config{Delay: 5 * time.Millisecond, ReceiveTimeout: 10 * time.Millisecond},
		Logger:    logging.NewWithWriter(config.LoggingConfig{Level: "info"}, "test", &buf),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	gw.MarkConnected()

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, gw)
	time.Sleep(30 * time.Millisecond)
	cancel()
	waitRun(t, done)

	if _, stops := rx.counts(); stops != 1 {
		t.Errorf("receiver Stop called %d times, want 1", stops)
	}
	if n := pub.closeCount(); n != 1 {
		t.Errorf("publisher Close called %d times, want 1", n)
	}
	if gw.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", gw.State())
	}
	if len(pub.published()) == 0 {
		t.Error("no messages published before cancellation")
	}
	if !strings.Contains(buf.String(), "sensor data publish stopped") {
		t.Errorf("log missing stop message: %s", buf.String())
	}

	// A second shutdown is a no-op
	gw.shutdown()
	if _, stops := rx.counts(); stops != 1 || pub.closeCount() != 1 {
		t.Error("second shutdown touched the radio or transport")
	}
}

func TestRun_CancelDuringReceive(t *testing.T) {
	rx := &fakeReceiver{block: true}
	pub := &fakePublisher{}
	gw := newTestGateway(t, rx, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, gw)
	time.Sleep(10 * time.Millisecond)
	cancel()
	waitRun(t, done)

	if _, stops := rx.counts(); stops != 1 {
		t.Errorf("receiver Stop called %d times, want 1", stops)
	}
	if pub.closeCount() != 1 {
		t.Errorf("publisher Close called %d times, want 1", pub.closeCount())
	}
	if len(pub.published()) != 0 {
		t.Error("published during a cancelled receive")
	}
}

func TestRun_CancelDuringDelay(t *testing.T) {
	rx := &fakeReceiver{results: []receiveResult{ok("1;2;3")}}
	pub := &fakePublisher{}
	gw, _ := New(Options{
		Receiver:  rx,
		Publisher: pub,
		Config:    Config{Delay: time.Hour},
	})
	gw.MarkConnected()

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, gw)
	time.Sleep(20 * time.Millisecond)
	cancel()
	waitRun(t, done)

	if len(pub.published()) != 1 {
		t.Errorf("published %d messages, want 1", len(pub.published()))
	}
	if _, stops := rx.counts(); stops != 1 || pub.closeCount() != 1 {
		t.Errorf("Stop/Close = %d/%d, want 1/1", stops, pub.closeCount())
	}
}

func TestRun_AlreadyCancelled(t *testing.T) {
	rx := &fakeReceiver{repeat: []byte("1;2;3")}
	pub := &fakePublisher{}
	gw := newTestGateway(t, rx, pub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := gw.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if calls, stops := rx.counts(); calls != 0 || stops != 1 {
		t.Errorf("Receive/Stop = %d/%d, want 0/1", calls, stops)
	}
	if pub.closeCount() != 1 {
		t.Errorf("Close called %d times, want 1", pub.closeCount())
	}
}

func TestRun_RateBound(t *testing.T) {
	const delay = 40 * time.Millisecond
	rx := &fakeReceiver{repeat: []byte("22;300;4")}
	pub := &fakePublisher{}
	gw, _ := New(Options{Receiver: rx, Publisher: pub, Config: Config{Delay: delay}})
	gw.MarkConnected()

	ctx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	done := runAsync(ctx, gw)
	time.Sleep(200 * time.Millisecond)
	cancel()
	waitRun(t, done)
	elapsed := time.Since(start)

	// One publish at t=0, then at most one per elapsed delay
	limit := int(elapsed/delay) + 1
	if n := len(pub.published()); n > limit || n == 0 {
		t.Errorf("published %d messages in %v, want 1..%d", n, elapsed, limit)
	}
}

func TestRun_SleepsAfterFailure(t *testing.T) {
	const delay = 40 * time.Millisecond
	rx := &fakeReceiver{} // every receive times out immediately
	pub := &fakePublisher{}
	gw, _ := New(Options{Receiver: rx, Publisher: pub, Config: Config{Delay: delay}})
	gw.MarkConnected()

	ctx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	done := runAsync(ctx, gw)
	time.Sleep(150 * time.Millisecond)
	cancel()
	waitRun(t, done)
	elapsed := time.Since(start)

	calls, _ := rx.counts()
	if limit := int(elapsed/delay) + 1; calls > limit {
		t.Errorf("Receive called %d times in %v, want at most %d", calls, elapsed, limit)
	}
	if len(pub.published()) != 0 {
		t.Error("published without data")
	}
	if gw.Stats().NoData == 0 {
		t.Error("NoData not counted")
	}
}

func TestRun_CloseErrorNotReturned(t *testing.T) {
	rx := &fakeReceiver{}
	pub := &fakePublisher{closeErr: errors.New("disconnect failed")}
	gw := newTestGateway(t, rx, pub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := gw.Run(ctx); err != nil {
		t.Errorf("Run() error = %v, want nil despite Close error", err)
	}
	if gw.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", gw.State())
	}
}
