package influxdb_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/argusobs/telescope-core/internal/infrastructure/config"
	"github.com/argusobs/telescope-core/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for the local dev InfluxDB.
// These values match docker-compose.yml.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "telescoped-dev-token",
		Org:           "argusobs",
		Bucket:        "metrics",
		BatchSize:     100,
		FlushInterval: 1, // 1 second for faster test feedback
	}
}

// connectTest connects to the local dev InfluxDB, skipping the test
// when none is running.
func connectTest(t *testing.T, cfg config.InfluxDBConfig) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Skipf("InfluxDB not available, skipping integration test: %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // test cleanup
	return client
}

// writeErrCollector installs an error callback and returns a getter
// that flushes, waits briefly for async delivery, and reports the last
// write error.
func writeErrCollector(t *testing.T, client *influxdb.Client) func() error {
	t.Helper()
	var mu sync.Mutex
	var writeErr error
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})
	return func() error {
		client.Flush()
		time.Sleep(100 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		return writeErr
	}
}

func TestConnect(t *testing.T) {
	client := connectTest(t, testConfig())
	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnectDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnectUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999" // nothing listens here

	if _, err := influxdb.Connect(cfg); err == nil {
		t.Fatal("Connect() should fail for an unreachable server")
	}
}

func TestConnectBatchSettingFallbacks(t *testing.T) {
	// Zero and negative batch settings fall back to defaults.
	for _, pair := range [][2]int{{0, 0}, {-5, -1}} {
		cfg := testConfig()
		cfg.BatchSize = pair[0]
		cfg.FlushInterval = pair[1]

		client := connectTest(t, cfg)
		if !client.IsConnected() {
			t.Errorf("IsConnected() = false with batch settings %v", pair)
		}
	}
}

func TestHealthCheck(t *testing.T) {
	client := connectTest(t, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	if err := client.HealthCheck(cancelled); err == nil {
		t.Error("HealthCheck() should fail for a cancelled context")
	}
}

func TestWriteDomainMetrics(t *testing.T) {
	client := connectTest(t, testConfig())
	lastErr := writeErrCollector(t, client)

	client.WriteCaptureMetric(0, "finder", 100_000, 50, 48213, 104*time.Millisecond)
	client.WriteCameraStateMetric(1, "recovering", true)
	client.WriteSyncCaptureMetric(12.5, 87_844_000, "good")

	if err := lastErr(); err != nil {
		t.Errorf("write error = %v", err)
	}
}

func TestWritePoint(t *testing.T) {
	client := connectTest(t, testConfig())
	lastErr := writeErrCollector(t, client)

	client.WritePoint(
		"custom_measurement",
		map[string]string{"source": "test"},
		map[string]any{"value": 99.9, "count": 5},
	)
	client.WritePointWithTime(
		"custom_measurement",
		map[string]string{"source": "test-with-time"},
		map[string]any{"value": 88.8},
		time.Now().Add(-1*time.Hour),
	)

	if err := lastErr(); err != nil {
		t.Errorf("write error = %v", err)
	}
}

func TestClose(t *testing.T) {
	cfg := testConfig()
	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Skipf("InfluxDB not available, skipping integration test: %v", err)
	}

	client.WriteCaptureMetric(0, "close-test", 1000, 0, 128, time.Millisecond)

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}
