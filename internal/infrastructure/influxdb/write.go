package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteCaptureMetric writes a single capture measurement to InfluxDB.
//
// This is the primary method for recording per-frame telemetry.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - cameraID: Physical camera identifier
//   - cameraName: Friendly camera name for dashboard labels
//   - exposureUs: Exposure time in microseconds
//   - gain: Gain setting used for the capture
//   - bytes: Encoded frame size
//   - duration: Wall-clock time the exposure took
//
// Example:
//
//	client.WriteCaptureMetric(0, "finder", 100_000, 50, 48213, 104*time.Millisecond)
func (c *Client) WriteCaptureMetric(cameraID int, cameraName string, exposureUs int64, gain int, bytes int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"camera_capture",
		map[string]string{
			"camera_id":   strconv.Itoa(cameraID),
			"camera_name": cameraName,
		},
		map[string]interface{}{
			"exposure_us": exposureUs,
			"gain":        gain,
			"bytes":       bytes,
			"duration_ms": float64(duration) / float64(time.Millisecond),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCameraStateMetric records a camera lifecycle transition.
//
// Used for availability dashboards: connects, disconnects and recovery
// outcomes over time.
//
// Parameters:
//   - cameraID: Camera identifier
//   - state: Lifecycle state name (connected, disconnected, recovering...)
//   - recovered: For recovery transitions, whether the device came back
func (c *Client) WriteCameraStateMetric(cameraID int, state string, recovered bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"camera_state",
		map[string]string{
			"camera_id": strconv.Itoa(cameraID),
			"state":     state,
		},
		map[string]interface{}{
			"recovered": recovered,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSyncCaptureMetric records the alignment outcome of one
// synchronized dual-camera capture.
//
// Parameters:
//   - timingErrorMs: Measured exposure midpoint offset in milliseconds
//   - delayUs: The start delay applied to the shorter exposure
//   - quality: Timing quality bucket (good, acceptable, poor, bad)
func (c *Client) WriteSyncCaptureMetric(timingErrorMs float64, delayUs int64, quality string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sync_capture",
		map[string]string{
			"quality": quality,
		},
		map[string]interface{}{
			"timing_error_ms": timingErrorMs,
			"delay_us":        delayUs,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "obs-core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
